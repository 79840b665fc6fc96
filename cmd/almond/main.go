/*
 * Cherry - An OpenFlow Controller
 *
 * Copyright (C) 2015 Samjung Data Service, Inc. All rights reserved.
 * Kitae Kim <superkkt@sds.co.kr>
 *
 * This program is free software; you can redistribute it and/or modify
 * it under the terms of the GNU General Public License as published by
 * the Free Software Foundation; either version 2 of the License, or
 * any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU General Public License along
 * with this program; if not, write to the Free Software Foundation, Inc.,
 * 51 Franklin Street, Fifth Floor, Boston, MA 02110-1301 USA.
 */

package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/superkkt/almond/api/core"
	"github.com/superkkt/almond/database"
	"github.com/superkkt/almond/log"
	"github.com/superkkt/almond/network"
	"github.com/superkkt/almond/northbound"

	"github.com/fsnotify/fsnotify"
	"github.com/op/go-logging"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

const (
	programName    = "almond"
	programVersion = "0.1.0"
)

var (
	logger            = logging.MustGetLogger("main")
	loggerLeveled     logging.LeveledBackend
	showVersion       = flag.Bool("version", false, "Show program version and exit")
	defaultConfigFile = flag.String("config", fmt.Sprintf("/usr/local/etc/%v.yaml", programName), "absolute path of the configuration file")
)

func main() {
	runtime.GOMAXPROCS(runtime.NumCPU())
	flag.Parse()
	if *showVersion {
		fmt.Printf("Version: %v\n", programVersion)
		os.Exit(0)
	}

	conf := initConfig()
	if err := initLog(conf.LogBackend, conf.LogLevel); err != nil {
		logger.Fatalf("failed to init log: %v", err)
	}

	set, err := loadPolicy(conf.PolicyFile)
	if err != nil {
		logger.Fatalf("failed to load the policy: %v", err)
	}
	nbConf := northbound.Config{
		DefaultRole:   conf.Role,
		DropDNS:       conf.DropDNS,
		Gateways:      conf.Gateways,
		Policy:        set,
		PolicyDefault: conf.PolicyDefault,
		Switches:      conf.Switches,
	}

	var journal *database.MySQL
	if conf.MySQL.Enable {
		journal, err = database.NewMySQL(conf.MySQL.Config)
		if err != nil {
			logger.Fatalf("failed to init MySQL database: %v", err)
		}
		nbConf.Journal = journal
	}

	ctx, cancel := context.WithCancel(context.Background())
	manager, err := northbound.NewManager(nbConf)
	if err != nil {
		logger.Fatalf("failed to create the switch manager: %v", err)
	}
	controller := network.NewController(manager)
	initAPIServer(conf, manager, journal)
	initSignalHandler(controller, manager, journal, cancel)

	if err := listen(ctx, conf.Port, controller); err != nil {
		logger.Fatalf("failed to listen: %v", err)
	}
	// The signal handler terminates the process after the graceful shutdown.
	select {}
}

func initConfig() *Config {
	setDefaults(viper.GetViper())
	viper.SetConfigFile(*defaultConfigFile)
	// Read the config file.
	if err := viper.ReadInConfig(); err != nil {
		logger.Fatalf("failed to read the config file: %v", err)
	}
	conf, err := parseConfig(viper.GetViper())
	if err != nil {
		logger.Fatalf("failed to validate the configuration: %v", err)
	}
	// Watching and re-reading config file whenever it changes.
	viper.OnConfigChange(func(e fsnotify.Event) {
		// Reload only on WRITE.
		if e.Op != fsnotify.Write {
			return
		}
		if loggerLeveled == nil {
			return
		}

		level, err := log.ParseLevel(viper.GetString("default.log_level"))
		if err != nil {
			logger.Errorf("ignoring the new log level: %v", err)
			return
		}
		// Set log level for all modules
		loggerLeveled.SetLevel(level, "")
		logger.Infof("log level is changed to %v", level)
	})
	viper.WatchConfig()

	return conf
}

func initLog(name string, level logging.Level) error {
	backend, err := log.NewBackend(name, programName)
	if err != nil {
		return err
	}
	backend = logging.NewBackendFormatter(backend, logging.MustStringFormatter(`%{level}: %{shortpkg}.%{shortfunc}: %{message}`))

	loggerLeveled = logging.AddModuleLevel(backend)
	// Set log level for all modules
	loggerLeveled.SetLevel(level, "")
	logging.SetBackend(loggerLeveled)

	return nil
}

func initAPIServer(conf *Config, manager *northbound.Manager, journal *database.MySQL) {
	srv := &core.API{}
	srv.Port = conf.REST.Port
	srv.TLS.Cert = conf.REST.Cert
	srv.TLS.Key = conf.REST.Key
	srv.Controller = manager
	// Keep the interface nil when the journal is disabled.
	if journal != nil {
		srv.Journal = journal
	}

	go func() {
		if err := srv.Serve(); err != nil {
			logger.Fatalf("failed to run the API server: %v", err)
		}
	}()
}

func initSignalHandler(controller *network.Controller, manager *northbound.Manager, journal *database.MySQL, cancel context.CancelFunc) {
	go func() {
		c := make(chan os.Signal, 5)
		signal.Notify(c, syscall.SIGTERM, syscall.SIGINT, syscall.SIGHUP)

		// Infinte loop.
		for {
			s := <-c
			if s == syscall.SIGTERM || s == syscall.SIGINT {
				// Graceful shutdown
				logger.Warning("Shutting down...")
				cancel()
				// Timeout for cancelation
				time.Sleep(5 * time.Second)
				if journal != nil {
					if err := journal.Close(); err != nil {
						logger.Errorf("failed to close the denial journal: %v", err)
					}
				}
				os.Exit(0)
			} else if s == syscall.SIGHUP {
				fmt.Println("* Controller status:")
				fmt.Println(controller.String())
				fmt.Printf("\n* Manager status:\n")
				fmt.Println(manager.String())
				if journal != nil {
					fmt.Printf("\n* Denial journal: %v discarded\n", journal.Dropped())
				}
			}
		}
	}()
}

func listen(ctx context.Context, port int, controller *network.Controller) error {
	type KeepAliver interface {
		SetKeepAlive(keepalive bool) error
		SetKeepAlivePeriod(d time.Duration) error
	}

	listener, err := net.Listen("tcp", fmt.Sprintf(":%v", port))
	if err != nil {
		return errors.Wrap(err, fmt.Sprintf("listening on %v port", port))
	}
	defer listener.Close()
	logger.Infof("listening for OpenFlow switches on %v port", port)

	// Connection dispatcher.
	f := func(c chan<- net.Conn) {
		for {
			conn, err := listener.Accept()
			if err != nil {
				select {
				case <-ctx.Done():
					return
				default:
				}
				logger.Errorf("failed to accept a new connection: %v", err)
				continue
			}
			logger.Infof("new device is connected from %v", conn.RemoteAddr())

			// Pass the new connection into the backlog queue.
			c <- conn
		}
	}
	backlog := make(chan net.Conn, 32)
	go f(backlog)

	// Infinite loop
	for {
		select {
		case <-ctx.Done():
			logger.Debug("terminating the main listener loop...")
			return nil
		case conn := <-backlog:
			logger.Debug("fetching a new connection from the backlog..")
			if v, ok := conn.(KeepAliver); ok {
				logger.Debug("trying to enable socket keepalive..")
				if err := v.SetKeepAlive(true); err == nil {
					logger.Debug("setting socket keepalive period...")
					// Makes a broken connection will be disconnected within 45 seconds.
					// http://felixge.de/2014/08/26/tcp-keepalive-with-golang.html
					v.SetKeepAlivePeriod(time.Duration(5) * time.Second)
				} else {
					logger.Errorf("failed to enable socket keepalive: %v", err)
				}
			}
			controller.AddConnection(ctx, conn)
		}
	}
}
