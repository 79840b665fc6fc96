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
	"fmt"
	"net"
	"net/netip"

	"github.com/superkkt/almond/database"
	"github.com/superkkt/almond/log"
	"github.com/superkkt/almond/northbound"
	"github.com/superkkt/almond/northbound/app"
	"github.com/superkkt/almond/openflow"
	"github.com/superkkt/almond/policy"

	"github.com/op/go-logging"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

type Config struct {
	Port       int
	LogLevel   logging.Level
	LogBackend string
	Role       app.Role
	DropDNS    bool
	PolicyFile string
	// PolicyDefault is nil if the default action follows the switch role.
	PolicyDefault *policy.Action
	Gateways      []app.Gateway
	Switches      map[openflow.SwitchID]northbound.SwitchConfig
	REST          struct {
		Port uint16
		Cert string
		Key  string
	}
	MySQL struct {
		Enable bool
		database.Config
	}
}

type gatewayConfig struct {
	IP  string `mapstructure:"ip"`
	MAC string `mapstructure:"mac"`
}

type routeConfig struct {
	Prefix string `mapstructure:"prefix"`
	Port   uint32 `mapstructure:"port"`
	MAC    string `mapstructure:"mac"`
}

type switchConfig struct {
	DPID   string        `mapstructure:"dpid"`
	Role   string        `mapstructure:"role"`
	Routes []routeConfig `mapstructure:"routes"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("default.port", 6633)
	v.SetDefault("default.log_level", "info")
	v.SetDefault("default.log_backend", log.BackendSyslog)
	v.SetDefault("default.role", app.EdgeFlood.String())
	v.SetDefault("default.drop_dns", false)
	v.SetDefault("rest.port", 7070)
	v.SetDefault("mysql.enable", false)
}

func parseConfig(v *viper.Viper) (*Config, error) {
	c := new(Config)

	c.Port = v.GetInt("default.port")
	if c.Port <= 0 || c.Port > 0xFFFF {
		return nil, errors.New("invalid default.port")
	}
	level, err := log.ParseLevel(v.GetString("default.log_level"))
	if err != nil {
		return nil, errors.Wrap(err, "invalid default.log_level")
	}
	c.LogLevel = level
	c.LogBackend = v.GetString("default.log_backend")
	if c.LogBackend != log.BackendSyslog && c.LogBackend != log.BackendStderr {
		return nil, fmt.Errorf("invalid default.log_backend: %v", c.LogBackend)
	}
	if c.Role, err = app.ParseRole(v.GetString("default.role")); err != nil {
		return nil, errors.Wrap(err, "invalid default.role")
	}
	c.DropDNS = v.GetBool("default.drop_dns")
	c.PolicyFile = v.GetString("default.policy_file")
	if s := v.GetString("default.policy_default"); len(s) > 0 {
		action, err := policy.ParseAction(s)
		if err != nil {
			return nil, errors.Wrap(err, "invalid default.policy_default")
		}
		c.PolicyDefault = &action
	}

	if c.Gateways, err = parseGateways(v); err != nil {
		return nil, err
	}
	if c.Switches, err = parseSwitches(v); err != nil {
		return nil, err
	}

	port := v.GetInt("rest.port")
	if port <= 0 || port > 0xFFFF {
		return nil, errors.New("invalid rest.port")
	}
	c.REST.Port = uint16(port)
	if v.GetBool("rest.tls") {
		c.REST.Cert = v.GetString("rest.cert_file")
		c.REST.Key = v.GetString("rest.key_file")
		if len(c.REST.Cert) == 0 || len(c.REST.Key) == 0 {
			return nil, errors.New("rest.cert_file and rest.key_file are required for rest.tls")
		}
	}

	c.MySQL.Enable = v.GetBool("mysql.enable")
	if c.MySQL.Enable {
		c.MySQL.Addr = v.GetString("mysql.addr")
		c.MySQL.Username = v.GetString("mysql.username")
		c.MySQL.Password = v.GetString("mysql.password")
		c.MySQL.Name = v.GetString("mysql.name")
		c.MySQL.QueueSize = v.GetInt("mysql.queue_size")
		if len(c.MySQL.Addr) == 0 || len(c.MySQL.Username) == 0 || len(c.MySQL.Name) == 0 {
			return nil, errors.New("mysql.addr, mysql.username and mysql.name are required for mysql.enable")
		}
		if c.MySQL.QueueSize < 0 {
			return nil, errors.New("invalid mysql.queue_size")
		}
	}

	return c, nil
}

func parseGateways(v *viper.Viper) ([]app.Gateway, error) {
	var raw []gatewayConfig
	if err := v.UnmarshalKey("gateways", &raw); err != nil {
		return nil, errors.Wrap(err, "invalid gateways")
	}

	result := make([]app.Gateway, 0, len(raw))
	for _, g := range raw {
		ip, err := netip.ParseAddr(g.IP)
		if err != nil || !ip.Is4() {
			return nil, fmt.Errorf("invalid gateway IP address: %v", g.IP)
		}
		gw := app.Gateway{IP: ip}
		// The MAC address of a gateway is optional.
		if len(g.MAC) > 0 {
			if gw.MAC, err = parseMAC(g.MAC); err != nil {
				return nil, errors.Wrap(err, "invalid gateway")
			}
		}
		result = append(result, gw)
	}

	return result, nil
}

func parseSwitches(v *viper.Viper) (map[openflow.SwitchID]northbound.SwitchConfig, error) {
	var raw []switchConfig
	if err := v.UnmarshalKey("switches", &raw); err != nil {
		return nil, errors.Wrap(err, "invalid switches")
	}

	result := make(map[openflow.SwitchID]northbound.SwitchConfig)
	for _, s := range raw {
		dpid, err := openflow.ParseSwitchID(s.DPID)
		if err != nil {
			return nil, err
		}
		if _, ok := result[dpid]; ok {
			return nil, fmt.Errorf("duplicated switch: %v", s.DPID)
		}
		role, err := app.ParseRole(s.Role)
		if err != nil {
			return nil, errors.Wrap(err, fmt.Sprintf("switch %v", s.DPID))
		}
		conf := northbound.SwitchConfig{Role: role}
		for _, r := range s.Routes {
			route, err := parseRoute(r)
			if err != nil {
				return nil, errors.Wrap(err, fmt.Sprintf("switch %v", s.DPID))
			}
			conf.Routes = append(conf.Routes, route)
		}
		result[dpid] = conf
	}

	return result, nil
}

func parseRoute(r routeConfig) (app.Route, error) {
	prefix, err := netip.ParsePrefix(r.Prefix)
	if err != nil || !prefix.Addr().Is4() {
		return app.Route{}, fmt.Errorf("invalid route prefix: %v", r.Prefix)
	}
	port := openflow.Port(r.Port)
	if port == 0 || port.IsReserved() {
		return app.Route{}, fmt.Errorf("invalid route port: %v", r.Port)
	}
	route := app.Route{Prefix: prefix.Masked(), Port: port}
	if len(r.MAC) > 0 {
		if route.MAC, err = parseMAC(r.MAC); err != nil {
			return app.Route{}, err
		}
	}

	return route, nil
}

func parseMAC(s string) (net.HardwareAddr, error) {
	mac, err := net.ParseMAC(s)
	if err != nil {
		return nil, err
	}
	if len(mac) != 6 {
		return nil, fmt.Errorf("not an Ethernet MAC address: %v", s)
	}

	return mac, nil
}

func loadPolicy(path string) (*policy.Set, error) {
	if len(path) == 0 {
		logger.Warning("no policy file is configured: every frame falls to the default action of its switch")
		return policy.NewSet(policy.Allow)
	}

	rules, err := policy.Load(path)
	if err != nil {
		return nil, err
	}
	set, err := policy.NewSet(policy.Allow, rules...)
	if err != nil {
		return nil, errors.Wrap(err, "invalid policy")
	}
	logger.Infof("loaded %v policy rule(s) from %v", len(rules), path)

	return set, nil
}
