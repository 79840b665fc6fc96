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

package database

import (
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"math/rand"
	"net"
	"net/netip"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/superkkt/almond/openflow"
	"github.com/superkkt/almond/policy"

	"github.com/go-sql-driver/mysql"
	"github.com/op/go-logging"
	pkgerrors "github.com/pkg/errors"
)

const (
	maxDeadlockRetry = 5

	deadlockErrCode uint16 = 1213

	clusterDialerNetwork = "cluster"

	defaultQueueSize = 1024
)

var (
	logger = logging.MustGetLogger("database")

	maxIdleConn = runtime.NumCPU()
	maxOpenConn = maxIdleConn * 2

	registerDialer sync.Once
)

const schema = "CREATE TABLE IF NOT EXISTS `denial` (" +
	"`id` BIGINT UNSIGNED NOT NULL AUTO_INCREMENT, " +
	"`timestamp` DATETIME NOT NULL, " +
	"`dpid` BIGINT UNSIGNED NOT NULL, " +
	"`src` INT UNSIGNED NOT NULL, " +
	"`dst` INT UNSIGNED NOT NULL, " +
	"`protocol` TINYINT UNSIGNED NOT NULL, " +
	"`rule` VARCHAR(255) NOT NULL, " +
	"PRIMARY KEY (`id`), " +
	"KEY `timestamp` (`timestamp`)" +
	") ENGINE=InnoDB DEFAULT CHARSET=utf8"

type Config struct {
	// Comma separated list of host:port. The first reachable node is used.
	Addr     string
	Username string
	Password string
	Name     string
	// QueueSize is the number of denials buffered for the writer.
	QueueSize int
}

// MySQL is the denial journal. Denials are written asynchronously so that the
// packet path never waits on the database.
type MySQL struct {
	db      *sql.DB
	random  *rand.Rand
	queue   chan policy.Denial
	dropped uint64
	wg      sync.WaitGroup
	mutex   sync.RWMutex
	closed  bool
}

func NewMySQL(conf Config) (*MySQL, error) {
	if err := validateClusterAddr(conf.Addr); err != nil {
		return nil, err
	}
	// Register the custom dialer.
	registerDialer.Do(func() { mysql.RegisterDial(clusterDialerNetwork, clusterDialer) })

	param := "readTimeout=1m&writeTimeout=1m&parseTime=true&loc=Local&maxAllowedPacket=0"
	dsn := fmt.Sprintf("%v:%v@%v(%v)/%v?%v", conf.Username, conf.Password, clusterDialerNetwork, conf.Addr, conf.Name, param)
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(maxOpenConn)
	db.SetMaxIdleConns(maxIdleConn)
	// Make sure that all the connections are established to a same node, instead of distributing them into multiple nodes.
	db.SetConnMaxLifetime(5 * time.Minute)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, pkgerrors.Wrap(err, "creating the denial table")
	}

	v := newMySQL(db, conf.QueueSize)
	v.wg.Add(1)
	go v.writer()

	return v, nil
}

func newMySQL(db *sql.DB, queueSize int) *MySQL {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}

	return &MySQL{
		db:     db,
		random: rand.New(&randomSource{src: rand.NewSource(time.Now().Unix())}),
		queue:  make(chan policy.Denial, queueSize),
	}
}

func validateClusterAddr(addr string) error {
	if len(addr) == 0 {
		return errors.New("empty cluster address")
	}

	token := strings.Split(strings.Replace(addr, " ", "", -1), ",")
	for _, v := range token {
		if _, err := net.ResolveTCPAddr("tcp", v); err != nil {
			return fmt.Errorf("invalid cluster address: %v: %v", v, err)
		}
	}

	return nil
}

// clusterDialer tries to sequentially connect to each hosts from the address in the
// order of their appearance and then returns the first successfully connected one.
func clusterDialer(addr string) (net.Conn, error) {
	token := strings.Split(strings.Replace(addr, " ", "", -1), ",")

	for _, v := range token {
		logger.Debugf("dialing to %v", v)
		conn, err := net.DialTimeout("tcp", v, 5*time.Second)
		if err == nil {
			// Connected!
			logger.Debugf("successfully connected to %v", v)
			return conn, nil
		}
		logger.Errorf("failed to dial: %v", err)
	}

	return nil, errors.New("failed to dial: no available cluster node")
}

func isDeadlock(err error) bool {
	e, ok := err.(*mysql.MySQLError)
	if !ok {
		return false
	}

	return e.Number == deadlockErrCode
}

func (r *MySQL) query(f func(*sql.Tx) error) error {
	deadlockRetry := 0

	for {
		tx, err := r.db.Begin()
		if err != nil {
			return err
		}

		err = f(tx)
		// Success?
		if err == nil {
			// Yes! but Commit also may raise an error.
			err = tx.Commit()
			// Success?
			if err == nil {
				// Transaction committed successfully!
				return nil
			}
			// Fallthrough!
		}
		// No! query failed.
		tx.Rollback()

		// Need to retry due to a deadlock?
		if !isDeadlock(err) || deadlockRetry >= maxDeadlockRetry {
			// No, do not retry and just return the error.
			return err
		}
		// Yes, a deadlock occurrs. Re-execute the queries again after some sleep!
		logger.Infof("query failed due to a deadlock: caller=%v", caller())
		time.Sleep(time.Duration(r.random.Int31n(500)) * time.Millisecond)
		deadlockRetry++
	}
}

func caller() string {
	pc, file, line, ok := runtime.Caller(2)
	if !ok {
		return "unknown"
	}

	f := runtime.FuncForPC(pc)
	if f == nil {
		return fmt.Sprintf("%v:%v", file, line)
	}

	return fmt.Sprintf("%v (%v:%v)", f.Name(), file, line)
}

// AddDenial queues the denial for the writer. The denial is discarded if the
// queue is full.
func (r *MySQL) AddDenial(d policy.Denial) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	if r.closed {
		logger.Debugf("ignoring a denial on the closed journal: %+v", d)
		return
	}

	select {
	case r.queue <- d:
	default:
		n := atomic.AddUint64(&r.dropped, 1)
		logger.Warningf("denial journal queue is full, discarding: %+v (total discarded=%v)", d, n)
	}
}

// Dropped returns the number of denials discarded due to a full queue.
func (r *MySQL) Dropped() uint64 {
	return atomic.LoadUint64(&r.dropped)
}

func (r *MySQL) writer() {
	defer r.wg.Done()

	for d := range r.queue {
		if err := r.insert(d); err != nil {
			logger.Errorf("failed to record a denial: %+v: %v", d, err)
		}
	}
	logger.Debug("denial journal writer is terminated")
}

func (r *MySQL) insert(d policy.Denial) error {
	src, err := encodeIPv4(d.Src)
	if err != nil {
		return err
	}
	dst, err := encodeIPv4(d.Dst)
	if err != nil {
		return err
	}

	f := func(tx *sql.Tx) error {
		qry := "INSERT INTO `denial` (`timestamp`, `dpid`, `src`, `dst`, `protocol`, `rule`) VALUES (?, ?, ?, ?, ?, ?)"
		_, err := tx.Exec(qry, d.Time, uint64(d.Switch), src, dst, d.SubProtocol, d.Rule)
		return err
	}

	return r.query(f)
}

// Denials returns the latest denials, newest first.
func (r *MySQL) Denials(limit int) (result []policy.Denial, err error) {
	if limit <= 0 {
		return nil, fmt.Errorf("invalid limit: %v", limit)
	}

	f := func(tx *sql.Tx) error {
		// Reset the result on a retry.
		result = nil

		qry := "SELECT `timestamp`, `dpid`, `src`, `dst`, `protocol`, `rule` FROM `denial` ORDER BY `id` DESC LIMIT ?"
		rows, err := tx.Query(qry, limit)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var (
				d        policy.Denial
				dpid     uint64
				src, dst uint32
			)
			if err := rows.Scan(&d.Time, &dpid, &src, &dst, &d.SubProtocol, &d.Rule); err != nil {
				return err
			}
			d.Switch = openflow.SwitchID(dpid)
			d.Src = decodeIPv4(src)
			d.Dst = decodeIPv4(dst)
			result = append(result, d)
		}

		return rows.Err()
	}
	if err = r.query(f); err != nil {
		return nil, err
	}

	return result, nil
}

func encodeIPv4(ip netip.Addr) (uint32, error) {
	if !ip.Is4() {
		return 0, fmt.Errorf("not an IPv4 address: %v", ip)
	}
	v := ip.As4()

	return binary.BigEndian.Uint32(v[:]), nil
}

func decodeIPv4(v uint32) netip.Addr {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)

	return netip.AddrFrom4(b)
}

// Close stops the writer after it records the queued denials, and then closes
// the database.
func (r *MySQL) Close() error {
	r.mutex.Lock()
	if r.closed {
		r.mutex.Unlock()
		return nil
	}
	r.closed = true
	close(r.queue)
	r.mutex.Unlock()
	r.wg.Wait()

	return r.db.Close()
}
