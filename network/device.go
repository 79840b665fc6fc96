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

package network

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/superkkt/almond/openflow"

	"github.com/contiv/libOpenflow/util"
	pkgerrors "github.com/pkg/errors"
)

const (
	writeTimeout        = 5 * time.Second
	flowCacheExpiration = 5 * time.Second
)

var (
	ErrClosedDevice = errors.New("already closed device")
	errWriteTimeout = errors.New("timed out writing to the switch")
)

type Features struct {
	DPID       openflow.SwitchID
	NumBuffers uint32
	NumTables  uint8
}

// Device is the controller side of a connected switch. Commands are executed
// by the session goroutine that owns the device.
type Device struct {
	mutex    sync.RWMutex
	id       openflow.SwitchID
	valid    bool
	features Features
	since    time.Time
	outbound chan<- util.Message
	done     <-chan struct{}
	cache    *flowCache
	closed   bool
}

func newDevice(outbound chan<- util.Message, done <-chan struct{}) *Device {
	if outbound == nil {
		panic("Outbound channel is nil")
	}

	return &Device{
		outbound: outbound,
		done:     done,
		cache:    newFlowCache(flowCacheExpiration),
	}
}

func (r *Device) String() string {
	// Read lock
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	return fmt.Sprintf("Device ID=%v, Features=%+v, Since=%v, Connected=%v", r.id, r.features, r.since.Format(time.RFC3339), !r.closed)
}

func (r *Device) ID() openflow.SwitchID {
	// Read lock
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	return r.id
}

func (r *Device) isValid() bool {
	// Read lock
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	return r.valid
}

func (r *Device) Features() Features {
	// Read lock
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	return r.features
}

func (r *Device) setFeatures(f Features) {
	// Write lock
	r.mutex.Lock()
	defer r.mutex.Unlock()

	r.id = f.DPID
	r.features = f
	r.valid = true
	r.since = time.Now()
}

func (r *Device) SendMessage(msg util.Message) error {
	if r.IsClosed() {
		return ErrClosedDevice
	}

	timer := time.NewTimer(writeTimeout)
	defer timer.Stop()

	select {
	case r.outbound <- msg:
		return nil
	case <-r.done:
		return ErrClosedDevice
	case <-timer.C:
		return errWriteTimeout
	}
}

// Execute sends the OpenFlow messages that implement the command. A flow rule
// sent within the flow cache expiration is not sent again.
func (r *Device) Execute(cmd openflow.Command) error {
	if !r.isValid() {
		return errNotNegotiated
	}
	if cmd.Destination() != r.ID() {
		return fmt.Errorf("command for another switch: device=%v, command=%v", r.ID(), cmd)
	}

	switch v := cmd.(type) {
	case openflow.FlowRule:
		if r.cache.InProgress(v) {
			logger.Debugf("skipping the flow rule in progress: %v", v)
			return nil
		}
		flow, err := newFlowMod(v)
		if err != nil {
			return pkgerrors.Wrap(err, "translating a flow rule")
		}
		if err := r.SendMessage(flow); err != nil {
			return err
		}
		r.cache.Add(v)
	case openflow.PacketOut:
		out, err := newPacketOut(v)
		if err != nil {
			return pkgerrors.Wrap(err, "translating a packet-out")
		}
		if err := r.SendMessage(out); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unexpected command: %v", cmd)
	}
	logger.Debugf("executed: %v", cmd)

	return nil
}

func (r *Device) IsClosed() bool {
	// Read lock
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	return r.closed
}

func (r *Device) Close() {
	// Write lock
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if r.closed {
		return
	}
	r.closed = true
	r.cache.RemoveAll()
}
