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
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/superkkt/almond/northbound"
	"github.com/superkkt/almond/openflow"

	"github.com/contiv/libOpenflow/common"
	"github.com/contiv/libOpenflow/openflow13"
	"github.com/contiv/libOpenflow/util"
	pkgerrors "github.com/pkg/errors"
)

var (
	errNotNegotiated    = errors.New("invalid command on non-negotiated session")
	errHandshakeTimeout = errors.New("handshake timeout")
	errDuplicatedDPID   = errors.New("duplicated device DPID (aux. connection is not supported yet)")
)

const (
	handshakeTimeout = 30 * time.Second
	queueSize        = 256
)

type session struct {
	conn       net.Conn
	stream     *stream
	outbound   chan util.Message
	device     *Device
	handler    EventHandler
	registry   *canceller
	entry      *sessionEntry
	negotiated bool
	registered bool
}

type sessionConfig struct {
	conn     net.Conn
	handler  EventHandler
	registry *canceller
}

func checkParam(c sessionConfig) {
	if c.conn == nil {
		panic("Conn is nil")
	}
	if c.handler == nil {
		panic("Handler is nil")
	}
	if c.registry == nil {
		panic("Registry is nil")
	}
}

func newSession(c sessionConfig) *session {
	checkParam(c)

	return &session{
		conn:     c.conn,
		stream:   newStream(c.conn),
		outbound: make(chan util.Message, queueSize),
		handler:  c.handler,
		registry: c.registry,
	}
}

func (r *session) Run(ctx context.Context) {
	sessionCtx, canceller := context.WithCancel(ctx)
	defer canceller()
	// This canceller will be used to disconnect this session when it is necessary.
	r.entry = &sessionEntry{cancel: canceller}
	r.device = newDevice(r.outbound, sessionCtx.Done())

	var wg sync.WaitGroup
	errc := make(chan error, 2)
	inbound := r.runReader(sessionCtx, &wg, errc)
	r.runWriter(sessionCtx, &wg, errc)

	if err := r.serve(sessionCtx, inbound, errc); err != nil {
		logger.Errorf("openflow session is unexpectedly closed: remote=%v, err=%v", r.conn.RemoteAddr(), err)
	}
	logger.Infof("disconnected device (DPID=%v)", r.device.ID())

	r.device.Close()
	canceller()
	// Unblock the reader.
	r.stream.Close()
	wg.Wait()

	if r.registered {
		r.dispatch(northbound.ConnectionLost{Switch: r.device.ID()})
		r.registry.release(r.device.ID(), r.entry)
	}
}

// runReader reads the messages of the switch on a single goroutine so that they
// are handled in the order they arrived.
func (r *session) runReader(ctx context.Context, wg *sync.WaitGroup, errc chan<- error) <-chan util.Message {
	c := make(chan util.Message, queueSize)

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer logger.Debug("session reader is closed")

		for {
			msg, err := r.stream.ReadMessage()
			if err != nil {
				if isTemporaryErr(err) {
					logger.Warningf("ignoring a message: remote=%v, err=%v", r.conn.RemoteAddr(), err)
					continue
				}
				select {
				case errc <- pkgerrors.Wrap(err, "reading a message"):
				default:
				}
				return
			}

			select {
			case c <- msg:
			case <-ctx.Done():
				return
			}
		}
	}()

	return c
}

func (r *session) runWriter(ctx context.Context, wg *sync.WaitGroup, errc chan<- error) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer logger.Debug("session writer is closed")

		for {
			select {
			case <-ctx.Done():
				return
			case msg := <-r.outbound:
				if err := r.stream.WriteMessage(msg); err != nil {
					select {
					case errc <- pkgerrors.Wrap(err, "writing a message"):
					default:
					}
					return
				}
			}
		}
	}()
}

func (r *session) serve(ctx context.Context, inbound <-chan util.Message, errc <-chan error) error {
	hello, err := common.NewHello(int(openflow13.VERSION))
	if err != nil {
		return err
	}
	if err := r.device.SendMessage(hello); err != nil {
		return err
	}

	timer := time.NewTimer(handshakeTimeout)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-timer.C:
			if !r.registered {
				return errHandshakeTimeout
			}
		case msg := <-inbound:
			if err := r.handle(msg); err != nil {
				return err
			}
		case err := <-errc:
			return err
		}
	}
}

func (r *session) handle(msg util.Message) error {
	switch v := msg.(type) {
	case *common.Hello:
		return r.onHello(v)
	case *common.Header:
		return r.onHeader(v)
	case *openflow13.ErrorMsg:
		return r.onError(v)
	case *openflow13.SwitchFeatures:
		return r.onFeaturesReply(v)
	case *openflow13.PacketIn:
		return r.onPacketIn(v)
	default:
		logger.Debugf("ignoring an unexpected message: %T", msg)
		return nil
	}
}

func (r *session) onHello(v *common.Hello) error {
	logger.Debugf("HELLO (ver=%v) is received", v.Version)

	// Ignore duplicated HELLO messages
	if r.negotiated {
		return nil
	}
	if v.Version < openflow13.VERSION {
		return fmt.Errorf("unsupported OpenFlow version: %v", v.Version)
	}
	r.negotiated = true

	return r.device.SendMessage(openflow13.NewFeaturesRequest())
}

func (r *session) onHeader(v *common.Header) error {
	switch v.Type {
	case openflow13.Type_EchoRequest:
		reply := openflow13.NewEchoReply()
		reply.Xid = v.Xid
		return r.device.SendMessage(reply)
	case openflow13.Type_EchoReply:
		logger.Debugf("ECHO_REPLY is received (xid=%v)", v.Xid)
	default:
		logger.Debugf("ignoring an unexpected message: type=%v", v.Type)
	}

	return nil
}

func (r *session) onError(v *openflow13.ErrorMsg) error {
	// Is this the CHECK_OVERLAP error?
	if v.Type == openflow13.ET_FLOW_MOD_FAILED && v.Code == openflow13.FMFC_OVERLAP {
		// Ignore this CHECK_OVERLAP error
		logger.Debug("FLOW_MOD is overlapped")
		return nil
	}
	logger.Errorf("ERROR (device=%v, type=%v, code=%v, length=%v)", r.device.ID(), v.Type, v.Code, v.Data.Len())

	return nil
}

func (r *session) onFeaturesReply(v *openflow13.SwitchFeatures) error {
	if !r.negotiated {
		return errNotNegotiated
	}
	if len(v.DPID) != 8 {
		return fmt.Errorf("invalid DPID: %v", v.DPID)
	}
	dpid := openflow.SwitchID(binary.BigEndian.Uint64(v.DPID))
	logger.Debugf("FEATURES_REPLY (DPID=%v, NumBufs=%v, NumTables=%v)", dpid, v.Buffers, v.NumTables)

	// First FeaturesReply packet?
	if r.registered {
		logger.Debug("ignoring an additional FEATURES_REPLY")
		return nil
	}

	// Already connected device?
	if !r.registry.push(dpid, r.entry) {
		// Disconnect the previous session. Sometimes, a switch tries to make a new
		// fresh connection even if it already has a main connection. After that,
		// the switch does not work properly, so we have to disconnect the previous
		// session so that we allow a new fresh connection.
		r.registry.cancel(dpid)
		return errDuplicatedDPID
	}
	r.registered = true
	r.device.setFeatures(Features{
		DPID:       dpid,
		NumBuffers: v.Buffers,
		NumTables:  v.NumTables,
	})
	logger.Infof("connected device (DPID=%v, remote=%v)", dpid, r.conn.RemoteAddr())

	// Send every unmatched frame to the controller.
	if err := r.device.SendMessage(newTableMiss()); err != nil {
		return err
	}

	return r.dispatch(northbound.ConnectionEstablished{Switch: dpid})
}

func (r *session) onPacketIn(v *openflow13.PacketIn) error {
	if !r.registered {
		return errNotNegotiated
	}

	inPort, ok := inPortOf(v.Match)
	if !ok {
		logger.Warningf("ignoring PACKET_IN without the ingress port: device=%v", r.device.ID())
		return nil
	}
	data, err := v.Data.MarshalBinary()
	if err != nil {
		logger.Warningf("ignoring PACKET_IN with a malformed frame: device=%v, err=%v", r.device.ID(), err)
		return nil
	}
	logger.Debugf("PACKET_IN is received (device=%v, inport=%v, reason=%v, tableID=%v, length=%v)", r.device.ID(), inPort, v.Reason, v.TableId, len(data))

	return r.dispatch(northbound.PacketObserved{
		Switch: r.device.ID(),
		InPort: inPort,
		Data:   data,
	})
}

func inPortOf(m openflow13.Match) (openflow.Port, bool) {
	for _, v := range m.Fields {
		if v.Field != openflow13.OXM_FIELD_IN_PORT {
			continue
		}
		port, ok := v.Value.(*openflow13.InPortField)
		if !ok {
			return 0, false
		}
		return openflow.Port(port.InPort), true
	}

	return 0, false
}

// dispatch delivers the event to the handler and executes the resulting
// commands in order. Only failures of the connection itself are returned.
func (r *session) dispatch(ev northbound.Event) error {
	for _, cmd := range r.handler.OnEvent(ev) {
		err := r.device.Execute(cmd)
		if err == nil {
			continue
		}
		switch pkgerrors.Cause(err) {
		case ErrClosedDevice, errWriteTimeout:
			return err
		default:
			logger.Errorf("failed to execute a command: %v: %v", cmd, err)
		}
	}

	return nil
}
