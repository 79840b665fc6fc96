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
	"bufio"
	"encoding/binary"
	"errors"
	"io"
	"net"
	"time"

	"github.com/contiv/libOpenflow/openflow13"
	"github.com/contiv/libOpenflow/util"
	pkgerrors "github.com/pkg/errors"
)

const (
	headerLength = 8
)

var (
	errInvalidPacketLength = errors.New("invalid OpenFlow packet length")
)

// malformedError is returned by ReadMessage when a complete packet has been read
// but could not be parsed. The stream is still usable after it.
type malformedError struct {
	err error
}

func (r malformedError) Error() string {
	return "malformed OpenFlow message: " + r.err.Error()
}

func (r malformedError) Temporary() bool {
	return true
}

func isTemporaryErr(err error) bool {
	e, ok := pkgerrors.Cause(err).(interface {
		Temporary() bool
	})
	return ok && e.Temporary()
}

// stream reads and writes whole OpenFlow messages on a connection. Messages are
// read one at a time in the order the switch sent them.
type stream struct {
	conn         net.Conn
	reader       *bufio.Reader
	writeTimeout time.Duration
}

func newStream(conn net.Conn) *stream {
	return &stream{
		conn:         conn,
		reader:       bufio.NewReaderSize(conn, 0xFFFF),
		writeTimeout: writeTimeout,
	}
}

func (r *stream) readPacket() ([]byte, error) {
	header, err := r.reader.Peek(headerLength) // peek ofp_header
	if err != nil {
		return nil, err
	}

	length := binary.BigEndian.Uint16(header[2:4])
	if length < headerLength {
		return nil, errInvalidPacketLength
	}
	packet := make([]byte, length)
	if _, err := io.ReadFull(r.reader, packet); err != nil {
		return nil, err
	}

	return packet, nil
}

// ReadMessage blocks until the next message arrives.
func (r *stream) ReadMessage() (util.Message, error) {
	packet, err := r.readPacket()
	if err != nil {
		return nil, err
	}

	msg, err := openflow13.Parse(packet)
	if err != nil {
		return nil, malformedError{err: err}
	}
	if msg == nil {
		return nil, malformedError{err: errors.New("unknown message type")}
	}

	return msg, nil
}

func (r *stream) WriteMessage(msg util.Message) error {
	packet, err := msg.MarshalBinary()
	if err != nil {
		return err
	}

	if r.writeTimeout > 0 {
		r.conn.SetWriteDeadline(time.Now().Add(r.writeTimeout))
		defer r.conn.SetWriteDeadline(time.Time{})
	}
	_, err = r.conn.Write(packet)

	return err
}

func (r *stream) Close() error {
	return r.conn.Close()
}
