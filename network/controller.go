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
	"fmt"
	"net"

	"github.com/superkkt/almond/northbound"
	"github.com/superkkt/almond/openflow"

	"github.com/op/go-logging"
)

var (
	logger = logging.MustGetLogger("network")
)

// EventHandler decides what to do with the events of the switches. Events of
// the same switch are delivered in order from a single goroutine.
type EventHandler interface {
	OnEvent(northbound.Event) []openflow.Command
}

type Controller struct {
	handler  EventHandler
	registry *canceller
}

func NewController(h EventHandler) *Controller {
	if h == nil {
		panic("EventHandler is nil")
	}

	return &Controller{
		handler:  h,
		registry: newCanceller(),
	}
}

// AddConnection starts an OpenFlow session on the connection. The session is
// closed when ctx is canceled or the connection is lost.
func (r *Controller) AddConnection(ctx context.Context, c net.Conn) {
	conf := sessionConfig{
		conn:     c,
		handler:  r.handler,
		registry: r.registry,
	}
	session := newSession(conf)
	go session.Run(ctx)
}

func (r *Controller) String() string {
	return fmt.Sprintf("%v switch session(s)", r.registry.len())
}
