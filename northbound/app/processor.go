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

package app

import (
	"github.com/superkkt/almond/openflow"
	"github.com/superkkt/almond/protocol"
)

// Packet is a frame reported by a switch through a PACKET_IN.
type Packet struct {
	Switch openflow.SwitchID
	InPort openflow.Port
	Data   []byte
	Frame  *protocol.Frame
}

// Processor is a link of the packet handling chain. A processor either consumes
// a packet or passes it on to the next processor.
type Processor interface {
	// Name returns the application name that is unique in a chain
	Name() string
	// OnConnect is called once when the switch connects so that the processor can
	// install its baseline flow rules.
	OnConnect(out *openflow.Batch, sw openflow.SwitchID) error
	OnPacketIn(out *openflow.Batch, pkt *Packet) error
	Next() (next Processor, ok bool)
	SetNext(Processor)
}

type BaseProcessor struct {
	next Processor
}

func (r *BaseProcessor) Name() string {
	return "BaseProcessor"
}

func (r *BaseProcessor) OnConnect(out *openflow.Batch, sw openflow.SwitchID) error {
	// Do nothging and execute the next processor if it exists
	next, ok := r.Next()
	if !ok {
		return nil
	}
	return next.OnConnect(out, sw)
}

func (r *BaseProcessor) OnPacketIn(out *openflow.Batch, pkt *Packet) error {
	// Do nothging and execute the next processor if it exists
	next, ok := r.Next()
	if !ok {
		return nil
	}
	return next.OnPacketIn(out, pkt)
}

func (r *BaseProcessor) Next() (next Processor, ok bool) {
	if r.next != nil {
		return r.next, true
	}

	return nil, false
}

func (r *BaseProcessor) SetNext(next Processor) {
	r.next = next
}

// Chain links the processors in the given order and returns the head.
func Chain(processors ...Processor) Processor {
	if len(processors) == 0 {
		return nil
	}
	for i := 0; i < len(processors)-1; i++ {
		processors[i].SetNext(processors[i+1])
	}

	return processors[0]
}

// PacketOut emits data out of the egress port as if it came from the controller.
func PacketOut(out *openflow.Batch, sw openflow.SwitchID, egress openflow.Port, data []byte) {
	out.Emit(openflow.PacketOut{
		Switch:  sw,
		InPort:  openflow.PortController,
		Data:    data,
		Actions: []openflow.Action{openflow.Output(egress)},
	})
}
