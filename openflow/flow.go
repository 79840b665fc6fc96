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

package openflow

import (
	"fmt"
	"net/netip"
)

const (
	EtherTypeIPv4 uint16 = 0x0800
	EtherTypeARP  uint16 = 0x0806
	EtherTypeIPv6 uint16 = 0x86DD
)

const (
	PriorityTableMiss uint16 = 0
	PriorityRoute     uint16 = 50
	PriorityUnicast   uint16 = 100
	PriorityBaseline  uint16 = 200
	PriorityDenyBase  uint16 = 1000
)

// Match describes the header fields a flow rule matches on. Zero values are
// wildcards: an EtherType of 0, an invalid or zero-length prefix, and an IPProto of 0
// all match any value.
type Match struct {
	EtherType uint16
	Src       netip.Prefix
	Dst       netip.Prefix
	IPProto   uint8
}

func (r Match) String() string {
	return fmt.Sprintf("eth_type=0x%04x, nw_src=%v, nw_dst=%v, nw_proto=%v", r.EtherType, prefixString(r.Src), prefixString(r.Dst), r.IPProto)
}

func prefixString(p netip.Prefix) string {
	if !p.IsValid() || p.Bits() == 0 {
		return "*"
	}

	return p.String()
}

// Command is an instruction for a switch produced by the decision engine and
// executed by the transport.
type Command interface {
	Destination() SwitchID
	String() string
}

// FlowRule is a persistent flow table entry. A rule without actions drops
// the matched packets.
type FlowRule struct {
	Switch      SwitchID
	Match       Match
	Actions     []Action
	Priority    uint16
	IdleTimeout uint16
	HardTimeout uint16
}

func (r FlowRule) Destination() SwitchID {
	return r.Switch
}

func (r FlowRule) String() string {
	return fmt.Sprintf("FlowRule(switch=%v, priority=%v, match={%v}, actions=%v)", r.Switch, r.Priority, r.Match, formatActions(r.Actions))
}

// Key identifies rules that have identical effects on the same switch.
func (r FlowRule) Key() string {
	return fmt.Sprintf("%v/%v/%v/%v/%v/%v", r.Switch, r.Priority, r.Match, formatActions(r.Actions), r.IdleTimeout, r.HardTimeout)
}

// IsDrop returns whether this rule discards the matched packets.
func (r FlowRule) IsDrop() bool {
	return len(r.Actions) == 0
}

// PacketOut injects a single frame into a switch. InPort is the port the frame
// is assumed to have arrived on; PortController means the controller itself.
type PacketOut struct {
	Switch  SwitchID
	InPort  Port
	Data    []byte
	Actions []Action
}

func (r PacketOut) Destination() SwitchID {
	return r.Switch
}

func (r PacketOut) String() string {
	return fmt.Sprintf("PacketOut(switch=%v, in_port=%v, length=%v, actions=%v)", r.Switch, r.InPort, len(r.Data), formatActions(r.Actions))
}

// Batch accumulates the commands produced while handling one event.
type Batch struct {
	commands []Command
}

func (r *Batch) Install(rule FlowRule) {
	r.commands = append(r.commands, rule)
}

func (r *Batch) Emit(out PacketOut) {
	r.commands = append(r.commands, out)
}

func (r *Batch) Commands() []Command {
	return r.commands
}

func (r *Batch) Len() int {
	return len(r.commands)
}
