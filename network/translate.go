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
	"fmt"
	"net"
	"net/netip"

	"github.com/superkkt/almond/openflow"

	"github.com/contiv/libOpenflow/openflow13"
	"github.com/contiv/libOpenflow/util"
)

// newTableMiss returns the permanent lowest-priority rule that sends every
// unmatched frame to the controller without buffering it on the switch.
func newTableMiss() *openflow13.FlowMod {
	output := openflow13.NewActionOutput(openflow13.P_CONTROLLER)
	output.MaxLen = openflow13.OFPCML_NO_BUFFER

	inst := openflow13.NewInstrApplyActions()
	inst.AddAction(output, false)

	flow := openflow13.NewFlowMod()
	flow.Priority = openflow.PriorityTableMiss
	flow.AddInstruction(inst)

	return flow
}

func newFlowMod(rule openflow.FlowRule) (*openflow13.FlowMod, error) {
	match, err := newMatch(rule.Match)
	if err != nil {
		return nil, err
	}

	flow := openflow13.NewFlowMod()
	flow.Priority = rule.Priority
	flow.IdleTimeout = rule.IdleTimeout
	flow.HardTimeout = rule.HardTimeout
	flow.Match = *match
	// A flow without instructions drops the matched frames.
	if rule.IsDrop() {
		return flow, nil
	}

	inst := openflow13.NewInstrApplyActions()
	for _, v := range rule.Actions {
		act, err := newAction(v)
		if err != nil {
			return nil, err
		}
		if err := inst.AddAction(act, false); err != nil {
			return nil, err
		}
	}
	flow.AddInstruction(inst)

	return flow, nil
}

func newPacketOut(po openflow.PacketOut) (*openflow13.PacketOut, error) {
	if len(po.Data) == 0 {
		return nil, fmt.Errorf("empty packet-out data: switch=%v", po.Switch)
	}
	if len(po.Actions) == 0 {
		return nil, fmt.Errorf("packet-out without actions: switch=%v", po.Switch)
	}

	msg := openflow13.NewPacketOut()
	msg.InPort = uint32(po.InPort)
	msg.Data = util.NewBuffer(po.Data)
	for _, v := range po.Actions {
		act, err := newAction(v)
		if err != nil {
			return nil, err
		}
		msg.AddAction(act)
	}

	return msg, nil
}

func newMatch(m openflow.Match) (*openflow13.Match, error) {
	match := openflow13.NewMatch()
	if m.EtherType == 0 {
		if !isWildcard(m.Src) || !isWildcard(m.Dst) || m.IPProto != 0 {
			return nil, fmt.Errorf("network fields without an ether type: %v", m)
		}
		return match, nil
	}
	match.AddField(*openflow13.NewEthTypeField(m.EtherType))

	if !isWildcard(m.Src) {
		ip, mask, err := ipv4Field(m.Src)
		if err != nil {
			return nil, err
		}
		match.AddField(*openflow13.NewIpv4SrcField(ip, mask))
	}
	if !isWildcard(m.Dst) {
		ip, mask, err := ipv4Field(m.Dst)
		if err != nil {
			return nil, err
		}
		match.AddField(*openflow13.NewIpv4DstField(ip, mask))
	}
	if m.IPProto != 0 {
		match.AddField(*openflow13.NewIpProtoField(m.IPProto))
	}

	return match, nil
}

func isWildcard(p netip.Prefix) bool {
	return !p.IsValid() || p.Bits() == 0
}

// ipv4Field returns the address and the mask of an OXM IPv4 field. The mask is
// nil for a host prefix so that the field is encoded without a mask.
func ipv4Field(p netip.Prefix) (net.IP, *net.IP, error) {
	if !p.Addr().Is4() {
		return nil, nil, fmt.Errorf("not an IPv4 prefix: %v", p)
	}
	p = p.Masked()
	ip := net.IP(p.Addr().AsSlice())
	if p.Bits() == 32 {
		return ip, nil, nil
	}
	mask := net.IP(net.CIDRMask(p.Bits(), 32))

	return ip, &mask, nil
}

func newAction(a openflow.Action) (openflow13.Action, error) {
	switch a.Type {
	case openflow.ActionOutput:
		output := openflow13.NewActionOutput(uint32(a.Port))
		if a.Port == openflow.PortController {
			output.MaxLen = openflow13.OFPCML_NO_BUFFER
		}
		return output, nil
	case openflow.ActionSetEthDst:
		if len(a.MAC) != 6 {
			return nil, fmt.Errorf("invalid destination MAC address: %v", a.MAC)
		}
		return openflow13.NewActionSetField(*openflow13.NewEthDstField(a.MAC, nil)), nil
	default:
		return nil, fmt.Errorf("unsupported action type: %v", a.Type)
	}
}
