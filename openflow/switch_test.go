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
	"net"
	"net/netip"
	"testing"
)

func TestParseSwitchID(t *testing.T) {
	tests := []struct {
		input    string
		expected SwitchID
		err      bool
	}{
		{"1", 1, false},
		{"0x1f", 0x1f, false},
		{"00:00:00:00:00:00:00:0a", 0x0a, false},
		{" 42 ", 42, false},
		{"", 0, true},
		{"abc", 0, true},
		{"0xzz", 0, true},
	}

	for _, v := range tests {
		id, err := ParseSwitchID(v.input)
		if v.err {
			if err == nil {
				t.Fatalf("Expected error for input=%v, got=%v", v.input, id)
			}
			continue
		}
		if err != nil {
			t.Fatalf("Unexpected error for input=%v: %v", v.input, err)
		}
		if id != v.expected {
			t.Fatalf("Unexpected DPID: expected=%v, got=%v", v.expected, id)
		}
	}
}

func TestFlowRuleKey(t *testing.T) {
	mac, _ := net.ParseMAC("00:00:00:00:00:05")
	r1 := FlowRule{
		Switch:   1,
		Match:    Match{EtherType: EtherTypeIPv4, Dst: netip.MustParsePrefix("10.0.0.5/32")},
		Actions:  []Action{SetEthDst(mac), Output(2)},
		Priority: PriorityUnicast,
	}
	r2 := r1
	r2.Actions = []Action{SetEthDst(mac), Output(2)}
	if r1.Key() != r2.Key() {
		t.Fatalf("Unexpected key mismatch: %v != %v", r1.Key(), r2.Key())
	}

	r2.Switch = 2
	if r1.Key() == r2.Key() {
		t.Fatalf("Expected different keys for different switches: %v", r1.Key())
	}
	if r1.IsDrop() {
		t.Fatalf("Unexpected drop rule: %v", r1)
	}
	if !(FlowRule{Switch: 1}).IsDrop() {
		t.Fatal("Expected a rule without actions to be a drop rule")
	}
}

func TestBatch(t *testing.T) {
	b := new(Batch)
	b.Install(FlowRule{Switch: 1})
	b.Emit(PacketOut{Switch: 1, InPort: 3, Actions: []Action{Flood()}})
	if b.Len() != 2 {
		t.Fatalf("Unexpected batch length: expected=2, got=%v", b.Len())
	}
	if _, ok := b.Commands()[0].(FlowRule); !ok {
		t.Fatalf("Unexpected command type: %T", b.Commands()[0])
	}
	out, ok := b.Commands()[1].(PacketOut)
	if !ok {
		t.Fatalf("Unexpected command type: %T", b.Commands()[1])
	}
	if out.Actions[0].Port != PortFlood {
		t.Fatalf("Unexpected output port: expected=%v, got=%v", PortFlood, out.Actions[0].Port)
	}
}
