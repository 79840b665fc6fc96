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

// Package policy implements the static firewall rules evaluated for every IPv4
// flow the controller sees.
package policy

import (
	"fmt"
	"net/netip"
	"strings"

	"github.com/superkkt/almond/openflow"

	"github.com/op/go-logging"
)

var (
	logger = logging.MustGetLogger("policy")
)

type Action uint8

const (
	Allow Action = iota
	Deny
)

func (r Action) String() string {
	switch r {
	case Allow:
		return "allow"
	case Deny:
		return "deny"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(r))
	}
}

func ParseAction(s string) (Action, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "allow", "accept", "permit":
		return Allow, nil
	case "deny", "drop", "block":
		return Deny, nil
	default:
		return 0, fmt.Errorf("invalid policy action: %v", s)
	}
}

func (r Action) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// Rule matches IPv4 traffic by source and destination prefix. Protocol is an
// EtherType and SubProtocol an IP protocol number; zero matches any value. An empty
// Switches list applies the rule on every switch.
type Rule struct {
	Name        string              `json:"name"`
	Src         netip.Prefix        `json:"src"`
	Dst         netip.Prefix        `json:"dst"`
	Protocol    uint16              `json:"protocol,omitempty"`
	SubProtocol uint8               `json:"sub_protocol,omitempty"`
	Action      Action              `json:"action"`
	Priority    uint16              `json:"priority"`
	Switches    []openflow.SwitchID `json:"switches,omitempty"`
}

func (r Rule) String() string {
	return fmt.Sprintf("Rule(name=%v, src=%v, dst=%v, protocol=0x%04x, sub_protocol=%v, action=%v, priority=%v)", r.Name, r.Src, r.Dst, r.Protocol, r.SubProtocol, r.Action, r.Priority)
}

func (r Rule) validate() error {
	if !r.Src.IsValid() || !r.Src.Addr().Is4() {
		return fmt.Errorf("invalid source prefix: %v", r.Src)
	}
	if !r.Dst.IsValid() || !r.Dst.Addr().Is4() {
		return fmt.Errorf("invalid destination prefix: %v", r.Dst)
	}
	// Rules are only evaluated for IPv4 traffic.
	if r.Protocol != 0 && r.Protocol != openflow.EtherTypeIPv4 {
		return fmt.Errorf("unsupported protocol: 0x%04x", r.Protocol)
	}

	return nil
}

func (r Rule) appliesTo(sw openflow.SwitchID) bool {
	if len(r.Switches) == 0 {
		return true
	}
	for _, v := range r.Switches {
		if v == sw {
			return true
		}
	}

	return false
}

func (r Rule) match(sw openflow.SwitchID, src, dst netip.Addr, protocol uint16, subProtocol uint8) bool {
	if !r.appliesTo(sw) {
		return false
	}
	if !r.Src.Contains(src) || !r.Dst.Contains(dst) {
		return false
	}
	if r.Protocol != 0 && r.Protocol != protocol {
		return false
	}
	if r.SubProtocol != 0 && r.SubProtocol != subProtocol {
		return false
	}

	return true
}

// overlaps returns whether some traffic could match both rules.
func (r Rule) overlaps(other Rule) bool {
	if !r.Src.Overlaps(other.Src) || !r.Dst.Overlaps(other.Dst) {
		return false
	}
	if r.Protocol != 0 && other.Protocol != 0 && r.Protocol != other.Protocol {
		return false
	}
	if r.SubProtocol != 0 && other.SubProtocol != 0 && r.SubProtocol != other.SubProtocol {
		return false
	}

	return true
}

func (r Rule) specificity() int {
	return r.Src.Bits() + r.Dst.Bits()
}

// directive returns the drop rule that blocks the traffic matched by this rule.
func (r Rule) directive(sw openflow.SwitchID) openflow.FlowRule {
	return openflow.FlowRule{
		Switch: sw,
		Match: openflow.Match{
			EtherType: openflow.EtherTypeIPv4,
			Src:       r.Src.Masked(),
			Dst:       r.Dst.Masked(),
			IPProto:   r.SubProtocol,
		},
		Priority: denyPriority(r.Priority),
	}
}

func denyPriority(p uint16) uint16 {
	v := uint32(openflow.PriorityDenyBase) + uint32(p)
	if v > 0xFFFF {
		return 0xFFFF
	}

	return uint16(v)
}
