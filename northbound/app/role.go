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
	"fmt"
	"net"
	"net/netip"
	"strings"

	"github.com/superkkt/almond/openflow"
	"github.com/superkkt/almond/policy"
)

// Role selects how a switch treats IPv4 traffic toward a destination whose
// binding is still unknown.
type Role uint8

const (
	// EdgeFlood floods the frame and installs nothing.
	EdgeFlood Role = iota
	// CoreRouter forwards along static routes and drops what no route covers.
	CoreRouter
	// PolicyEnforcingCore drops the frame.
	PolicyEnforcingCore
)

func ParseRole(s string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "edge-flood", "edge":
		return EdgeFlood, nil
	case "core-router", "router":
		return CoreRouter, nil
	case "policy-enforcing-core", "firewall":
		return PolicyEnforcingCore, nil
	default:
		return 0, fmt.Errorf("invalid switch role: %v", s)
	}
}

func (r Role) String() string {
	switch r {
	case EdgeFlood:
		return "edge-flood"
	case CoreRouter:
		return "core-router"
	case PolicyEnforcingCore:
		return "policy-enforcing-core"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(r))
	}
}

func (r Role) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// DefaultAction is the policy action applied to traffic no rule matches.
func (r Role) DefaultAction() policy.Action {
	if r == PolicyEnforcingCore {
		return policy.Deny
	}

	return policy.Allow
}

// Route is a static route of a core router. MAC, when set, is the next hop
// address written into the destination of forwarded frames.
type Route struct {
	Prefix netip.Prefix
	Port   openflow.Port
	MAC    net.HardwareAddr
}

func (r Route) String() string {
	return fmt.Sprintf("Route(prefix=%v, port=%v, mac=%v)", r.Prefix, r.Port, r.MAC)
}

// Gateway is an address the controller answers ARP requests for. A nil MAC is
// replaced with an address derived from the switch DPID.
type Gateway struct {
	IP  netip.Addr
	MAC net.HardwareAddr
}

// SwitchMAC derives a locally administered unicast MAC address from the lower
// 48 bits of the DPID.
func SwitchMAC(sw openflow.SwitchID) net.HardwareAddr {
	v := uint64(sw)
	mac := net.HardwareAddr{
		byte(v >> 40), byte(v >> 32), byte(v >> 24), byte(v >> 16), byte(v >> 8), byte(v),
	}
	// Locally administered, unicast.
	mac[0] = (mac[0] | 0x02) &^ 0x01

	return mac
}
