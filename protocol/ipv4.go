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

package protocol

import (
	"errors"
	"fmt"
	"net/netip"

	"github.com/google/gopacket/layers"
)

// IPv4 holds the fields of an IPv4 packet the controller makes decisions on.
// SrcPort and DstPort are only set for TCP and UDP, and for the first fragment
// of a fragmented datagram.
type IPv4 struct {
	Src      netip.Addr
	Dst      netip.Addr
	Protocol uint8
	SrcPort  uint16
	DstPort  uint16
	fragment bool
}

func newIPv4(v *layers.IPv4) (*IPv4, error) {
	src, ok := netip.AddrFromSlice(v.SrcIP.To4())
	if !ok {
		return nil, errors.New("invalid source IPv4 address")
	}
	dst, ok := netip.AddrFromSlice(v.DstIP.To4())
	if !ok {
		return nil, errors.New("invalid destination IPv4 address")
	}

	return &IPv4{
		Src:      src,
		Dst:      dst,
		Protocol: uint8(v.Protocol),
		// Fragments are not reassembled. Only the first one has transport ports.
		fragment: v.Flags&layers.IPv4MoreFragments != 0 || v.FragOffset != 0,
	}, nil
}

func (r IPv4) String() string {
	return fmt.Sprintf("Src=%v, Dst=%v, Protocol=%v, SrcPort=%v, DstPort=%v", r.Src, r.Dst, r.Protocol, r.SrcPort, r.DstPort)
}

// IsDNS returns whether this is a UDP datagram from or to the DNS port.
func (r IPv4) IsDNS() bool {
	return r.Protocol == IPProtoUDP && (r.SrcPort == DNSPort || r.DstPort == DNSPort)
}
