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
	"fmt"
	"net"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

const (
	EtherTypeIPv4 uint16 = 0x0800
	EtherTypeARP  uint16 = 0x0806
	EtherTypeIPv6 uint16 = 0x86DD

	IPProtoICMP uint8 = 1
	IPProtoTCP  uint8 = 6
	IPProtoUDP  uint8 = 17

	DNSPort uint16 = 53
)

// Frame is the decoded view of an Ethernet frame observed by a switch.
// Complete is false when any layer of the frame could not be decoded; the other
// fields then hold whatever was decoded before the failure.
type Frame struct {
	Complete  bool
	EtherType uint16
	SrcMAC    net.HardwareAddr
	DstMAC    net.HardwareAddr
	ARP       *ARP
	IPv4      *IPv4
}

func (r Frame) String() string {
	s := fmt.Sprintf("complete=%v, type=0x%04x, src=%v, dst=%v", r.Complete, r.EtherType, r.SrcMAC, r.DstMAC)
	if r.ARP != nil {
		s += fmt.Sprintf(", ARP={%v}", r.ARP)
	}
	if r.IPv4 != nil {
		s += fmt.Sprintf(", IPv4={%v}", r.IPv4)
	}

	return s
}

// Decode parses an Ethernet frame. It never fails; a malformed or truncated frame
// is reported through the Complete flag. Layers above UDP and TCP are not decoded.
func Decode(data []byte) *Frame {
	var (
		eth     layers.Ethernet
		arp     layers.ARP
		ip4     layers.IPv4
		ip6     layers.IPv6
		udp     layers.UDP
		tcp     layers.TCP
		icmp    layers.ICMPv4
		payload gopacket.Payload
	)
	parser := gopacket.NewDecodingLayerParser(layers.LayerTypeEthernet, &eth, &arp, &ip4, &ip6, &udp, &tcp, &icmp, &payload)
	parser.IgnoreUnsupported = true

	frame := new(Frame)
	decoded := make([]gopacket.LayerType, 0, 4)
	err := parser.DecodeLayers(data, &decoded)
	if len(decoded) == 0 {
		return frame
	}
	frame.EtherType = uint16(eth.EthernetType)
	frame.SrcMAC = eth.SrcMAC
	frame.DstMAC = eth.DstMAC
	if err != nil {
		return frame
	}

	seen := make(map[gopacket.LayerType]bool, len(decoded))
	for _, v := range decoded {
		seen[v] = true
	}

	switch frame.EtherType {
	case EtherTypeARP:
		if !seen[layers.LayerTypeARP] {
			return frame
		}
		v, err := newARP(&arp)
		if err != nil {
			return frame
		}
		frame.ARP = v
	case EtherTypeIPv4:
		if !seen[layers.LayerTypeIPv4] {
			return frame
		}
		v, err := newIPv4(&ip4)
		if err != nil {
			return frame
		}
		switch {
		case seen[layers.LayerTypeUDP]:
			v.SrcPort, v.DstPort = uint16(udp.SrcPort), uint16(udp.DstPort)
		case seen[layers.LayerTypeTCP]:
			v.SrcPort, v.DstPort = uint16(tcp.SrcPort), uint16(tcp.DstPort)
		case v.Protocol != IPProtoUDP && v.Protocol != IPProtoTCP:
		case !v.fragment:
			// The transport header is missing.
			return frame
		case ip4.FragOffset == 0:
			// Only the first fragment carries the transport header.
			if err := decodePorts(v, ip4.Payload); err != nil {
				return frame
			}
		}
		frame.IPv4 = v
	}
	frame.Complete = true

	return frame
}

func decodePorts(v *IPv4, payload []byte) error {
	switch v.Protocol {
	case IPProtoUDP:
		var udp layers.UDP
		if err := udp.DecodeFromBytes(payload, gopacket.NilDecodeFeedback); err != nil {
			return err
		}
		v.SrcPort, v.DstPort = uint16(udp.SrcPort), uint16(udp.DstPort)
	case IPProtoTCP:
		var tcp layers.TCP
		if err := tcp.DecodeFromBytes(payload, gopacket.NilDecodeFeedback); err != nil {
			return err
		}
		v.SrcPort, v.DstPort = uint16(tcp.SrcPort), uint16(tcp.DstPort)
	}

	return nil
}
