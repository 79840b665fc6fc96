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
	"bytes"
	"errors"
	"fmt"
	"net"
	"net/netip"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

const (
	ARPRequest uint16 = 1
	ARPReply   uint16 = 2
)

var (
	zeroMAC      = net.HardwareAddr{0, 0, 0, 0, 0, 0}
	broadcastMAC = net.HardwareAddr{0xff, 0xff, 0xff, 0xff, 0xff, 0xff}
)

// ARP holds an Ethernet/IPv4 ARP packet.
type ARP struct {
	Operation uint16
	SHA       net.HardwareAddr // Sender Hardware Address
	SPA       netip.Addr       // Sender Protocol Address
	THA       net.HardwareAddr // Target Hardware Address
	TPA       netip.Addr       // Target Protocol Address
}

func newARP(v *layers.ARP) (*ARP, error) {
	if v.AddrType != layers.LinkTypeEthernet || v.Protocol != layers.EthernetTypeIPv4 {
		return nil, fmt.Errorf("unsupported ARP address type: hw=%v, proto=%v", v.AddrType, v.Protocol)
	}
	if v.HwAddressSize != 6 || v.ProtAddressSize != 4 {
		return nil, errors.New("invalid ARP address length")
	}

	spa, ok := netip.AddrFromSlice(v.SourceProtAddress)
	if !ok {
		return nil, errors.New("invalid ARP sender protocol address")
	}
	tpa, ok := netip.AddrFromSlice(v.DstProtAddress)
	if !ok {
		return nil, errors.New("invalid ARP target protocol address")
	}

	return &ARP{
		Operation: v.Operation,
		SHA:       net.HardwareAddr(v.SourceHwAddress),
		SPA:       spa,
		THA:       net.HardwareAddr(v.DstHwAddress),
		TPA:       tpa,
	}, nil
}

func (r ARP) String() string {
	return fmt.Sprintf("Operation=%v, SHA=%v, SPA=%v, THA=%v, TPA=%v", r.Operation, r.SHA, r.SPA, r.THA, r.TPA)
}

// IsAnnouncement returns whether this packet is a gratuitous ARP announcing the
// sender's own address rather than asking for someone else's.
func (r ARP) IsAnnouncement() bool {
	sameProtoAddr := r.SPA == r.TPA
	sameHWAddr := bytes.Equal(r.SHA, r.THA)
	zeroTarget := bytes.Equal(r.THA, zeroMAC)
	broadcastTarget := bytes.Equal(r.THA, broadcastMAC)

	return sameProtoAddr && (zeroTarget || broadcastTarget || sameHWAddr)
}

// NewARPReply builds an Ethernet frame carrying an ARP reply that tells the host
// (tha, tpa) that spa is reachable at sha.
func NewARPReply(sha net.HardwareAddr, spa netip.Addr, tha net.HardwareAddr, tpa netip.Addr) ([]byte, error) {
	if len(sha) != 6 || len(tha) != 6 {
		return nil, errors.New("invalid hardware address")
	}
	if !spa.Is4() || !tpa.Is4() {
		return nil, errors.New("protocol address is not an IPv4 address")
	}

	eth := &layers.Ethernet{
		SrcMAC:       sha,
		DstMAC:       tha,
		EthernetType: layers.EthernetTypeARP,
	}
	s, t := spa.As4(), tpa.As4()
	arp := &layers.ARP{
		AddrType:          layers.LinkTypeEthernet,
		Protocol:          layers.EthernetTypeIPv4,
		HwAddressSize:     6,
		ProtAddressSize:   4,
		Operation:         layers.ARPReply,
		SourceHwAddress:   sha,
		SourceProtAddress: s[:],
		DstHwAddress:      tha,
		DstProtAddress:    t[:],
	}

	buf := gopacket.NewSerializeBuffer()
	if err := gopacket.SerializeLayers(buf, gopacket.SerializeOptions{FixLengths: true}, eth, arp); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}
