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

// Package apptest builds the frames used by the processor tests.
package apptest

import (
	"net"
	"net/netip"

	"github.com/superkkt/almond/northbound/app"
	"github.com/superkkt/almond/openflow"
	"github.com/superkkt/almond/protocol"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

var (
	BroadcastMAC = net.HardwareAddr{0xff, 0xff, 0xff, 0xff, 0xff, 0xff}
	ZeroMAC      = net.HardwareAddr{0, 0, 0, 0, 0, 0}
)

func MAC(s string) net.HardwareAddr {
	mac, err := net.ParseMAC(s)
	if err != nil {
		panic(err)
	}

	return mac
}

func IP(s string) netip.Addr {
	return netip.MustParseAddr(s)
}

func serialize(l ...gopacket.SerializableLayer) []byte {
	buf := gopacket.NewSerializeBuffer()
	if err := gopacket.SerializeLayers(buf, gopacket.SerializeOptions{FixLengths: true}, l...); err != nil {
		panic(err)
	}

	return buf.Bytes()
}

func arp(op uint16, srcMAC, dstMAC, sha net.HardwareAddr, spa netip.Addr, tha net.HardwareAddr, tpa netip.Addr) []byte {
	s, t := spa.As4(), tpa.As4()
	eth := &layers.Ethernet{SrcMAC: srcMAC, DstMAC: dstMAC, EthernetType: layers.EthernetTypeARP}
	a := &layers.ARP{
		AddrType:          layers.LinkTypeEthernet,
		Protocol:          layers.EthernetTypeIPv4,
		HwAddressSize:     6,
		ProtAddressSize:   4,
		Operation:         op,
		SourceHwAddress:   sha,
		SourceProtAddress: s[:],
		DstHwAddress:      tha,
		DstProtAddress:    t[:],
	}

	return serialize(eth, a)
}

// ARPRequest asks who has tpa on behalf of (sha, spa).
func ARPRequest(sha net.HardwareAddr, spa, tpa netip.Addr) []byte {
	return arp(layers.ARPRequest, sha, BroadcastMAC, sha, spa, ZeroMAC, tpa)
}

func ARPReply(sha net.HardwareAddr, spa netip.Addr, tha net.HardwareAddr, tpa netip.Addr) []byte {
	return arp(layers.ARPReply, sha, tha, sha, spa, tha, tpa)
}

// ARPAnnouncement is a gratuitous ARP request for the sender's own address.
func ARPAnnouncement(sha net.HardwareAddr, spa netip.Addr) []byte {
	return arp(layers.ARPRequest, sha, BroadcastMAC, sha, spa, ZeroMAC, spa)
}

func ipv4(srcMAC, dstMAC net.HardwareAddr, src, dst netip.Addr, proto layers.IPProtocol, next ...gopacket.SerializableLayer) []byte {
	eth := &layers.Ethernet{SrcMAC: srcMAC, DstMAC: dstMAC, EthernetType: layers.EthernetTypeIPv4}
	ip := &layers.IPv4{
		Version:  4,
		TTL:      64,
		Protocol: proto,
		SrcIP:    net.IP(src.AsSlice()),
		DstIP:    net.IP(dst.AsSlice()),
	}

	return serialize(append([]gopacket.SerializableLayer{eth, ip}, next...)...)
}

func ICMP(srcMAC, dstMAC net.HardwareAddr, src, dst netip.Addr) []byte {
	icmp := &layers.ICMPv4{TypeCode: layers.CreateICMPv4TypeCode(layers.ICMPv4TypeEchoRequest, 0), Id: 1, Seq: 1}
	return ipv4(srcMAC, dstMAC, src, dst, layers.IPProtocolICMPv4, icmp, gopacket.Payload([]byte("ping")))
}

func UDP(srcMAC, dstMAC net.HardwareAddr, src, dst netip.Addr, srcPort, dstPort uint16) []byte {
	udp := &layers.UDP{SrcPort: layers.UDPPort(srcPort), DstPort: layers.UDPPort(dstPort)}
	return ipv4(srcMAC, dstMAC, src, dst, layers.IPProtocolUDP, udp, gopacket.Payload([]byte("data")))
}

// UDPFirstFragment is the first fragment of a UDP datagram: MF is set and the
// offset is zero.
func UDPFirstFragment(srcMAC, dstMAC net.HardwareAddr, src, dst netip.Addr, srcPort, dstPort uint16) []byte {
	eth := &layers.Ethernet{SrcMAC: srcMAC, DstMAC: dstMAC, EthernetType: layers.EthernetTypeIPv4}
	ip := &layers.IPv4{
		Version:  4,
		TTL:      64,
		Protocol: layers.IPProtocolUDP,
		Flags:    layers.IPv4MoreFragments,
		SrcIP:    net.IP(src.AsSlice()),
		DstIP:    net.IP(dst.AsSlice()),
	}
	udp := &layers.UDP{SrcPort: layers.UDPPort(srcPort), DstPort: layers.UDPPort(dstPort)}

	return serialize(eth, ip, udp, gopacket.Payload(make([]byte, 64)))
}

func TCP(srcMAC, dstMAC net.HardwareAddr, src, dst netip.Addr, srcPort, dstPort uint16) []byte {
	tcp := &layers.TCP{SrcPort: layers.TCPPort(srcPort), DstPort: layers.TCPPort(dstPort), SYN: true, Window: 1024}
	return ipv4(srcMAC, dstMAC, src, dst, layers.IPProtocolTCP, tcp)
}

func IPv6(srcMAC, dstMAC net.HardwareAddr) []byte {
	eth := &layers.Ethernet{SrcMAC: srcMAC, DstMAC: dstMAC, EthernetType: layers.EthernetTypeIPv6}
	ip := &layers.IPv6{
		Version:    6,
		HopLimit:   64,
		NextHeader: layers.IPProtocolUDP,
		SrcIP:      net.ParseIP("fe80::1"),
		DstIP:      net.ParseIP("fe80::2"),
	}
	udp := &layers.UDP{SrcPort: 546, DstPort: 547}

	return serialize(eth, ip, udp, gopacket.Payload([]byte("data")))
}

// Packet wraps a frame the way a switch reports it.
func Packet(sw openflow.SwitchID, inPort openflow.Port, data []byte) *app.Packet {
	return &app.Packet{
		Switch: sw,
		InPort: inPort,
		Data:   data,
		Frame:  protocol.Decode(data),
	}
}
