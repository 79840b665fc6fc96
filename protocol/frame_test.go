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
	"net"
	"net/netip"
	"testing"

	"github.com/davecgh/go-spew/spew"
	"github.com/google/go-cmp/cmp"
	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

func mustMAC(s string) net.HardwareAddr {
	mac, err := net.ParseMAC(s)
	if err != nil {
		panic(err)
	}

	return mac
}

func serialize(t *testing.T, l ...gopacket.SerializableLayer) []byte {
	buf := gopacket.NewSerializeBuffer()
	if err := gopacket.SerializeLayers(buf, gopacket.SerializeOptions{FixLengths: true}, l...); err != nil {
		t.Fatalf("Unexpected serialization error: %v", err)
	}

	return buf.Bytes()
}

func udpFrame(t *testing.T, srcPort, dstPort uint16) []byte {
	eth := &layers.Ethernet{
		SrcMAC:       mustMAC("00:00:00:00:00:01"),
		DstMAC:       mustMAC("00:00:00:00:00:02"),
		EthernetType: layers.EthernetTypeIPv4,
	}
	ip := &layers.IPv4{
		Version:  4,
		TTL:      64,
		Protocol: layers.IPProtocolUDP,
		SrcIP:    net.IPv4(10, 0, 1, 10).To4(),
		DstIP:    net.IPv4(10, 0, 4, 10).To4(),
	}
	udp := &layers.UDP{SrcPort: layers.UDPPort(srcPort), DstPort: layers.UDPPort(dstPort)}

	return serialize(t, eth, ip, udp, gopacket.Payload([]byte("hello")))
}

func TestDecodeARPRequest(t *testing.T) {
	eth := &layers.Ethernet{
		SrcMAC:       mustMAC("00:00:00:00:00:0a"),
		DstMAC:       broadcastMAC,
		EthernetType: layers.EthernetTypeARP,
	}
	arp := &layers.ARP{
		AddrType:          layers.LinkTypeEthernet,
		Protocol:          layers.EthernetTypeIPv4,
		HwAddressSize:     6,
		ProtAddressSize:   4,
		Operation:         layers.ARPRequest,
		SourceHwAddress:   mustMAC("00:00:00:00:00:0a"),
		SourceProtAddress: []byte{10, 0, 1, 10},
		DstHwAddress:      zeroMAC,
		DstProtAddress:    []byte{10, 0, 1, 1},
	}

	frame := Decode(serialize(t, eth, arp))
	if !frame.Complete {
		t.Fatalf("Unexpected incomplete frame: %v", spew.Sdump(frame))
	}
	if frame.EtherType != EtherTypeARP {
		t.Fatalf("Unexpected EtherType: expected=%v, got=%v", EtherTypeARP, frame.EtherType)
	}
	expected := &ARP{
		Operation: ARPRequest,
		SHA:       mustMAC("00:00:00:00:00:0a"),
		SPA:       netip.MustParseAddr("10.0.1.10"),
		THA:       zeroMAC,
		TPA:       netip.MustParseAddr("10.0.1.1"),
	}
	if diff := cmp.Diff(expected, frame.ARP, cmp.Comparer(func(a, b netip.Addr) bool { return a == b })); diff != "" {
		t.Fatalf("Unexpected ARP (-expected +got):\n%v", diff)
	}
	if frame.ARP.IsAnnouncement() {
		t.Fatal("Unexpected ARP announcement")
	}
}

func TestNewARPReply(t *testing.T) {
	gateway := mustMAC("02:00:00:00:00:01")
	host := mustMAC("00:00:00:00:00:0a")

	data, err := NewARPReply(gateway, netip.MustParseAddr("10.0.1.1"), host, netip.MustParseAddr("10.0.1.10"))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	frame := Decode(data)
	if !frame.Complete || frame.ARP == nil {
		t.Fatalf("Unexpected frame: %v", spew.Sdump(frame))
	}
	if frame.SrcMAC.String() != gateway.String() || frame.DstMAC.String() != host.String() {
		t.Fatalf("Unexpected Ethernet addresses: src=%v, dst=%v", frame.SrcMAC, frame.DstMAC)
	}
	if frame.ARP.Operation != ARPReply {
		t.Fatalf("Unexpected operation: expected=%v, got=%v", ARPReply, frame.ARP.Operation)
	}
	if frame.ARP.SHA.String() != gateway.String() || frame.ARP.SPA != netip.MustParseAddr("10.0.1.1") {
		t.Fatalf("Unexpected sender: %v", frame.ARP)
	}
	if frame.ARP.THA.String() != host.String() || frame.ARP.TPA != netip.MustParseAddr("10.0.1.10") {
		t.Fatalf("Unexpected target: %v", frame.ARP)
	}
}

func TestNewARPReplyInvalid(t *testing.T) {
	if _, err := NewARPReply(nil, netip.MustParseAddr("10.0.1.1"), zeroMAC, netip.MustParseAddr("10.0.1.10")); err == nil {
		t.Fatal("Expected error for an empty hardware address")
	}
	if _, err := NewARPReply(zeroMAC, netip.MustParseAddr("::1"), zeroMAC, netip.MustParseAddr("10.0.1.10")); err == nil {
		t.Fatal("Expected error for an IPv6 protocol address")
	}
}

func TestARPAnnouncement(t *testing.T) {
	ip := netip.MustParseAddr("10.0.1.10")
	mac := mustMAC("00:00:00:00:00:0a")

	tests := []struct {
		arp      ARP
		expected bool
	}{
		{ARP{Operation: ARPRequest, SHA: mac, SPA: ip, THA: zeroMAC, TPA: ip}, true},
		{ARP{Operation: ARPRequest, SHA: mac, SPA: ip, THA: broadcastMAC, TPA: ip}, true},
		{ARP{Operation: ARPReply, SHA: mac, SPA: ip, THA: mac, TPA: ip}, true},
		{ARP{Operation: ARPRequest, SHA: mac, SPA: ip, THA: zeroMAC, TPA: netip.MustParseAddr("10.0.1.1")}, false},
	}

	for _, v := range tests {
		if got := v.arp.IsAnnouncement(); got != v.expected {
			t.Fatalf("Unexpected announcement result for %v: expected=%v, got=%v", v.arp, v.expected, got)
		}
	}
}

func TestDecodeIPv4UDP(t *testing.T) {
	frame := Decode(udpFrame(t, 40000, 53))
	if !frame.Complete || frame.IPv4 == nil {
		t.Fatalf("Unexpected frame: %v", spew.Sdump(frame))
	}

	expected := &IPv4{
		Src:      netip.MustParseAddr("10.0.1.10"),
		Dst:      netip.MustParseAddr("10.0.4.10"),
		Protocol: IPProtoUDP,
		SrcPort:  40000,
		DstPort:  53,
	}
	if diff := cmp.Diff(expected, frame.IPv4, cmp.AllowUnexported(IPv4{}), cmp.Comparer(func(a, b netip.Addr) bool { return a == b })); diff != "" {
		t.Fatalf("Unexpected IPv4 (-expected +got):\n%v", diff)
	}
	if !frame.IPv4.IsDNS() {
		t.Fatal("Expected a DNS datagram")
	}
	if Decode(udpFrame(t, 53, 40000)).IPv4.IsDNS() == false {
		t.Fatal("Expected a DNS datagram from the DNS port")
	}
	if Decode(udpFrame(t, 40000, 8080)).IPv4.IsDNS() {
		t.Fatal("Unexpected DNS datagram")
	}
}

func TestDecodeFragment(t *testing.T) {
	eth := &layers.Ethernet{
		SrcMAC:       mustMAC("00:00:00:00:00:01"),
		DstMAC:       mustMAC("00:00:00:00:00:02"),
		EthernetType: layers.EthernetTypeIPv4,
	}
	ip := &layers.IPv4{
		Version:    4,
		TTL:        64,
		Protocol:   layers.IPProtocolUDP,
		Flags:      0,
		FragOffset: 100,
		SrcIP:      net.IPv4(10, 0, 1, 10).To4(),
		DstIP:      net.IPv4(10, 0, 4, 10).To4(),
	}

	frame := Decode(serialize(t, eth, ip, gopacket.Payload([]byte("fragment"))))
	if !frame.Complete || frame.IPv4 == nil {
		t.Fatalf("Unexpected frame: %v", spew.Sdump(frame))
	}
	if frame.IPv4.SrcPort != 0 || frame.IPv4.DstPort != 0 {
		t.Fatalf("Unexpected transport ports for a fragment: %v", frame.IPv4)
	}
}

func TestDecodeFirstFragment(t *testing.T) {
	eth := &layers.Ethernet{
		SrcMAC:       mustMAC("00:00:00:00:00:01"),
		DstMAC:       mustMAC("00:00:00:00:00:02"),
		EthernetType: layers.EthernetTypeIPv4,
	}
	ip := &layers.IPv4{
		Version:  4,
		TTL:      64,
		Protocol: layers.IPProtocolUDP,
		Flags:    layers.IPv4MoreFragments,
		SrcIP:    net.IPv4(10, 0, 1, 10).To4(),
		DstIP:    net.IPv4(10, 0, 4, 10).To4(),
	}
	udp := &layers.UDP{SrcPort: 40000, DstPort: 53}

	frame := Decode(serialize(t, eth, ip, udp, gopacket.Payload(make([]byte, 64))))
	if !frame.Complete || frame.IPv4 == nil {
		t.Fatalf("Unexpected frame: %v", spew.Sdump(frame))
	}
	if frame.IPv4.SrcPort != 40000 || frame.IPv4.DstPort != 53 || !frame.IPv4.IsDNS() {
		t.Fatalf("Unexpected transport ports for the first fragment: %v", frame.IPv4)
	}
}

func TestDecodeIncomplete(t *testing.T) {
	// Truncated in the middle of the IPv4 header.
	frame := Decode(udpFrame(t, 40000, 53)[:20])
	if frame.Complete {
		t.Fatalf("Expected an incomplete frame: %v", spew.Sdump(frame))
	}
	if frame.EtherType != EtherTypeIPv4 {
		t.Fatalf("Unexpected EtherType: expected=%v, got=%v", EtherTypeIPv4, frame.EtherType)
	}

	if Decode([]byte{0x01, 0x02, 0x03}).Complete {
		t.Fatal("Expected an incomplete frame for a runt")
	}
}

func TestDecodeIPv6(t *testing.T) {
	eth := &layers.Ethernet{
		SrcMAC:       mustMAC("00:00:00:00:00:01"),
		DstMAC:       mustMAC("00:00:00:00:00:02"),
		EthernetType: layers.EthernetTypeIPv6,
	}
	ip := &layers.IPv6{
		Version:    6,
		HopLimit:   64,
		NextHeader: layers.IPProtocolUDP,
		SrcIP:      net.ParseIP("fe80::1"),
		DstIP:      net.ParseIP("fe80::2"),
	}
	udp := &layers.UDP{SrcPort: 40000, DstPort: 40001}

	frame := Decode(serialize(t, eth, ip, udp))
	if !frame.Complete {
		t.Fatalf("Unexpected incomplete frame: %v", spew.Sdump(frame))
	}
	if frame.EtherType != EtherTypeIPv6 {
		t.Fatalf("Unexpected EtherType: expected=%v, got=%v", EtherTypeIPv6, frame.EtherType)
	}
	if frame.IPv4 != nil || frame.ARP != nil {
		t.Fatalf("Unexpected decoded layers: %v", spew.Sdump(frame))
	}
}
