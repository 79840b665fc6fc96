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

package binding

import (
	"net"
	"net/netip"
	"testing"

	"github.com/google/go-cmp/cmp"
)

var addrComparer = cmp.Comparer(func(a, b netip.Addr) bool { return a == b })

func mustMAC(s string) net.HardwareAddr {
	mac, err := net.ParseMAC(s)
	if err != nil {
		panic(err)
	}

	return mac
}

func TestLearnOverwrite(t *testing.T) {
	table := NewTable()
	ip := netip.MustParseAddr("10.0.1.10")

	table.Learn(1, ip, mustMAC("00:00:00:00:00:01"), 1)
	table.Learn(1, ip, mustMAC("00:00:00:00:00:02"), 2)

	got, ok := table.Lookup(1, ip)
	if !ok {
		t.Fatalf("Expected binding for %v", ip)
	}
	expected := Binding{Switch: 1, IP: ip, MAC: mustMAC("00:00:00:00:00:02"), Port: 2}
	if diff := cmp.Diff(expected, got, addrComparer); diff != "" {
		t.Fatalf("Unexpected binding (-expected +got):\n%v", diff)
	}
	if table.Len() != 1 {
		t.Fatalf("Unexpected table length: expected=1, got=%v", table.Len())
	}
}

func TestSwitchIsolation(t *testing.T) {
	table := NewTable()
	ip := netip.MustParseAddr("10.0.1.10")

	table.Learn(1, ip, mustMAC("00:00:00:00:00:01"), 1)
	if _, ok := table.Lookup(2, ip); ok {
		t.Fatal("Unexpected binding learned on another switch")
	}
	if _, ok := table.Lookup(1, netip.MustParseAddr("10.0.1.11")); ok {
		t.Fatal("Unexpected binding for an unknown address")
	}
}

func TestLearnCopiesMAC(t *testing.T) {
	table := NewTable()
	ip := netip.MustParseAddr("10.0.1.10")
	mac := mustMAC("00:00:00:00:00:01")

	table.Learn(1, ip, mac, 1)
	mac[5] = 0xff

	got, _ := table.Lookup(1, ip)
	if got.MAC.String() != "00:00:00:00:00:01" {
		t.Fatalf("Unexpected MAC: expected=00:00:00:00:00:01, got=%v", got.MAC)
	}
}

func TestBindingsSnapshot(t *testing.T) {
	table := NewTable()
	table.Learn(1, netip.MustParseAddr("10.0.1.20"), mustMAC("00:00:00:00:00:02"), 2)
	table.Learn(1, netip.MustParseAddr("10.0.1.3"), mustMAC("00:00:00:00:00:01"), 1)
	table.Learn(2, netip.MustParseAddr("10.0.1.5"), mustMAC("00:00:00:00:00:03"), 3)

	expected := []Binding{
		{Switch: 1, IP: netip.MustParseAddr("10.0.1.3"), MAC: mustMAC("00:00:00:00:00:01"), Port: 1},
		{Switch: 1, IP: netip.MustParseAddr("10.0.1.20"), MAC: mustMAC("00:00:00:00:00:02"), Port: 2},
	}
	if diff := cmp.Diff(expected, table.Bindings(1), addrComparer); diff != "" {
		t.Fatalf("Unexpected bindings (-expected +got):\n%v", diff)
	}
}
