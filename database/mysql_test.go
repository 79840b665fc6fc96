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

package database

import (
	"errors"
	"net/netip"
	"testing"
	"time"

	"github.com/superkkt/almond/policy"

	"github.com/go-sql-driver/mysql"
)

func TestValidateClusterAddr(t *testing.T) {
	src := []struct {
		addr  string
		valid bool
	}{
		{"127.0.0.1:3306", true},
		{"127.0.0.1:3306, 127.0.0.2:3306", true},
		{"", false},
		{"127.0.0.1", false},
	}

	for _, v := range src {
		err := validateClusterAddr(v.addr)
		if (err == nil) != v.valid {
			t.Fatalf("Unexpected result for %q: expected valid=%v, got err=%v", v.addr, v.valid, err)
		}
	}
}

func TestIsDeadlock(t *testing.T) {
	if !isDeadlock(&mysql.MySQLError{Number: 1213, Message: "Deadlock found"}) {
		t.Fatal("Expected deadlock")
	}
	if isDeadlock(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry"}) {
		t.Fatal("Unexpected deadlock for a duplicated entry error")
	}
	if isDeadlock(errors.New("connection refused")) {
		t.Fatal("Unexpected deadlock for a generic error")
	}
}

func TestIPv4Encoding(t *testing.T) {
	ip := netip.MustParseAddr("172.16.10.100")
	v, err := encodeIPv4(ip)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if v != 0xac100a64 {
		t.Fatalf("Unexpected encoded value: expected=0xac100a64, got=0x%x", v)
	}
	if got := decodeIPv4(v); got != ip {
		t.Fatalf("Unexpected decoded address: expected=%v, got=%v", ip, got)
	}

	if _, err := encodeIPv4(netip.MustParseAddr("2001:db8::1")); err == nil {
		t.Fatal("Expected error for an IPv6 address")
	}
}

func TestQueueOverflow(t *testing.T) {
	// No writer drains the queue.
	journal := newMySQL(nil, 2)
	d := policy.Denial{
		Time:        time.Now(),
		Switch:      1,
		Src:         netip.MustParseAddr("172.16.10.100"),
		Dst:         netip.MustParseAddr("10.0.4.1"),
		SubProtocol: 1,
		Rule:        "block-untrusted-icmp",
	}

	for i := 0; i < 5; i++ {
		journal.AddDenial(d)
	}
	if len(journal.queue) != 2 {
		t.Fatalf("Unexpected queue length: expected=2, got=%v", len(journal.queue))
	}
	if journal.Dropped() != 3 {
		t.Fatalf("Unexpected number of discarded denials: expected=3, got=%v", journal.Dropped())
	}
}

func TestDenialsInvalidLimit(t *testing.T) {
	journal := newMySQL(nil, 1)
	if _, err := journal.Denials(0); err == nil {
		t.Fatal("Expected error for a zero limit")
	}
}
