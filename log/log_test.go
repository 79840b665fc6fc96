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

package log

import (
	"strconv"
	"testing"

	"github.com/op/go-logging"
)

func TestParseLevel(t *testing.T) {
	src := []struct {
		name     string
		expected logging.Level
		valid    bool
	}{
		{"debug", logging.DEBUG, true},
		{"INFO", logging.INFO, true},
		{"Notice", logging.NOTICE, true},
		{"warning", logging.WARNING, true},
		{"error", logging.ERROR, true},
		{"critical", logging.CRITICAL, true},
		{"verbose", 0, false},
		{"", 0, false},
	}

	for _, v := range src {
		level, err := ParseLevel(v.name)
		if (err == nil) != v.valid {
			t.Fatalf("Unexpected result for %q: err=%v", v.name, err)
		}
		if v.valid && level != v.expected {
			t.Fatalf("Unexpected level for %q: expected=%v, got=%v", v.name, v.expected, level)
		}
	}
}

func TestNewBackend(t *testing.T) {
	if b, err := NewBackend("STDERR", "almond"); err != nil || b == nil {
		t.Fatalf("Unexpected result: backend=%v, err=%v", b, err)
	}
	if _, err := NewBackend("kafka", "almond"); err == nil {
		t.Fatal("Expected error for an unknown backend")
	}
}

func TestGoRoutineID(t *testing.T) {
	id := getGoRoutineID()
	if _, err := strconv.ParseUint(id, 10, 64); err != nil {
		t.Fatalf("Unexpected goroutine ID: %v", id)
	}
}
