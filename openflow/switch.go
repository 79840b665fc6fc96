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

package openflow

import (
	"fmt"
	"strconv"
	"strings"
)

// SwitchID is the 64-bit datapath ID reported by a switch in its FEATURES_REPLY.
type SwitchID uint64

func (r SwitchID) String() string {
	return fmt.Sprintf("%016x", uint64(r))
}

// ParseSwitchID accepts a DPID written in decimal, in hexadecimal with a 0x prefix,
// or as eight colon-separated hexadecimal octets (00:00:00:00:00:00:00:01).
func ParseSwitchID(s string) (SwitchID, error) {
	s = strings.TrimSpace(s)
	if len(s) == 0 {
		return 0, fmt.Errorf("empty DPID")
	}

	var (
		v   uint64
		err error
	)
	switch {
	case strings.Contains(s, ":"):
		v, err = strconv.ParseUint(strings.Replace(s, ":", "", -1), 16, 64)
	case strings.HasPrefix(s, "0x"), strings.HasPrefix(s, "0X"):
		v, err = strconv.ParseUint(s[2:], 16, 64)
	default:
		v, err = strconv.ParseUint(s, 10, 64)
	}
	if err != nil {
		return 0, fmt.Errorf("invalid DPID: %v", s)
	}

	return SwitchID(v), nil
}

// Port is an OpenFlow 1.3 port number. Values above PortMax are reserved ports.
type Port uint32

const (
	PortMax        Port = 0xffffff00
	PortInPort     Port = 0xfffffff8
	PortFlood      Port = 0xfffffffb
	PortController Port = 0xfffffffd
	PortAny        Port = 0xffffffff
)

func (r Port) String() string {
	switch r {
	case PortInPort:
		return "IN_PORT"
	case PortFlood:
		return "FLOOD"
	case PortController:
		return "CONTROLLER"
	case PortAny:
		return "ANY"
	default:
		return strconv.FormatUint(uint64(r), 10)
	}
}

// IsReserved returns whether the port is one of the logical ports defined by the
// OpenFlow specification rather than a physical switch port.
func (r Port) IsReserved() bool {
	return r > PortMax
}
