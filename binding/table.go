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

// Package binding keeps the IP to (MAC, port) bindings learned from the frames
// a switch reports to the controller.
package binding

import (
	"bytes"
	"fmt"
	"net"
	"net/netip"
	"sort"
	"sync"

	"github.com/superkkt/almond/openflow"

	"github.com/op/go-logging"
)

var (
	logger = logging.MustGetLogger("binding")
)

type Binding struct {
	Switch openflow.SwitchID
	IP     netip.Addr
	MAC    net.HardwareAddr
	Port   openflow.Port
}

func (r Binding) String() string {
	return fmt.Sprintf("Binding(switch=%v, ip=%v, mac=%v, port=%v)", r.Switch, r.IP, r.MAC, r.Port)
}

type key struct {
	sw openflow.SwitchID
	ip netip.Addr
}

// Table holds at most one binding per (switch, IP). The latest observation always
// wins; stale entries are overwritten, never aged out.
type Table struct {
	mu      sync.RWMutex
	entries map[key]Binding
}

func NewTable() *Table {
	return &Table{
		entries: make(map[key]Binding),
	}
}

func (r *Table) Learn(sw openflow.SwitchID, ip netip.Addr, mac net.HardwareAddr, port openflow.Port) {
	r.mu.Lock()
	defer r.mu.Unlock()

	k := key{sw: sw, ip: ip}
	if prev, ok := r.entries[k]; ok && (!bytes.Equal(prev.MAC, mac) || prev.Port != port) {
		logger.Infof("binding moved: switch=%v, ip=%v, mac=%v->%v, port=%v->%v", sw, ip, prev.MAC, mac, prev.Port, port)
	}
	// Copy the MAC address because it may point into a packet buffer.
	v := make(net.HardwareAddr, len(mac))
	copy(v, mac)
	r.entries[k] = Binding{Switch: sw, IP: ip, MAC: v, Port: port}
}

func (r *Table) Lookup(sw openflow.SwitchID, ip netip.Addr) (Binding, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	v, ok := r.entries[key{sw: sw, ip: ip}]
	return v, ok
}

func (r *Table) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.entries)
}

// Bindings returns a snapshot of the bindings learned on the switch, ordered by IP address.
func (r *Table) Bindings(sw openflow.SwitchID) []Binding {
	r.mu.RLock()
	result := make([]Binding, 0, len(r.entries))
	for k, v := range r.entries {
		if k.sw != sw {
			continue
		}
		result = append(result, v)
	}
	r.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool { return result[i].IP.Less(result[j].IP) })

	return result
}
