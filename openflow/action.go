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
	"net"
	"strings"
)

type ActionType uint8

const (
	ActionOutput ActionType = iota
	ActionSetEthDst
)

// Action is a single apply-action of a flow rule or a packet out. The zero value
// of Port is meaningless for ActionSetEthDst and MAC is ignored for ActionOutput.
type Action struct {
	Type ActionType
	Port Port
	MAC  net.HardwareAddr
}

func Output(port Port) Action {
	return Action{Type: ActionOutput, Port: port}
}

// Flood sends the frame out of every port except the ingress one.
func Flood() Action {
	return Output(PortFlood)
}

// ToInPort returns the frame back out of its ingress port.
func ToInPort() Action {
	return Output(PortInPort)
}

func SetEthDst(mac net.HardwareAddr) Action {
	return Action{Type: ActionSetEthDst, MAC: mac}
}

func (r Action) String() string {
	switch r.Type {
	case ActionOutput:
		return fmt.Sprintf("output:%v", r.Port)
	case ActionSetEthDst:
		return fmt.Sprintf("set_eth_dst:%v", r.MAC)
	default:
		return fmt.Sprintf("unknown(%v)", r.Type)
	}
}

func formatActions(actions []Action) string {
	if len(actions) == 0 {
		return "drop"
	}

	s := make([]string, len(actions))
	for i, v := range actions {
		s[i] = v.String()
	}

	return strings.Join(s, ",")
}
