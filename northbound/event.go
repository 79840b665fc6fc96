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

package northbound

import (
	"fmt"

	"github.com/superkkt/almond/openflow"
)

// Event is something a switch connection reports to the decision engine.
type Event interface {
	DPID() openflow.SwitchID
	String() string
}

// ConnectionEstablished is raised once the switch has completed the OpenFlow
// handshake and its DPID is known.
type ConnectionEstablished struct {
	Switch openflow.SwitchID
}

func (r ConnectionEstablished) DPID() openflow.SwitchID {
	return r.Switch
}

func (r ConnectionEstablished) String() string {
	return fmt.Sprintf("ConnectionEstablished(switch=%v)", r.Switch)
}

// PacketObserved carries a frame the switch sent to the controller. Data is the
// raw Ethernet frame as received on InPort.
type PacketObserved struct {
	Switch openflow.SwitchID
	InPort openflow.Port
	Data   []byte
}

func (r PacketObserved) DPID() openflow.SwitchID {
	return r.Switch
}

func (r PacketObserved) String() string {
	return fmt.Sprintf("PacketObserved(switch=%v, in_port=%v, length=%v)", r.Switch, r.InPort, len(r.Data))
}

// ConnectionLost is raised when the connection to the switch is closed.
type ConnectionLost struct {
	Switch openflow.SwitchID
}

func (r ConnectionLost) DPID() openflow.SwitchID {
	return r.Switch
}

func (r ConnectionLost) String() string {
	return fmt.Sprintf("ConnectionLost(switch=%v)", r.Switch)
}
