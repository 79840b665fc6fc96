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

package classifier

import (
	"fmt"

	"github.com/superkkt/almond/northbound/app"
	"github.com/superkkt/almond/openflow"
	"github.com/superkkt/almond/protocol"

	"github.com/op/go-logging"
)

var (
	logger = logging.MustGetLogger("classifier")
)

// Classifier is the head of the chain. It drops the frames no other processor
// handles and passes ARP and IPv4 frames on.
type Classifier struct {
	app.BaseProcessor
	dropDNS bool
}

func New(dropDNS bool) *Classifier {
	return &Classifier{
		dropDNS: dropDNS,
	}
}

func (r *Classifier) Name() string {
	return "Classifier"
}

// OnConnect installs the rule that drops IPv6 in the switch so that IPv6 frames
// never reach the controller.
func (r *Classifier) OnConnect(out *openflow.Batch, sw openflow.SwitchID) error {
	out.Install(openflow.FlowRule{
		Switch:   sw,
		Match:    openflow.Match{EtherType: openflow.EtherTypeIPv6},
		Priority: openflow.PriorityBaseline,
	})

	return r.BaseProcessor.OnConnect(out, sw)
}

func (r *Classifier) OnPacketIn(out *openflow.Batch, pkt *app.Packet) error {
	frame := pkt.Frame
	if frame == nil || !frame.Complete {
		logger.Warningf("ignoring incomplete packet: switch=%v, ingress=%v, length=%v", pkt.Switch, pkt.InPort, len(pkt.Data))
		return nil
	}

	switch frame.EtherType {
	case protocol.EtherTypeIPv6:
		logger.Debugf("drop IPv6 packet: switch=%v, ingress=%v", pkt.Switch, pkt.InPort)
		return nil
	case protocol.EtherTypeARP:
		return r.BaseProcessor.OnPacketIn(out, pkt)
	case protocol.EtherTypeIPv4:
		if r.dropDNS && frame.IPv4.IsDNS() {
			logger.Debugf("drop DNS packet: switch=%v, ingress=%v, src=%v, dst=%v", pkt.Switch, pkt.InPort, frame.IPv4.Src, frame.IPv4.Dst)
			return nil
		}
		return r.BaseProcessor.OnPacketIn(out, pkt)
	default:
		logger.Debugf("drop unsupported packet: switch=%v, ingress=%v, type=0x%04x", pkt.Switch, pkt.InPort, frame.EtherType)
		return nil
	}
}

func (r *Classifier) String() string {
	return fmt.Sprintf("%v (dropDNS=%v)", r.Name(), r.dropDNS)
}
