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

package proxyarp

import (
	"fmt"
	"net"
	"net/netip"

	"github.com/superkkt/almond/binding"
	"github.com/superkkt/almond/northbound/app"
	"github.com/superkkt/almond/openflow"
	"github.com/superkkt/almond/protocol"

	"github.com/op/go-logging"
	"github.com/pkg/errors"
)

var (
	logger = logging.MustGetLogger("proxyarp")
)

// ProxyARP answers ARP requests on behalf of the gateways and the hosts whose
// bindings are known. Requests for anything else are dropped, never broadcast.
type ProxyARP struct {
	app.BaseProcessor
	bindings *binding.Table
	gateways map[netip.Addr]net.HardwareAddr
}

func New(bindings *binding.Table, gateways []app.Gateway) *ProxyARP {
	g := make(map[netip.Addr]net.HardwareAddr)
	for _, v := range gateways {
		g[v.IP] = v.MAC
	}

	return &ProxyARP{
		bindings: bindings,
		gateways: g,
	}
}

func (r *ProxyARP) Name() string {
	return "ProxyARP"
}

func (r *ProxyARP) OnPacketIn(out *openflow.Batch, pkt *app.Packet) error {
	// ARP?
	if pkt.Frame.EtherType != protocol.EtherTypeARP || pkt.Frame.ARP == nil {
		return r.BaseProcessor.OnPacketIn(out, pkt)
	}

	arp := pkt.Frame.ARP
	logger.Debugf("received ARP packet.. switch=%v, ingress=%v, %v", pkt.Switch, pkt.InPort, arp)

	// Every ARP packet tells us where its sender is.
	if arp.SPA.IsValid() && !arp.SPA.IsUnspecified() {
		r.bindings.Learn(pkt.Switch, arp.SPA, arp.SHA, pkt.InPort)
	}
	if arp.IsAnnouncement() {
		logger.Debugf("ARP announcement from %v (%v)", arp.SPA, arp.SHA)
		return nil
	}
	// ARP request?
	if arp.Operation != protocol.ARPRequest {
		return nil
	}

	mac, ok := r.resolve(pkt.Switch, arp.TPA)
	if !ok {
		logger.Debugf("drop the ARP request for unknown host (%v)", arp.TPA)
		return nil
	}
	logger.Debugf("ARP request for %v (%v)", arp.TPA, mac)

	reply, err := protocol.NewARPReply(mac, arp.TPA, arp.SHA, arp.SPA)
	if err != nil {
		return errors.Wrap(err, "failed to make an ARP reply")
	}
	logger.Debugf("sending ARP reply to %v..", pkt.InPort)
	app.PacketOut(out, pkt.Switch, pkt.InPort, reply)

	return nil
}

func (r *ProxyARP) resolve(sw openflow.SwitchID, ip netip.Addr) (net.HardwareAddr, bool) {
	if mac, ok := r.gateways[ip]; ok {
		if mac == nil {
			mac = app.SwitchMAC(sw)
		}
		return mac, true
	}

	v, ok := r.bindings.Lookup(sw, ip)
	if !ok {
		return nil, false
	}

	return v.MAC, true
}

func (r *ProxyARP) String() string {
	return fmt.Sprintf("%v (gateways=%v)", r.Name(), len(r.gateways))
}
