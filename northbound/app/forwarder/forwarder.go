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

package forwarder

import (
	"fmt"
	"time"

	"github.com/superkkt/almond/binding"
	"github.com/superkkt/almond/northbound/app"
	"github.com/superkkt/almond/openflow"
	"github.com/superkkt/almond/policy"
	"github.com/superkkt/almond/protocol"

	"github.com/op/go-logging"
)

var (
	logger = logging.MustGetLogger("forwarder")
)

// Journal records the frames dropped by the policy.
type Journal interface {
	AddDenial(policy.Denial)
}

// Forwarder decides what happens to IPv4 frames: policy first, then the
// destination binding, then the role fallback for unknown destinations.
type Forwarder struct {
	app.BaseProcessor
	role     app.Role
	bindings *binding.Table
	policy   *policy.Set
	routes   []app.Route
	journal  Journal
	// Unicast rules also match the source when the policy enforces some denials
	// per host pair.
	pairScoped bool
}

type Config struct {
	Role     app.Role
	Bindings *binding.Table
	Policy   *policy.Set
	Routes   []app.Route
	// Journal is optional.
	Journal Journal
}

func New(c Config) *Forwarder {
	if c.Bindings == nil {
		panic("nil binding table")
	}
	if c.Policy == nil {
		panic("nil policy set")
	}

	return &Forwarder{
		role:       c.Role,
		bindings:   c.Bindings,
		policy:     c.Policy,
		routes:     sortRoutes(c.Routes),
		journal:    c.Journal,
		pairScoped: c.Policy.PairScoped(),
	}
}

func (r *Forwarder) Name() string {
	return "Forwarder"
}

func (r *Forwarder) OnConnect(out *openflow.Batch, sw openflow.SwitchID) error {
	for _, v := range r.policy.Baseline(sw) {
		out.Install(v)
	}
	// Pair scoped routes are installed on demand once the policy allowed the pair.
	if r.role == app.CoreRouter && !r.pairScoped {
		for _, v := range r.routes {
			out.Install(routeRule(sw, v))
		}
	}

	return r.BaseProcessor.OnConnect(out, sw)
}

func (r *Forwarder) OnPacketIn(out *openflow.Batch, pkt *app.Packet) error {
	// IPv4?
	if pkt.Frame.EtherType != protocol.EtherTypeIPv4 || pkt.Frame.IPv4 == nil {
		return r.BaseProcessor.OnPacketIn(out, pkt)
	}
	ip := pkt.Frame.IPv4

	// A host without an address yet, e.g., a DHCP client.
	if !ip.Src.IsUnspecified() {
		r.bindings.Learn(pkt.Switch, ip.Src, pkt.Frame.SrcMAC, pkt.InPort)
	}

	d := r.policy.Evaluate(pkt.Switch, ip.Src, ip.Dst, protocol.EtherTypeIPv4, ip.Protocol)
	if d.Action == policy.Deny {
		logger.Infof("policy denied: switch=%v, ingress=%v, src=%v, dst=%v, protocol=%v, rule=%v", pkt.Switch, pkt.InPort, ip.Src, ip.Dst, ip.Protocol, d.RuleName())
		out.Install(d.Directive)
		r.record(pkt, d)
		return nil
	}

	dst, ok := r.bindings.Lookup(pkt.Switch, ip.Dst)
	if ok {
		return r.forward(out, pkt, dst)
	}

	switch r.role {
	case app.EdgeFlood:
		logger.Debugf("flooding packet to unknown destination: switch=%v, ingress=%v, dst=%v", pkt.Switch, pkt.InPort, ip.Dst)
		r.flood(out, pkt)
	case app.CoreRouter:
		route, ok := lookupRoute(r.routes, ip.Dst)
		if !ok {
			logger.Debugf("drop packet without route: switch=%v, ingress=%v, dst=%v", pkt.Switch, pkt.InPort, ip.Dst)
			return nil
		}
		r.route(out, pkt, route)
	default:
		logger.Debugf("drop packet to unknown destination: switch=%v, ingress=%v, dst=%v", pkt.Switch, pkt.InPort, ip.Dst)
	}

	return nil
}

func (r *Forwarder) forward(out *openflow.Batch, pkt *app.Packet, dst binding.Binding) error {
	// Hairpin?
	if dst.Port == pkt.InPort {
		logger.Debugf("drop hairpin packet: switch=%v, ingress=%v, dst=%v", pkt.Switch, pkt.InPort, dst.IP)
		return nil
	}

	actions := []openflow.Action{openflow.SetEthDst(dst.MAC), openflow.Output(dst.Port)}
	match := openflow.Match{
		EtherType: protocol.EtherTypeIPv4,
		Dst:       hostPrefix(dst.IP),
	}
	if r.pairScoped {
		match.Src = hostPrefix(pkt.Frame.IPv4.Src)
	}
	out.Install(openflow.FlowRule{
		Switch:   pkt.Switch,
		Match:    match,
		Actions:  actions,
		Priority: openflow.PriorityUnicast,
	})
	out.Emit(openflow.PacketOut{
		Switch:  pkt.Switch,
		InPort:  pkt.InPort,
		Data:    pkt.Data,
		Actions: actions,
	})
	logger.Debugf("forwarding packet: switch=%v, ingress=%v, egress=%v, dst=%v (%v)", pkt.Switch, pkt.InPort, dst.Port, dst.IP, dst.MAC)

	return nil
}

func (r *Forwarder) flood(out *openflow.Batch, pkt *app.Packet) {
	out.Emit(openflow.PacketOut{
		Switch:  pkt.Switch,
		InPort:  pkt.InPort,
		Data:    pkt.Data,
		Actions: []openflow.Action{openflow.Flood()},
	})
}

func (r *Forwarder) route(out *openflow.Batch, pkt *app.Packet, route app.Route) {
	if route.Port == pkt.InPort {
		logger.Debugf("drop packet routed back to its ingress: switch=%v, ingress=%v, route=%v", pkt.Switch, pkt.InPort, route)
		return
	}
	if r.pairScoped {
		rule := routeRule(pkt.Switch, route)
		rule.Match.Src = hostPrefix(pkt.Frame.IPv4.Src)
		rule.Match.Dst = hostPrefix(pkt.Frame.IPv4.Dst)
		out.Install(rule)
	}
	out.Emit(openflow.PacketOut{
		Switch:  pkt.Switch,
		InPort:  pkt.InPort,
		Data:    pkt.Data,
		Actions: routeActions(route),
	})
}

func (r *Forwarder) record(pkt *app.Packet, d policy.Decision) {
	if r.journal == nil {
		return
	}

	r.journal.AddDenial(policy.Denial{
		Time:        time.Now(),
		Switch:      pkt.Switch,
		Src:         pkt.Frame.IPv4.Src,
		Dst:         pkt.Frame.IPv4.Dst,
		SubProtocol: pkt.Frame.IPv4.Protocol,
		Rule:        d.RuleName(),
	})
}

func (r *Forwarder) String() string {
	return fmt.Sprintf("%v (role=%v, routes=%v, bindings=%v)", r.Name(), r.role, len(r.routes), r.bindings.Len())
}
