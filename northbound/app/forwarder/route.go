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
	"net/netip"
	"sort"

	"github.com/superkkt/almond/northbound/app"
	"github.com/superkkt/almond/openflow"
	"github.com/superkkt/almond/protocol"
)

// sortRoutes returns a copy ordered from the longest prefix to the shortest.
func sortRoutes(routes []app.Route) []app.Route {
	v := make([]app.Route, len(routes))
	copy(v, routes)
	sort.SliceStable(v, func(i, j int) bool { return v[i].Prefix.Bits() > v[j].Prefix.Bits() })

	return v
}

// lookupRoute expects routes sorted by sortRoutes.
func lookupRoute(routes []app.Route, dst netip.Addr) (app.Route, bool) {
	for _, v := range routes {
		if v.Prefix.Contains(dst) {
			return v, true
		}
	}

	return app.Route{}, false
}

func routeActions(route app.Route) []openflow.Action {
	actions := make([]openflow.Action, 0, 2)
	if route.MAC != nil {
		actions = append(actions, openflow.SetEthDst(route.MAC))
	}

	return append(actions, openflow.Output(route.Port))
}

// routeRule returns the flow rule of a static route. Longer prefixes get higher
// priorities so that the switch also performs a longest prefix match.
func routeRule(sw openflow.SwitchID, route app.Route) openflow.FlowRule {
	return openflow.FlowRule{
		Switch: sw,
		Match: openflow.Match{
			EtherType: protocol.EtherTypeIPv4,
			Dst:       route.Prefix,
		},
		Actions:  routeActions(route),
		Priority: openflow.PriorityRoute - 32 + uint16(route.Prefix.Bits()),
	}
}

func hostPrefix(ip netip.Addr) netip.Prefix {
	return netip.PrefixFrom(ip, ip.BitLen())
}
