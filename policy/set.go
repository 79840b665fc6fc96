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

package policy

import (
	"fmt"
	"net/netip"
	"sort"
	"time"

	"github.com/superkkt/almond/openflow"
)

// Decision is the result of a policy evaluation. Rule is nil when no rule matched
// and the default action was applied. Directive is only meaningful for Deny.
type Decision struct {
	Action    Action
	Rule      *Rule
	Directive openflow.FlowRule
}

func (r Decision) RuleName() string {
	if r.Rule == nil {
		return "default"
	}

	return r.Rule.Name
}

// Denial records a single frame dropped by the policy.
type Denial struct {
	Time        time.Time         `json:"time"`
	Switch      openflow.SwitchID `json:"switch"`
	Src         netip.Addr        `json:"src"`
	Dst         netip.Addr        `json:"dst"`
	SubProtocol uint8             `json:"sub_protocol"`
	Rule        string            `json:"rule"`
}

// Set is an immutable, ordered collection of rules. It is safe for concurrent use.
type Set struct {
	rules []Rule
	// narrow[i] is true if an earlier allow rule overlaps rules[i]. Such a deny rule
	// is enforced per host pair instead of for its whole prefixes.
	narrow []bool
	def    Action
}

// NewSet orders the rules by descending priority, then by descending prefix
// specificity, then by declaration order.
func NewSet(def Action, rules ...Rule) (*Set, error) {
	v := make([]Rule, len(rules))
	copy(v, rules)
	for _, r := range v {
		if err := r.validate(); err != nil {
			return nil, fmt.Errorf("rule %v: %v", r.Name, err)
		}
	}
	sort.SliceStable(v, func(i, j int) bool {
		if v[i].Priority != v[j].Priority {
			return v[i].Priority > v[j].Priority
		}
		return v[i].specificity() > v[j].specificity()
	})

	narrow := make([]bool, len(v))
	for i := range v {
		if v[i].Action != Deny {
			continue
		}
		for j := 0; j < i; j++ {
			if v[j].Action == Allow && v[j].overlaps(v[i]) {
				narrow[i] = true
				break
			}
		}
	}

	return &Set{rules: v, narrow: narrow, def: def}, nil
}

// WithDefault returns a set sharing the same rules with another default action.
func (r *Set) WithDefault(def Action) *Set {
	return &Set{rules: r.rules, narrow: r.narrow, def: def}
}

func (r *Set) Default() Action {
	return r.def
}

// PairScoped returns whether some denials are only enforced per host pair. Flow
// rules forwarding allowed traffic must then match the source too, or they would
// admit the pairs the switch has not been told to drop yet.
func (r *Set) PairScoped() bool {
	if r.def == Deny {
		return true
	}
	for _, v := range r.narrow {
		if v {
			return true
		}
	}

	return false
}

// Rules returns the rules in evaluation order.
func (r *Set) Rules() []Rule {
	v := make([]Rule, len(r.rules))
	copy(v, r.rules)

	return v
}

// Evaluate returns the action of the first rule matching the traffic. When the
// action is Deny, the decision carries a drop rule for the switch so that
// subsequent packets are blocked without the controller.
func (r *Set) Evaluate(sw openflow.SwitchID, src, dst netip.Addr, protocol uint16, subProtocol uint8) Decision {
	for i := range r.rules {
		rule := &r.rules[i]
		if !rule.match(sw, src, dst, protocol, subProtocol) {
			continue
		}
		logger.Debugf("policy rule matched: switch=%v, src=%v, dst=%v, rule=%v", sw, src, dst, rule.Name)

		d := Decision{Action: rule.Action, Rule: rule}
		if rule.Action == Deny {
			d.Directive = rule.directive(sw)
			if r.narrow[i] {
				d.Directive.Match.Src = netip.PrefixFrom(src, 32)
				d.Directive.Match.Dst = netip.PrefixFrom(dst, 32)
			}
		}
		return d
	}

	d := Decision{Action: r.def}
	if r.def == Deny {
		d.Directive = openflow.FlowRule{
			Switch: sw,
			Match: openflow.Match{
				EtherType: openflow.EtherTypeIPv4,
				Src:       netip.PrefixFrom(src, 32),
				Dst:       netip.PrefixFrom(dst, 32),
			},
			Priority: openflow.PriorityDenyBase,
		}
	}

	return d
}

// Baseline returns the drop rules of every deny rule applicable to the switch
// that no allow rule takes precedence over. They are installed proactively when
// the switch connects.
func (r *Set) Baseline(sw openflow.SwitchID) []openflow.FlowRule {
	result := make([]openflow.FlowRule, 0)
	for i, v := range r.rules {
		if v.Action != Deny || r.narrow[i] || !v.appliesTo(sw) {
			continue
		}
		result = append(result, v.directive(sw))
	}

	return result
}
