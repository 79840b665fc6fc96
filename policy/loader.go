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
	"strconv"
	"strings"

	"github.com/superkkt/almond/openflow"

	"github.com/pkg/errors"
	"gopkg.in/ini.v1"
)

const (
	keySrc         = "src"
	keyDst         = "dst"
	keyProtocol    = "protocol"
	keySubProtocol = "sub_protocol"
	keyAction      = "action"
	keyPriority    = "priority"
	keySwitches    = "switches"
)

// Load reads rules from an INI source: a file name, a []byte or an io.Reader.
// Every section except the default one is a rule named after the section:
//
//	[block-untrusted-icmp]
//	src = 172.16.10.100
//	dst = any
//	protocol = ipv4
//	sub_protocol = icmp
//	action = deny
//	priority = 20
func Load(source interface{}) ([]Rule, error) {
	cfg, err := ini.Load(source)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load the policy file")
	}

	rules := make([]Rule, 0)
	for _, section := range cfg.Sections() {
		if section.Name() == ini.DefaultSection {
			continue
		}
		rule, err := parseRule(section)
		if err != nil {
			return nil, errors.Wrap(err, fmt.Sprintf("invalid policy rule %v", section.Name()))
		}
		rules = append(rules, rule)
	}
	logger.Infof("loaded %v policy rules", len(rules))

	return rules, nil
}

func parseRule(section *ini.Section) (Rule, error) {
	rule := Rule{Name: section.Name()}

	var err error
	if rule.Src, err = ParsePrefix(section.Key(keySrc).MustString("any")); err != nil {
		return Rule{}, err
	}
	if rule.Dst, err = ParsePrefix(section.Key(keyDst).MustString("any")); err != nil {
		return Rule{}, err
	}
	if section.HasKey(keyProtocol) {
		if rule.Protocol, err = parseProtocol(section.Key(keyProtocol).String()); err != nil {
			return Rule{}, err
		}
	}
	if section.HasKey(keySubProtocol) {
		if rule.SubProtocol, err = parseSubProtocol(section.Key(keySubProtocol).String()); err != nil {
			return Rule{}, err
		}
		// An IP protocol implies IPv4.
		if rule.Protocol == 0 {
			rule.Protocol = openflow.EtherTypeIPv4
		}
	}
	if !section.HasKey(keyAction) {
		return Rule{}, errors.New("missing action")
	}
	if rule.Action, err = ParseAction(section.Key(keyAction).String()); err != nil {
		return Rule{}, err
	}
	if section.HasKey(keyPriority) {
		p, err := section.Key(keyPriority).Uint()
		if err != nil || p > 0xFFFF {
			return Rule{}, fmt.Errorf("invalid priority: %v", section.Key(keyPriority).String())
		}
		rule.Priority = uint16(p)
	}
	if section.HasKey(keySwitches) {
		for _, v := range section.Key(keySwitches).Strings(",") {
			id, err := openflow.ParseSwitchID(v)
			if err != nil {
				return Rule{}, err
			}
			rule.Switches = append(rule.Switches, id)
		}
	}

	return rule, rule.validate()
}

// ParsePrefix accepts a CIDR prefix, a bare IPv4 address meaning a single host,
// or "any".
func ParsePrefix(s string) (netip.Prefix, error) {
	s = strings.TrimSpace(s)
	if strings.EqualFold(s, "any") || s == "*" {
		return netip.PrefixFrom(netip.IPv4Unspecified(), 0), nil
	}
	if strings.Contains(s, "/") {
		p, err := netip.ParsePrefix(s)
		if err != nil {
			return netip.Prefix{}, err
		}
		return p.Masked(), nil
	}
	addr, err := netip.ParseAddr(s)
	if err != nil {
		return netip.Prefix{}, err
	}

	return netip.PrefixFrom(addr, addr.BitLen()), nil
}

func parseProtocol(s string) (uint16, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "any", "":
		return 0, nil
	case "ipv4", "ip":
		return openflow.EtherTypeIPv4, nil
	case "arp":
		return openflow.EtherTypeARP, nil
	case "ipv6":
		return openflow.EtherTypeIPv6, nil
	}

	v, err := strconv.ParseUint(strings.TrimSpace(s), 0, 16)
	if err != nil {
		return 0, fmt.Errorf("invalid protocol: %v", s)
	}

	return uint16(v), nil
}

func parseSubProtocol(s string) (uint8, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "any", "":
		return 0, nil
	case "icmp":
		return 1, nil
	case "tcp":
		return 6, nil
	case "udp":
		return 17, nil
	}

	v, err := strconv.ParseUint(strings.TrimSpace(s), 0, 8)
	if err != nil {
		return 0, fmt.Errorf("invalid sub-protocol: %v", s)
	}

	return uint8(v), nil
}
