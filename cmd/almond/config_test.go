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

package main

import (
	"net/netip"
	"strings"
	"testing"

	"github.com/superkkt/almond/northbound"
	"github.com/superkkt/almond/northbound/app"
	"github.com/superkkt/almond/openflow"
	"github.com/superkkt/almond/policy"

	"github.com/davecgh/go-spew/spew"
	"github.com/google/go-cmp/cmp"
	"github.com/op/go-logging"
	"github.com/spf13/viper"
)

const sampleConfig = `
default:
  port: 6653
  log_level: debug
  log_backend: stderr
  role: edge-flood
  drop_dns: true
  policy_default: deny
gateways:
  - ip: 10.0.1.1
    mac: "02:00:00:00:00:01"
  - ip: 10.0.2.1
switches:
  - dpid: "0x10"
    role: core-router
    routes:
      - prefix: 10.0.4.0/24
        port: 3
        mac: "00:00:00:00:04:01"
      - prefix: 10.0.0.0/8
        port: 1
  - dpid: "00:00:00:00:00:00:00:11"
    role: policy-enforcing-core
rest:
  port: 8080
mysql:
  enable: true
  addr: 127.0.0.1:3306
  username: almond
  password: secret
  name: almond
`

func readConfig(t *testing.T, s string) *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetConfigType("yaml")
	if err := v.ReadConfig(strings.NewReader(s)); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	return v
}

func TestParseConfig(t *testing.T) {
	conf, err := parseConfig(readConfig(t, sampleConfig))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if conf.Port != 6653 || conf.LogLevel != logging.DEBUG || conf.LogBackend != "stderr" || conf.Role != app.EdgeFlood || !conf.DropDNS {
		t.Fatalf("Unexpected default section: %v", spew.Sdump(conf))
	}
	if conf.PolicyDefault == nil || *conf.PolicyDefault != policy.Deny {
		t.Fatalf("Unexpected policy default: %v", conf.PolicyDefault)
	}
	expectedGateways := []app.Gateway{
		{IP: netip.MustParseAddr("10.0.1.1"), MAC: []byte{2, 0, 0, 0, 0, 1}},
		{IP: netip.MustParseAddr("10.0.2.1")},
	}
	addrComparer := cmp.Comparer(func(a, b netip.Addr) bool { return a == b })
	if diff := cmp.Diff(expectedGateways, conf.Gateways, addrComparer); diff != "" {
		t.Fatalf("Unexpected gateways (-expected +got):\n%v", diff)
	}

	expectedSwitches := map[openflow.SwitchID]northbound.SwitchConfig{
		0x10: {
			Role: app.CoreRouter,
			Routes: []app.Route{
				{Prefix: netip.MustParsePrefix("10.0.4.0/24"), Port: 3, MAC: []byte{0, 0, 0, 0, 4, 1}},
				{Prefix: netip.MustParsePrefix("10.0.0.0/8"), Port: 1},
			},
		},
		0x11: {Role: app.PolicyEnforcingCore},
	}
	prefixComparer := cmp.Comparer(func(a, b netip.Prefix) bool { return a == b })
	if diff := cmp.Diff(expectedSwitches, conf.Switches, prefixComparer); diff != "" {
		t.Fatalf("Unexpected switches (-expected +got):\n%v", diff)
	}

	if conf.REST.Port != 8080 || conf.REST.Cert != "" {
		t.Fatalf("Unexpected REST config: %+v", conf.REST)
	}
	if !conf.MySQL.Enable || conf.MySQL.Addr != "127.0.0.1:3306" || conf.MySQL.Name != "almond" {
		t.Fatalf("Unexpected MySQL config: %+v", conf.MySQL)
	}
}

func TestParseConfigDefaults(t *testing.T) {
	conf, err := parseConfig(readConfig(t, "default:\n  log_backend: stderr\n"))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if conf.Port != 6633 || conf.LogLevel != logging.INFO || conf.Role != app.EdgeFlood || conf.PolicyDefault != nil {
		t.Fatalf("Unexpected defaults: %v", spew.Sdump(conf))
	}
	if len(conf.Gateways) != 0 || len(conf.Switches) != 0 || conf.MySQL.Enable {
		t.Fatalf("Unexpected defaults: %v", spew.Sdump(conf))
	}
}

func TestParseConfigInvalid(t *testing.T) {
	src := []string{
		"default:\n  port: 70000\n",
		"default:\n  log_level: verbose\n",
		"default:\n  log_backend: kafka\n",
		"default:\n  role: hub\n",
		"default:\n  policy_default: maybe\n",
		"gateways:\n  - ip: 10.0.1\n",
		"gateways:\n  - ip: 10.0.1.1\n    mac: zz:00:00:00:00:01\n",
		"switches:\n  - dpid: xyz\n    role: edge\n",
		"switches:\n  - dpid: \"1\"\n    role: edge\n  - dpid: \"0x1\"\n    role: router\n",
		"switches:\n  - dpid: \"1\"\n    role: router\n    routes:\n      - prefix: 10.0.0.0/33\n        port: 1\n",
		"switches:\n  - dpid: \"1\"\n    role: router\n    routes:\n      - prefix: 10.0.0.0/8\n        port: 0\n",
		"rest:\n  tls: true\n",
		"mysql:\n  enable: true\n",
	}

	for _, v := range src {
		if _, err := parseConfig(readConfig(t, v)); err == nil {
			t.Fatalf("Expected error for config:\n%v", v)
		}
	}
}

func TestLoadPolicy(t *testing.T) {
	set, err := loadPolicy("../../config/policy.ini")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(set.Rules()) != 2 {
		t.Fatalf("Unexpected number of rules: expected=2, got=%v", len(set.Rules()))
	}

	set, err = loadPolicy("")
	if err != nil || len(set.Rules()) != 0 {
		t.Fatalf("Unexpected result for an empty path: rules=%v, err=%v", set, err)
	}

	if _, err := loadPolicy("../../config/nonexistent.ini"); err == nil {
		t.Fatal("Expected error for a missing file")
	}
}
