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

package core

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/netip"
	"testing"
	"time"

	"github.com/superkkt/almond/api"
	"github.com/superkkt/almond/binding"
	"github.com/superkkt/almond/northbound"
	"github.com/superkkt/almond/northbound/app"
	"github.com/superkkt/almond/northbound/app/apptest"
	"github.com/superkkt/almond/openflow"
	"github.com/superkkt/almond/policy"

	"github.com/ant0ine/go-json-rest/rest/test"
	"github.com/google/go-cmp/cmp"
)

type mockController struct{}

func (r *mockController) Switches() []northbound.SwitchStatus {
	return []northbound.SwitchStatus{{ID: 0x10, Role: app.PolicyEnforcingCore, Bindings: 1}}
}

func (r *mockController) Bindings(id openflow.SwitchID) ([]binding.Binding, bool) {
	if id != 0x10 {
		return nil, false
	}

	return []binding.Binding{
		{Switch: 0x10, IP: apptest.IP("10.0.1.10"), MAC: apptest.MAC("00:00:00:00:00:0a"), Port: 3},
	}, true
}

func (r *mockController) Rules() []policy.Rule {
	return []policy.Rule{
		{Name: "block-untrusted-icmp", Src: netip.MustParsePrefix("172.16.10.100/32"), Dst: netip.MustParsePrefix("0.0.0.0/0"), SubProtocol: 1, Action: policy.Deny, Priority: 20},
	}
}

type mockJournal struct {
	limit int
	err   error
}

func (r *mockJournal) Denials(limit int) ([]policy.Denial, error) {
	r.limit = limit
	if r.err != nil {
		return nil, r.err
	}

	return []policy.Denial{
		{Time: time.Unix(1500000000, 0).UTC(), Switch: 0x10, Src: apptest.IP("172.16.10.100"), Dst: apptest.IP("10.0.4.1"), SubProtocol: 1, Rule: "block-untrusted-icmp"},
	}, nil
}

type response struct {
	Status  api.Status      `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func request(t *testing.T, a *API, url string) response {
	handler, err := a.Handler(a.routes()...)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	recorded := test.RunRequest(t, handler, test.MakeSimpleRequest("GET", "http://localhost"+url, nil))
	recorded.CodeIs(http.StatusOK)
	recorded.ContentTypeIsJson()
	resp := response{}
	if err := recorded.DecodeJsonPayload(&resp); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if recorded.Recorder.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Fatal("Expected the CORS header")
	}

	return resp
}

func newAPI(j api.Journal) *API {
	a := &API{}
	a.Controller = &mockController{}
	a.Journal = j

	return a
}

func TestNilController(t *testing.T) {
	a := &API{}
	if _, err := a.Handler(a.routes()...); err == nil {
		t.Fatal("Expected error for a nil controller")
	}
}

func TestListSwitch(t *testing.T) {
	resp := request(t, newAPI(nil), "/api/v1/switch")
	if resp.Status != api.StatusOkay {
		t.Fatalf("Unexpected status: expected=%v, got=%v", api.StatusOkay, resp.Status)
	}

	var got []switchView
	if err := json.Unmarshal(resp.Data, &got); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	expected := []switchView{{DPID: "0000000000000010", Role: "policy-enforcing-core", Bindings: 1}}
	if diff := cmp.Diff(expected, got); diff != "" {
		t.Fatalf("Unexpected switches (-expected +got):\n%v", diff)
	}
}

func TestListBinding(t *testing.T) {
	a := newAPI(nil)

	resp := request(t, a, "/api/v1/binding/0x10")
	if resp.Status != api.StatusOkay {
		t.Fatalf("Unexpected status: expected=%v, got=%v (%v)", api.StatusOkay, resp.Status, resp.Message)
	}
	var got []bindingView
	if err := json.Unmarshal(resp.Data, &got); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(got) != 1 || got[0].IP != apptest.IP("10.0.1.10") || got[0].MAC != "00:00:00:00:00:0a" || got[0].Port != 3 {
		t.Fatalf("Unexpected bindings: %+v", got)
	}

	if resp := request(t, a, "/api/v1/binding/17"); resp.Status != api.StatusNotFound {
		t.Fatalf("Unexpected status: expected=%v, got=%v", api.StatusNotFound, resp.Status)
	}
	if resp := request(t, a, "/api/v1/binding/xyz"); resp.Status != api.StatusInvalidParameter {
		t.Fatalf("Unexpected status: expected=%v, got=%v", api.StatusInvalidParameter, resp.Status)
	}
}

func TestListPolicy(t *testing.T) {
	resp := request(t, newAPI(nil), "/api/v1/policy")
	if resp.Status != api.StatusOkay {
		t.Fatalf("Unexpected status: expected=%v, got=%v", api.StatusOkay, resp.Status)
	}

	var got []map[string]interface{}
	if err := json.Unmarshal(resp.Data, &got); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(got) != 1 || got[0]["name"] != "block-untrusted-icmp" || got[0]["action"] != "deny" || got[0]["src"] != "172.16.10.100/32" {
		t.Fatalf("Unexpected rules: %v", got)
	}
}

func TestListDenial(t *testing.T) {
	if resp := request(t, newAPI(nil), "/api/v1/denial"); resp.Status != api.StatusServiceUnavailable {
		t.Fatalf("Unexpected status without a journal: expected=%v, got=%v", api.StatusServiceUnavailable, resp.Status)
	}

	j := &mockJournal{}
	a := newAPI(j)
	resp := request(t, a, "/api/v1/denial")
	if resp.Status != api.StatusOkay || j.limit != defaultDenialLimit {
		t.Fatalf("Unexpected result: status=%v, limit=%v", resp.Status, j.limit)
	}
	var got []policy.Denial
	if err := json.Unmarshal(resp.Data, &got); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(got) != 1 || got[0].Rule != "block-untrusted-icmp" || got[0].Src != apptest.IP("172.16.10.100") {
		t.Fatalf("Unexpected denials: %+v", got)
	}

	if resp := request(t, a, "/api/v1/denial?limit=5"); resp.Status != api.StatusOkay || j.limit != 5 {
		t.Fatalf("Unexpected result: status=%v, limit=%v", resp.Status, j.limit)
	}
	for _, v := range []string{"0", "-1", "1001", "abc"} {
		if resp := request(t, a, "/api/v1/denial?limit="+v); resp.Status != api.StatusInvalidParameter {
			t.Fatalf("Unexpected status for limit=%v: expected=%v, got=%v", v, api.StatusInvalidParameter, resp.Status)
		}
	}

	j.err = errors.New("connection refused")
	if resp := request(t, a, "/api/v1/denial"); resp.Status != api.StatusInternalServerError {
		t.Fatalf("Unexpected status: expected=%v, got=%v", api.StatusInternalServerError, resp.Status)
	}
}
