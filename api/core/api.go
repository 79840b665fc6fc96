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
	"errors"
	"net/netip"
	"strconv"
	"time"

	"github.com/superkkt/almond/api"
	"github.com/superkkt/almond/openflow"

	"github.com/ant0ine/go-json-rest/rest"
	"github.com/davecgh/go-spew/spew"
	"github.com/op/go-logging"
)

var (
	logger = logging.MustGetLogger("core")
)

const (
	defaultDenialLimit = 100
	maxDenialLimit     = 1000
)

type API struct {
	api.Server
}

func (r *API) routes() []*rest.Route {
	return []*rest.Route{
		rest.Get("/api/v1/switch", r.listSwitch),
		rest.Get("/api/v1/binding/:dpid", r.listBinding),
		rest.Get("/api/v1/policy", r.listPolicy),
		rest.Get("/api/v1/denial", r.listDenial),
	}
}

func (r *API) Serve() error {
	return r.Server.Serve(r.routes()...)
}

type switchView struct {
	DPID     string    `json:"dpid"`
	Role     string    `json:"role"`
	Bindings int       `json:"bindings"`
	Since    time.Time `json:"since"`
}

func (r *API) listSwitch(w rest.ResponseWriter, req *rest.Request) {
	logger.Debugf("switch list request from %v", req.RemoteAddr)

	switches := r.Controller.Switches()
	result := make([]switchView, len(switches))
	for i, v := range switches {
		result[i] = switchView{
			DPID:     v.ID.String(),
			Role:     v.Role.String(),
			Bindings: v.Bindings,
			Since:    v.Since,
		}
	}

	w.WriteJson(api.Okay(result))
}

type bindingView struct {
	IP   netip.Addr `json:"ip"`
	MAC  string     `json:"mac"`
	Port uint32     `json:"port"`
}

func (r *API) listBinding(w rest.ResponseWriter, req *rest.Request) {
	dpid, err := openflow.ParseSwitchID(req.PathParam("dpid"))
	if err != nil {
		w.WriteJson(api.Failure(api.StatusInvalidParameter, err))
		return
	}
	logger.Debugf("binding list request from %v: dpid=%v", req.RemoteAddr, dpid)

	bindings, ok := r.Controller.Bindings(dpid)
	if !ok {
		w.WriteJson(api.Response{Status: api.StatusNotFound, Message: "unknown switch: " + dpid.String()})
		return
	}
	result := make([]bindingView, len(bindings))
	for i, v := range bindings {
		result[i] = bindingView{
			IP:   v.IP,
			MAC:  v.MAC.String(),
			Port: uint32(v.Port),
		}
	}

	w.WriteJson(api.Okay(result))
}

func (r *API) listPolicy(w rest.ResponseWriter, req *rest.Request) {
	logger.Debugf("policy list request from %v", req.RemoteAddr)

	w.WriteJson(api.Okay(r.Controller.Rules()))
}

type denialParam struct {
	Limit int
}

func parseDenialParam(req *rest.Request) (*denialParam, error) {
	p := &denialParam{Limit: defaultDenialLimit}

	v := req.URL.Query().Get("limit")
	if v == "" {
		return p, nil
	}
	limit, err := strconv.Atoi(v)
	if err != nil {
		return nil, errors.New("invalid limit: " + v)
	}
	if limit <= 0 || limit > maxDenialLimit {
		return nil, errors.New("limit out of range: " + v)
	}
	p.Limit = limit

	return p, nil
}

func (r *API) listDenial(w rest.ResponseWriter, req *rest.Request) {
	if r.Journal == nil {
		w.WriteJson(api.Response{Status: api.StatusServiceUnavailable, Message: "denial journal is disabled"})
		return
	}

	p, err := parseDenialParam(req)
	if err != nil {
		w.WriteJson(api.Failure(api.StatusInvalidParameter, err))
		return
	}
	logger.Debugf("denial list request from %v: %v", req.RemoteAddr, spew.Sdump(p))

	denials, err := r.Journal.Denials(p.Limit)
	if err != nil {
		logger.Errorf("failed to query the denials: %v", err)
		w.WriteJson(api.Failure(api.StatusInternalServerError, err))
		return
	}

	w.WriteJson(api.Okay(denials))
}
