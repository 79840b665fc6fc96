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
	"bytes"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/superkkt/almond/binding"
	"github.com/superkkt/almond/northbound/app"
	"github.com/superkkt/almond/openflow"
	"github.com/superkkt/almond/policy"

	"github.com/op/go-logging"
)

var (
	logger = logging.MustGetLogger("northbound")
)

// Manager keeps one Controller per connected switch and routes the events of
// each switch to its controller. Events of different switches may be delivered
// concurrently; events of the same switch must be delivered in order.
type Manager struct {
	mutex       sync.Mutex
	conf        Config
	controllers map[openflow.SwitchID]*Controller
}

func NewManager(conf Config) (*Manager, error) {
	if conf.Policy == nil {
		return nil, errors.New("nil policy set")
	}

	return &Manager{
		conf:        conf,
		controllers: make(map[openflow.SwitchID]*Controller),
	}, nil
}

func (r *Manager) OnEvent(ev Event) []openflow.Command {
	logger.Debugf("event: %v", ev)

	switch ev.(type) {
	case ConnectionEstablished:
		c := NewController(ev.DPID(), r.conf)
		r.mutex.Lock()
		if _, ok := r.controllers[ev.DPID()]; ok {
			logger.Warningf("replacing the controller of the reconnected switch %v", ev.DPID())
		}
		r.controllers[ev.DPID()] = c
		r.mutex.Unlock()
		logger.Infof("switch %v is connected (role=%v)", ev.DPID(), c.Role())
		return c.OnEvent(ev)
	case ConnectionLost:
		r.mutex.Lock()
		c, ok := r.controllers[ev.DPID()]
		delete(r.controllers, ev.DPID())
		r.mutex.Unlock()
		if !ok {
			return nil
		}
		logger.Infof("switch %v is disconnected", ev.DPID())
		return c.OnEvent(ev)
	default:
		c, ok := r.controller(ev.DPID())
		if !ok {
			logger.Warningf("ignoring the event of an unknown switch: %v", ev)
			return nil
		}
		return c.OnEvent(ev)
	}
}

func (r *Manager) controller(id openflow.SwitchID) (*Controller, bool) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	c, ok := r.controllers[id]
	return c, ok
}

type SwitchStatus struct {
	ID       openflow.SwitchID `json:"id"`
	Role     app.Role          `json:"role"`
	Bindings int               `json:"bindings"`
	Since    time.Time         `json:"since"`
}

// Switches returns the status of the connected switches ordered by DPID.
func (r *Manager) Switches() []SwitchStatus {
	r.mutex.Lock()
	controllers := make([]*Controller, 0, len(r.controllers))
	for _, v := range r.controllers {
		controllers = append(controllers, v)
	}
	r.mutex.Unlock()

	result := make([]SwitchStatus, len(controllers))
	for i, v := range controllers {
		result[i] = SwitchStatus{
			ID:       v.ID(),
			Role:     v.Role(),
			Bindings: v.bindings.Len(),
			Since:    v.created,
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })

	return result
}

// Bindings returns the bindings learned on the switch. ok is false if the switch
// is not connected.
func (r *Manager) Bindings(id openflow.SwitchID) (bindings []binding.Binding, ok bool) {
	c, ok := r.controller(id)
	if !ok {
		return nil, false
	}

	return c.Bindings(), true
}

// Rules returns the policy rules in evaluation order.
func (r *Manager) Rules() []policy.Rule {
	return r.conf.Policy.Rules()
}

func (r *Manager) String() string {
	r.mutex.Lock()
	ids := make([]openflow.SwitchID, 0, len(r.controllers))
	for k := range r.controllers {
		ids = append(ids, k)
	}
	r.mutex.Unlock()
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var buf bytes.Buffer
	for _, id := range ids {
		c, ok := r.controller(id)
		if !ok {
			continue
		}
		buf.WriteString(fmt.Sprintf("%v\n", c))
	}

	return buf.String()
}
