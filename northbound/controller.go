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
	"fmt"
	"time"

	"github.com/superkkt/almond/binding"
	"github.com/superkkt/almond/northbound/app"
	"github.com/superkkt/almond/northbound/app/classifier"
	"github.com/superkkt/almond/northbound/app/forwarder"
	"github.com/superkkt/almond/northbound/app/proxyarp"
	"github.com/superkkt/almond/openflow"
	"github.com/superkkt/almond/policy"
	"github.com/superkkt/almond/protocol"
)

// SwitchConfig overrides the defaults for a single switch.
type SwitchConfig struct {
	Role   app.Role
	Routes []app.Route
}

type Config struct {
	DefaultRole app.Role
	DropDNS     bool
	Gateways    []app.Gateway
	Policy      *policy.Set
	// PolicyDefault overrides the default action of the switch role when set.
	PolicyDefault *policy.Action
	Switches      map[openflow.SwitchID]SwitchConfig
	// Journal is optional.
	Journal forwarder.Journal
}

func (r Config) switchConfig(id openflow.SwitchID) SwitchConfig {
	if v, ok := r.Switches[id]; ok {
		return v
	}

	return SwitchConfig{Role: r.DefaultRole}
}

// Controller is the decision engine of a single switch. It owns the binding
// table of the switch and must be driven by one goroutine at a time.
type Controller struct {
	id         openflow.SwitchID
	role       app.Role
	bindings   *binding.Table
	head       app.Processor
	processors []app.Processor
	created    time.Time
}

func NewController(id openflow.SwitchID, conf Config) *Controller {
	if conf.Policy == nil {
		panic("nil policy set")
	}

	sc := conf.switchConfig(id)
	set := conf.Policy.WithDefault(sc.Role.DefaultAction())
	if conf.PolicyDefault != nil {
		set = conf.Policy.WithDefault(*conf.PolicyDefault)
	}

	table := binding.NewTable()
	processors := []app.Processor{
		classifier.New(conf.DropDNS),
		proxyarp.New(table, conf.Gateways),
		forwarder.New(forwarder.Config{
			Role:     sc.Role,
			Bindings: table,
			Policy:   set,
			Routes:   sc.Routes,
			Journal:  conf.Journal,
		}),
	}

	return &Controller{
		id:         id,
		role:       sc.Role,
		bindings:   table,
		head:       app.Chain(processors...),
		processors: processors,
		created:    time.Now(),
	}
}

func (r *Controller) ID() openflow.SwitchID {
	return r.id
}

func (r *Controller) Role() app.Role {
	return r.role
}

func (r *Controller) Bindings() []binding.Binding {
	return r.bindings.Bindings(r.id)
}

// OnEvent handles an event of this switch and returns the commands to execute on
// it. Errors are logged and never abort the commands already produced.
func (r *Controller) OnEvent(ev Event) []openflow.Command {
	if ev.DPID() != r.id {
		logger.Errorf("event for another switch: controller=%v, event=%v", r.id, ev)
		return nil
	}

	out := new(openflow.Batch)
	switch v := ev.(type) {
	case ConnectionEstablished:
		logger.Infof("installing baseline rules: switch=%v, role=%v", r.id, r.role)
		if err := r.head.OnConnect(out, r.id); err != nil {
			logger.Errorf("failed to prepare the baseline rules: switch=%v, err=%v", r.id, err)
		}
	case PacketObserved:
		pkt := &app.Packet{
			Switch: r.id,
			InPort: v.InPort,
			Data:   v.Data,
			Frame:  protocol.Decode(v.Data),
		}
		if err := r.head.OnPacketIn(out, pkt); err != nil {
			logger.Errorf("failed to handle a packet: switch=%v, ingress=%v, err=%v", r.id, v.InPort, err)
		}
	case ConnectionLost:
		logger.Debugf("controller disposed: switch=%v, bindings=%v", r.id, r.bindings.Len())
	default:
		logger.Warningf("unexpected event: %v", ev)
	}

	return out.Commands()
}

func (r *Controller) String() string {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("Switch %v (role=%v, since=%v)\n", r.id, r.role, r.created.Format(time.RFC3339)))
	for _, v := range r.processors {
		buf.WriteString(fmt.Sprintf("\t%v\n", v))
	}
	for _, v := range r.Bindings() {
		buf.WriteString(fmt.Sprintf("\t%v\n", v))
	}

	return buf.String()
}
