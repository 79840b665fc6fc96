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

package network

import (
	"context"
	"sync"

	"github.com/superkkt/almond/openflow"
)

// canceller keeps the cancel function of the session that owns each DPID.
type canceller struct {
	mu    sync.Mutex
	elems map[openflow.SwitchID]*sessionEntry
}

type sessionEntry struct {
	cancel context.CancelFunc
}

func newCanceller() *canceller {
	return &canceller{elems: make(map[openflow.SwitchID]*sessionEntry)}
}

// push registers the session of the DPID. It returns false, without
// registering anything, if another session already owns the DPID.
func (r *canceller) push(dpid openflow.SwitchID, e *sessionEntry) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.elems[dpid]; ok {
		return false
	}
	r.elems[dpid] = e

	return true
}

// cancel disconnects the session that owns the DPID. The session keeps the
// ownership until it releases the DPID on its way out.
func (r *canceller) cancel(dpid openflow.SwitchID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.elems[dpid]
	if !ok {
		return false
	}
	e.cancel()

	return true
}

// release removes the DPID only if it is still owned by e. It returns whether
// e was the owner.
func (r *canceller) release(dpid openflow.SwitchID, e *sessionEntry) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.elems[dpid] != e {
		return false
	}
	delete(r.elems, dpid)

	return true
}

func (r *canceller) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.elems)
}
