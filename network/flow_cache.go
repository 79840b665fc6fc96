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
	"fmt"
	"time"

	"github.com/superkkt/almond/openflow"

	lru "github.com/hashicorp/golang-lru"
)

// flowCache remembers the flow rules recently sent to a switch so that a burst
// of packet-ins that arrive before the switch applies a rule does not produce a
// burst of identical FLOW_MODs.
type flowCache struct {
	cache      *lru.Cache
	expiration time.Duration
}

func newFlowCache(expiration time.Duration) *flowCache {
	c, err := lru.New(8192)
	if err != nil {
		panic(fmt.Sprintf("failed to init a LRU flow cache: %v", err))
	}

	return &flowCache{
		cache:      c,
		expiration: expiration,
	}
}

func (r *flowCache) Add(rule openflow.FlowRule) {
	key := rule.Key()
	t := time.Now()
	// Update if the key already exists.
	r.cache.Add(key, t)
	logger.Debugf("added a new flow cache: key=%v, timestamp=%v", key, t)
}

func (r *flowCache) InProgress(rule openflow.FlowRule) bool {
	key := rule.Key()
	v, ok := r.cache.Get(key)
	if !ok {
		return false
	}
	timestamp := v.(time.Time)

	// Timeout?
	if time.Since(timestamp) > r.expiration {
		r.cache.Remove(key)
		logger.Debugf("removed the timed-out flow cache: key=%v", key)
		return false
	}

	return true
}

func (r *flowCache) Len() int {
	return r.cache.Len()
}

func (r *flowCache) RemoveAll() {
	r.cache.Purge()
	logger.Debug("removed all the flow caches")
}
