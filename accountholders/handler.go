// Package accountholders tracks the k-closest contacts responsible for
// a vault's account: the pmid's "account holder group", refreshed by
// a Kademlia lookup whenever it goes stale or enough of its members
// have started failing (spec §4.4).
/*
 * Copyright (c) 2024-2025, maidsafe-go contributors. All rights reserved.
 */
package accountholders

import (
	"sync"

	"github.com/maidsafe-go/vaultcore/cmn"
	"github.com/maidsafe-go/vaultcore/ids"
	"github.com/maidsafe-go/vaultcore/metrics"
)

// Config carries the three thresholds update_required() consults.
type Config struct {
	MaxUpdateInterval uint32 // seconds
	MaxFailedNodes    int    // distinct failing pmids
	MaxFailsPerNode   int    // repeat failures of a single pmid
}

// ResultFunc is invoked at most once per UpdateGroup call, with the
// refreshed group (minus self) or an error and an empty group.
type ResultFunc func(group []cmn.Contact, err error)

// Group is a vault's account-holder-group tracker.
type Group struct {
	mu sync.Mutex

	pmid        ids.Id
	accountName ids.Id

	hash    cmn.Hash
	kad     cmn.AsyncKademlia
	clock   cmn.Clock
	cfg     Config
	metrics *metrics.Set

	group           []cmn.Contact
	lastUpdate      uint32
	updateInFlight  bool
	failedIDs       []ids.Id
	updateWaiters   []chan struct{}
}

// New constructs a Group. Init must be called before any other method.
func New(hash cmn.Hash, kad cmn.AsyncKademlia, clock cmn.Clock, cfg Config, m *metrics.Set) *Group {
	return &Group{hash: hash, kad: kad, clock: clock, cfg: cfg, metrics: m}
}

const accountSuffix = "account"

// Init computes account_name = H(pmid || "account") and triggers the
// first UpdateGroup.
func (g *Group) Init(pmid ids.Id, cb ResultFunc) {
	g.mu.Lock()
	g.pmid = pmid
	g.accountName = g.hash.Sum512(append(append([]byte{}, pmid.Bytes()...), accountSuffix...))
	g.mu.Unlock()
	g.updateGroup(cb)
}

// Update re-triggers a lookup with a no-op callback, matching the
// original's parameterless Update() convenience method.
func (g *Group) Update() { g.updateGroup(func([]cmn.Contact, error) {}) }

func (g *Group) updateGroup(cb ResultFunc) {
	g.mu.Lock()
	if g.accountName.IsZero() {
		g.mu.Unlock()
		return
	}
	if g.updateInFlight {
		g.mu.Unlock()
		return
	}
	g.failedIDs = nil
	g.updateInFlight = true
	target := g.accountName
	g.mu.Unlock()

	if g.metrics != nil {
		metrics.Incr(g.metrics.AccountGroupUpdates)
	}

	g.kad.FindKClosest(target, func(contacts []cmn.Contact, err error) {
		g.findNodesCallback(contacts, err, cb)
	})
}

func (g *Group) findNodesCallback(contacts []cmn.Contact, err error, cb ResultFunc) {
	var result []cmn.Contact

	g.mu.Lock()
	if err == nil {
		g.lastUpdate = g.clock.Now()
		result = removeSelf(contacts, g.pmid)
	}
	g.group = result
	g.updateInFlight = false
	waiters := g.updateWaiters
	g.updateWaiters = nil
	g.mu.Unlock()

	for _, w := range waiters {
		close(w)
	}

	if err != nil {
		cb(nil, cmn.NewErr(cmn.FindNodesFailure, "accountholders: lookup failed"))
		return
	}
	cb(result, nil)
}

func removeSelf(contacts []cmn.Contact, self ids.Id) []cmn.Contact {
	out := make([]cmn.Contact, 0, len(contacts))
	for _, c := range contacts {
		if c.Id != self {
			out = append(out, c)
		}
	}
	return out
}

// ReportFailure records failed_pmid as having failed, provided it is
// currently in the group and no update is in progress. If that pushes
// the group past update_required(), a background update is launched
// with a no-op callback.
func (g *Group) ReportFailure(failedPmid ids.Id) {
	g.mu.Lock()
	if g.updateInFlight {
		g.mu.Unlock()
		return
	}
	inGroup := false
	for _, c := range g.group {
		if c.Id == failedPmid {
			inGroup = true
			break
		}
	}
	if !inGroup {
		g.mu.Unlock()
		return
	}
	g.failedIDs = append(g.failedIDs, failedPmid)
	needsUpdate := g.updateRequiredLocked()
	g.mu.Unlock()

	if needsUpdate {
		g.Update()
	}
}

// UpdateRequired reports whether the group is due for refresh.
func (g *Group) UpdateRequired() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.updateRequiredLocked()
}

func (g *Group) updateRequiredLocked() bool {
	if g.clock.Now() >= g.lastUpdate+g.cfg.MaxUpdateInterval {
		return true
	}
	counts := make(map[ids.Id]int)
	for _, id := range g.failedIDs {
		counts[id]++
	}
	if len(counts) >= g.cfg.MaxFailedNodes {
		return true
	}
	maxSingle := 0
	for _, n := range counts {
		if n > maxSingle {
			maxSingle = n
		}
	}
	return maxSingle >= g.cfg.MaxFailsPerNode
}

// Current returns a copy of the live group.
func (g *Group) Current() []cmn.Contact {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]cmn.Contact(nil), g.group...)
}

// WaitForUpdate blocks the caller until any in-progress update
// completes, matching the original's destructor semantics ("may not
// race with an outstanding callback", spec §5). Returns immediately if
// no update is in flight.
func (g *Group) WaitForUpdate() {
	g.mu.Lock()
	if !g.updateInFlight {
		g.mu.Unlock()
		return
	}
	done := make(chan struct{})
	g.updateWaiters = append(g.updateWaiters, done)
	g.mu.Unlock()
	<-done
}
