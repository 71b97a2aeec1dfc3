// Package infosync decides whether this vault should proactively fetch
// another peer's ChunkInfo/account data: it tracks a time-bound
// negative cache of ids already dispositioned, fronted by a cuckoo
// filter so a cold "definitely not cached" id skips the map lookup
// entirely under load (spec §4.5).
/*
 * Copyright (c) 2024-2025, maidsafe-go contributors. All rights reserved.
 */
package infosync

import (
	"sync"

	"github.com/seiflotfy/cuckoofilter"

	"github.com/maidsafe-go/vaultcore/cmn"
	"github.com/maidsafe-go/vaultcore/ids"
)

// Config carries the negative-cache entry lifespan and the K used to
// query the routing table.
type Config struct {
	InfoEntryLifespan uint32
	K                 int
}

// Synchroniser is the InfoSynchroniser: deciding which peers' data this
// vault should proactively fetch, so it stays in sync with the subset
// of the network it is closest to.
type Synchroniser struct {
	mu sync.Mutex

	self    ids.Id
	routing cmn.RoutingTable
	clock   cmn.Clock
	cfg     Config

	entries map[ids.Id]uint32
	filter  *cuckoo.Filter
}

// New constructs a Synchroniser for self, consulting routing for
// closeness decisions.
func New(self ids.Id, routing cmn.RoutingTable, clock cmn.Clock, cfg Config) *Synchroniser {
	return &Synchroniser{
		self: self, routing: routing, clock: clock, cfg: cfg,
		entries: make(map[ids.Id]uint32),
		filter:  cuckoo.NewFilter(1 << 16),
	}
}

// ShouldFetch reports whether this vault should try to fetch id's
// data, and if so, the K closest contacts to hand the fetch to.
// Returns false immediately for self, or for any id that already has a
// (possibly still-fresh) negative-cache entry.
func (s *Synchroniser) ShouldFetch(id ids.Id) (bool, []cmn.Contact) {
	if id == s.self {
		return false, nil
	}

	expiry := s.clock.Now() + s.cfg.InfoEntryLifespan

	s.mu.Lock()
	if s.filter.Lookup(id.Bytes()) {
		if _, exists := s.entries[id]; exists {
			s.entries[id] = expiry
			s.mu.Unlock()
			return false, nil
		}
	}
	s.entries[id] = expiry
	s.filter.InsertUnique(id.Bytes())
	s.mu.Unlock()

	contacts := s.routing.GetClosestContacts(id, s.cfg.K)
	if !withinClosest(s.self, contacts) {
		return false, nil
	}
	return true, contacts
}

// withinClosest reports whether self appears among contacts, mirroring
// ContactWithinClosest in the original: the routing table already
// returns a closeness-ranked K-subset, so membership is the check.
func withinClosest(self ids.Id, contacts []cmn.Contact) bool {
	for _, c := range contacts {
		if c.Id == self {
			return true
		}
	}
	return false
}

// RemoveEntry evicts id's negative-cache entry. The cuckoo filter is
// left alone: a stale filter bit only costs an extra map lookup on the
// next ShouldFetch, never a wrong decision.
func (s *Synchroniser) RemoveEntry(id ids.Id) {
	s.mu.Lock()
	delete(s.entries, id)
	s.mu.Unlock()
}

// PruneMap evicts every entry whose expiry has passed.
func (s *Synchroniser) PruneMap() {
	now := s.clock.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, expiry := range s.entries {
		if expiry < now {
			delete(s.entries, id)
		}
	}
}

// Clear empties the negative cache and resets the cuckoo filter.
func (s *Synchroniser) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[ids.Id]uint32)
	s.filter = cuckoo.NewFilter(1 << 16)
}
