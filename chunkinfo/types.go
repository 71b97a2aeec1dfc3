// Package chunkinfo is the per-chunk watch-list / reference-list state
// machine: the component that decides when a chunk is "wanted" by
// enough clients, when replicas must be recruited, when a chunk may be
// deleted, and how payments are credited and refunded.
/*
 * Copyright (c) 2024-2025, maidsafe-go contributors. All rights reserved.
 */
package chunkinfo

import "github.com/maidsafe-go/vaultcore/ids"

const (
	// MinChunkCopies is the number of "real" watch-list slots every
	// chunk is expected to hold before any entry is treated as reserve.
	MinChunkCopies = 4

	// MaxReserveWatchListEntries bounds the reserve slots beyond the
	// first MinChunkCopies. Pinned per SPEC_FULL "Open Questions".
	MaxReserveWatchListEntries = 4

	// maxWatchListLen is the hard ceiling on watch_list length.
	maxWatchListLen = MinChunkCopies + MaxReserveWatchListEntries
)

// ResetReason explains why a pending watch-list addition is being torn
// down (see ResetAddToWatchList).
type ResetReason int

const (
	StoringFailed ResetReason = iota
	PaymentFailed
	Stale
)

func (r ResetReason) String() string {
	switch r {
	case StoringFailed:
		return "StoringFailed"
	case PaymentFailed:
		return "PaymentFailed"
	case Stale:
		return "Stale"
	default:
		return "ResetReason(?)"
	}
}

// WaitingEntry is a pending would-be watcher for a chunk.
type WaitingEntry struct {
	Pmid              ids.Id
	CreationTime      uint32
	StoringDone       bool
	PaymentsDone      bool
	RequestedPayments int32
}

// WatchEntry is a committed watcher slot: either a real watcher
// (CanDelete == false) or one owed a refund (CanDelete == true).
type WatchEntry struct {
	Pmid      ids.Id
	CanDelete bool
}

// ReferenceEntry is a vault peer claiming to hold a replica.
type ReferenceEntry struct {
	Pmid     ids.Id
	LastSeen uint32
}

// chunkInfo is the per-chunk accounting record. Zero value is the
// "not yet known" state used only transiently while building one.
type chunkInfo struct {
	chunkSize       uint64
	waitingList     []WaitingEntry
	watchList       []WatchEntry
	referenceList   []ReferenceEntry
	watcherCount    uint64
	watcherChecksum uint64
}

// dead reports the destruction invariant from spec §3:
// watcher_count == 0 ∧ watcher_checksum == 0 ∧ waiting_list.empty()
// ⇒ the ChunkInfo must be destroyed.
func (ci *chunkInfo) dead() bool {
	return ci.watcherCount == 0 && ci.watcherChecksum == 0 && len(ci.waitingList) == 0
}

// StaleWaitingEntry names a (chunk, pmid) pair whose waiting-list
// addition has outlived kChunkInfoWatcherPendingTimeout.
type StaleWaitingEntry struct {
	Chunk ids.ChunkName
	Pmid  ids.Id
}

// Config carries the two configurable, positive-duration timeouts the
// handler enforces lazily at query time (spec §4.1, §5).
type Config struct {
	// RefActiveTimeout is kChunkInfoRefActiveTimeout.
	RefActiveTimeout uint32
	// WatcherPendingTimeout is kChunkInfoWatcherPendingTimeout.
	WatcherPendingTimeout uint32
}
