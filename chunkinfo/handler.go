package chunkinfo

import (
	"sync"

	"github.com/maidsafe-go/vaultcore/cmn"
	"github.com/maidsafe-go/vaultcore/cmn/nlog"
	"github.com/maidsafe-go/vaultcore/ids"
	"github.com/maidsafe-go/vaultcore/metrics"
)

// Handler is the per-vault ChunkInfoHandler: an exclusively-owned map
// of chunk name to chunkInfo, guarded by a single mutex (spec §5).
// Outside readers obtain values by copy.
type Handler struct {
	mu      sync.Mutex
	infos   map[ids.ChunkName]*chunkInfo
	clock   cmn.Clock
	cfg     Config
	metrics *metrics.Set
	started bool
}

// New constructs a Handler. The handler is not started until Start is
// called; until then the error-returning operations fail with
// HandlerNotStarted, and TryCommitToWatchList, ResetAddToWatchList,
// SetStoringDone, SetPaymentsDone and GetStaleWaitingListEntries do
// nothing, mirroring the original vault's bootstrap-from-disk
// sequencing.
func New(clock cmn.Clock, cfg Config, m *metrics.Set) *Handler {
	return &Handler{infos: make(map[ids.ChunkName]*chunkInfo), clock: clock, cfg: cfg, metrics: m}
}

// Start marks the handler ready to serve. Safe to call more than once.
func (h *Handler) Start() {
	h.mu.Lock()
	h.started = true
	h.mu.Unlock()
}

/////////////////////////
// PrepareAddToWatchList //
/////////////////////////

// PrepareAddToWatchList records pmid's intent to watch chunk and
// reports how many reference-holder confirmations and watch-list
// payments are still required before it can commit (spec §4.1).
func (h *Handler) PrepareAddToWatchList(chunk ids.ChunkName, pmid ids.Id, size uint64) (requiredReferences int, requiredPayments int32, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.started {
		return 0, 0, cmn.NewErr(cmn.HandlerNotStarted, "chunkinfo: handler not started")
	}
	if size == 0 {
		return 0, 0, cmn.NewErr(cmn.InvalidSize, "chunkinfo: zero size")
	}

	ci, exists := h.infos[chunk]
	if !exists {
		ci = &chunkInfo{}
		h.infos[chunk] = ci
	} else if ci.chunkSize != 0 && ci.chunkSize != size {
		return 0, 0, cmn.NewErr(cmn.InvalidSize, "chunkinfo: size mismatch")
	}
	if ci.chunkSize == 0 {
		ci.chunkSize = size
	}

	entry := WaitingEntry{Pmid: pmid, CreationTime: h.clock.Now()}

	if idx := findWaiting(ci.waitingList, pmid); idx >= 0 {
		entry.StoringDone = true
	} else {
		requiredReferences = maxInt(0, ceilDiv2(MinChunkCopies-h.activeReferences(ci)))
	}

	n := nonDeletableWatchCount(ci.watchList)
	switch {
	case n == 0:
		entry.RequestedPayments = MinChunkCopies
	case n < maxWatchListLen:
		entry.RequestedPayments = 1
	default:
		entry.PaymentsDone = true
	}
	requiredPayments = entry.RequestedPayments

	ci.waitingList = append(ci.waitingList, entry)
	h.setLiveGauge()
	return requiredReferences, requiredPayments, nil
}

////////////////////////
// TryCommitToWatchList //
////////////////////////

// TryCommitToWatchList promotes pmid's completed waiting entry into the
// watch list. committed is false if no matching, fully-prepared waiting
// entry exists (spec §4.1).
func (h *Handler) TryCommitToWatchList(chunk ids.ChunkName, pmid ids.Id) (committed bool, creditor ids.Id, hasCreditor bool, refunds int32) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.started {
		return false, ids.Zero, false, 0
	}
	ci, exists := h.infos[chunk]
	if !exists {
		return false, ids.Zero, false, 0
	}

	waitIdx := -1
	for i := range ci.waitingList {
		w := &ci.waitingList[i]
		if w.Pmid == pmid && w.StoringDone && w.PaymentsDone {
			waitIdx = i
			break
		}
	}
	if waitIdx < 0 {
		return false, ids.Zero, false, 0
	}
	wait := ci.waitingList[waitIdx]

	if wait.RequestedPayments > 0 {
		var requiredPayments int32
		if slot := firstReplaceableSlot(ci.watchList); slot >= 0 {
			creditor = ci.watchList[slot].Pmid
			hasCreditor = true
			ci.watchList[slot] = WatchEntry{Pmid: pmid, CanDelete: false}
			requiredPayments = 1
		} else if len(ci.watchList) < maxWatchListLen {
			ci.watchList = append(ci.watchList, WatchEntry{Pmid: pmid, CanDelete: false})
			if len(ci.watchList) == 1 {
				requiredPayments = MinChunkCopies
				for i := 0; i < MinChunkCopies-1; i++ {
					ci.watchList = append(ci.watchList, WatchEntry{Pmid: pmid, CanDelete: true})
				}
			} else {
				requiredPayments = 1
			}
		}
		refunds = wait.RequestedPayments - requiredPayments
	}

	ci.watcherCount++
	ci.watcherChecksum += ids.Checksum(pmid)
	ci.waitingList = append(ci.waitingList[:waitIdx], ci.waitingList[waitIdx+1:]...)

	if h.metrics != nil {
		metrics.Incr(h.metrics.WatchListAdds)
	}
	return true, creditor, hasCreditor, refunds
}

///////////////////////
// ResetAddToWatchList //
///////////////////////

// ResetAddToWatchList tears down a failed/stale pending addition. If no
// liveness remains afterwards, every current watcher is returned as a
// creditor and every reference holder as reclaimable, and the
// ChunkInfo is destroyed (spec §4.1).
func (h *Handler) ResetAddToWatchList(chunk ids.ChunkName, pmid ids.Id, reason ResetReason) (creditors, referencesToReclaim []ids.Id) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.started {
		return nil, nil
	}
	ci, exists := h.infos[chunk]
	if !exists {
		return nil, nil
	}

	waitIdx := -1
	for i := range ci.waitingList {
		w := &ci.waitingList[i]
		if w.Pmid != pmid {
			continue
		}
		switch {
		case reason == PaymentFailed && !w.PaymentsDone:
			waitIdx = i
		case reason == StoringFailed && !w.StoringDone:
			waitIdx = i
		case reason == Stale:
			waitIdx = i
		}
		if waitIdx >= 0 {
			break
		}
	}
	if waitIdx >= 0 {
		ci.waitingList = append(ci.waitingList[:waitIdx], ci.waitingList[waitIdx+1:]...)
	}

	if h.hasWatchersLocked(ci) {
		return nil, nil
	}

	for _, w := range ci.watchList {
		creditors = append(creditors, w.Pmid)
	}
	referencesToReclaim = h.destroyLocked(chunk, ci)
	return creditors, referencesToReclaim
}

//////////////////////
// RemoveFromWatchList //
//////////////////////

// RemoveFromWatchList removes pmid as a watcher of chunk. See spec
// §4.1 for the three outcomes (reserve promoted, slot flagged
// deletable, or full implosion) and the tamper-resilience failsafe.
func (h *Handler) RemoveFromWatchList(chunk ids.ChunkName, pmid ids.Id) (chunkSize uint64, creditors, referencesToReclaim []ids.Id, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.started {
		return 0, nil, nil, cmn.NewErr(cmn.HandlerNotStarted, "chunkinfo: handler not started")
	}
	ci, exists := h.infos[chunk]
	if !exists || !h.hasWatchersLocked(ci) {
		return 0, nil, nil, cmn.NewErr(cmn.InvalidName, "chunkinfo: unknown or dead chunk")
	}
	chunkSize = ci.chunkSize

	var watchIdx, reserveIdx = -1, -1
	watcherIndex := 0
	remaining := 0
	for i, w := range ci.watchList {
		if w.CanDelete {
			continue
		}
		remaining++
		slot := i + 1 // 1-based, matching original's `i` counter
		if watchIdx == -1 && w.Pmid == pmid {
			watchIdx = i
			watcherIndex = slot
		} else if reserveIdx == -1 && slot > MinChunkCopies {
			reserveIdx = i
		}
	}

	// Tamper failsafe (spec §4.1, §9 "Open Questions"): if the live
	// count already meets-or-exceeds watcher_count and pmid is not a
	// watcher, the checksum has almost certainly been mutated outside
	// this API. Preserve the original's conservative behavior exactly.
	if uint64(remaining) >= ci.watcherCount && watchIdx == -1 {
		ci.watcherChecksum -= ids.Checksum(pmid)
		if ci.watcherCount > uint64(remaining) {
			ci.watcherCount--
		}
		if h.metrics != nil {
			metrics.Incr(h.metrics.WatchListRemovals)
		}
		return chunkSize, nil, nil, nil
	}

	if ci.watcherCount > uint64(remaining) {
		ci.watcherCount--
	}
	ci.watcherChecksum -= ids.Checksum(pmid)

	if watchIdx != -1 {
		if watcherIndex <= MinChunkCopies {
			if reserveIdx != -1 {
				creditors = append(creditors, pmid)
				ci.watchList[watchIdx] = ci.watchList[reserveIdx]
				ci.watchList = append(ci.watchList[:reserveIdx], ci.watchList[reserveIdx+1:]...)
			} else {
				ci.watchList[watchIdx].CanDelete = true
				if remaining == 1 {
					ci.watcherCount = 0
					if !h.hasWatchersLocked(ci) {
						for _, w := range ci.watchList {
							creditors = append(creditors, w.Pmid)
						}
						referencesToReclaim = h.destroyLocked(chunk, ci)
					}
				}
			}
		} else {
			creditors = append(creditors, pmid)
			ci.watchList = append(ci.watchList[:watchIdx], ci.watchList[watchIdx+1:]...)
		}
	}

	if h.metrics != nil {
		metrics.Incr(h.metrics.WatchListRemovals)
		if len(creditors) > 0 {
			metrics.Incr(h.metrics.WatchListRefunds)
		}
	}
	return chunkSize, creditors, referencesToReclaim, nil
}

////////////////////////
// reference list //
////////////////////////

// AddToReferenceList upserts pmid as a replica holder of chunk,
// refreshing its LastSeen on a duplicate rather than inserting twice.
func (h *Handler) AddToReferenceList(chunk ids.ChunkName, pmid ids.Id, size uint64) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.started {
		return cmn.NewErr(cmn.HandlerNotStarted, "chunkinfo: handler not started")
	}
	ci, exists := h.infos[chunk]
	if !exists || !h.hasWatchersLocked(ci) {
		return cmn.NewErr(cmn.InvalidName, "chunkinfo: unknown or dead chunk")
	}
	if ci.chunkSize != size {
		return cmn.NewErr(cmn.InvalidSize, "chunkinfo: size mismatch")
	}

	now := h.clock.Now()
	for i := range ci.referenceList {
		if ci.referenceList[i].Pmid == pmid {
			ci.referenceList[i].LastSeen = now
			return nil
		}
	}
	ci.referenceList = append(ci.referenceList, ReferenceEntry{Pmid: pmid, LastSeen: now})
	return nil
}

// RemoveFromReferenceList removes pmid as a replica holder, refusing to
// drop the last remaining reference while the chunk still has
// watchers.
func (h *Handler) RemoveFromReferenceList(chunk ids.ChunkName, pmid ids.Id) (chunkSize uint64, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.started {
		return 0, cmn.NewErr(cmn.HandlerNotStarted, "chunkinfo: handler not started")
	}
	ci, exists := h.infos[chunk]
	if !exists {
		return 0, cmn.NewErr(cmn.InvalidName, "chunkinfo: unknown chunk")
	}
	chunkSize = ci.chunkSize

	if len(ci.referenceList) == 1 && h.hasWatchersLocked(ci) {
		return chunkSize, cmn.NewErr(cmn.CannotDelete, "chunkinfo: last reference while watched")
	}

	idx := -1
	for i, r := range ci.referenceList {
		if r.Pmid == pmid {
			idx = i
			break
		}
	}
	if idx < 0 {
		return chunkSize, cmn.NewErr(cmn.CannotDelete, "chunkinfo: reference not found")
	}
	ci.referenceList = append(ci.referenceList[:idx], ci.referenceList[idx+1:]...)
	return chunkSize, nil
}

// GetActiveReferences returns reference holders seen within
// RefActiveTimeout. Fails NoActiveWatchers if the chunk has no live
// watcher.
func (h *Handler) GetActiveReferences(chunk ids.ChunkName) ([]ids.Id, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.started {
		return nil, cmn.NewErr(cmn.HandlerNotStarted, "chunkinfo: handler not started")
	}
	ci, exists := h.infos[chunk]
	if !exists {
		return nil, cmn.NewErr(cmn.InvalidName, "chunkinfo: unknown chunk")
	}
	if ci.watcherCount == 0 && ci.watcherChecksum == 0 {
		return nil, cmn.NewErr(cmn.NoActiveWatchers, "chunkinfo: no active watchers")
	}

	now := h.clock.Now()
	var out []ids.Id
	for _, r := range ci.referenceList {
		if r.LastSeen+h.cfg.RefActiveTimeout >= now {
			out = append(out, r.Pmid)
		}
	}
	return out, nil
}

////////////////////
// waiting-list flags //
////////////////////

// SetStoringDone marks pmid's first not-yet-done waiting entry for
// chunk as storing_done.
func (h *Handler) SetStoringDone(chunk ids.ChunkName, pmid ids.Id) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.started {
		return
	}
	ci, exists := h.infos[chunk]
	if !exists {
		return
	}
	for i := range ci.waitingList {
		if ci.waitingList[i].Pmid == pmid && !ci.waitingList[i].StoringDone {
			ci.waitingList[i].StoringDone = true
			return
		}
	}
}

// SetPaymentsDone marks pmid's first not-yet-done waiting entry for
// chunk as payments_done.
func (h *Handler) SetPaymentsDone(chunk ids.ChunkName, pmid ids.Id) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.started {
		return
	}
	ci, exists := h.infos[chunk]
	if !exists {
		return
	}
	for i := range ci.waitingList {
		if ci.waitingList[i].Pmid == pmid && !ci.waitingList[i].PaymentsDone {
			ci.waitingList[i].PaymentsDone = true
			return
		}
	}
}

// GetStaleWaitingListEntries returns every waiting entry across all
// chunks whose creation_time has exceeded WatcherPendingTimeout.
func (h *Handler) GetStaleWaitingListEntries() []StaleWaitingEntry {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.started {
		return nil
	}
	now := h.clock.Now()
	var out []StaleWaitingEntry
	for chunk, ci := range h.infos {
		for _, w := range ci.waitingList {
			if w.CreationTime+h.cfg.WatcherPendingTimeout < now {
				out = append(out, StaleWaitingEntry{Chunk: chunk, Pmid: w.Pmid})
			}
		}
	}
	return out
}

// HasWatchers reports whether chunk has any liveness: a non-empty
// waiting list, or a non-zero watcher_count, or a non-zero checksum.
func (h *Handler) HasWatchers(chunk ids.ChunkName) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	ci, exists := h.infos[chunk]
	if !exists {
		return false
	}
	return h.hasWatchersLocked(ci)
}

////////////
// internals //
////////////

func (h *Handler) hasWatchersLocked(ci *chunkInfo) bool {
	return len(ci.waitingList) != 0 || ci.watcherCount != 0 || ci.watcherChecksum != 0
}

// destroyLocked drains chunk's reference list into the returned slice
// and deletes its ChunkInfo, per the destruction invariant (spec §3).
func (h *Handler) destroyLocked(chunk ids.ChunkName, ci *chunkInfo) []ids.Id {
	var refs []ids.Id
	for _, r := range ci.referenceList {
		refs = append(refs, r.Pmid)
	}
	delete(h.infos, chunk)
	if nlog.FastV(5, "chunkinfo") {
		nlog.Infof("chunkinfo: destroyed %s, reclaiming %d references", chunk, len(refs))
	}
	h.setLiveGauge()
	return refs
}

// setLiveGauge reports the current chunk count. Caller must hold h.mu.
func (h *Handler) setLiveGauge() {
	if h.metrics != nil {
		metrics.SetGauge(h.metrics.ChunkInfosLive, float64(len(h.infos)))
	}
}

func (h *Handler) activeReferences(ci *chunkInfo) int {
	now := h.clock.Now()
	n := 0
	for _, r := range ci.referenceList {
		if r.LastSeen+h.cfg.RefActiveTimeout >= now {
			n++
		}
	}
	return n
}

func findWaiting(list []WaitingEntry, pmid ids.Id) int {
	for i := range list {
		if list[i].Pmid == pmid {
			return i
		}
	}
	return -1
}

func nonDeletableWatchCount(list []WatchEntry) int {
	n := 0
	for _, w := range list {
		if !w.CanDelete {
			n++
		}
	}
	return n
}

// firstReplaceableSlot finds the first can_delete slot among the first
// MinChunkCopies watch-list entries.
func firstReplaceableSlot(list []WatchEntry) int {
	limit := MinChunkCopies
	if len(list) < limit {
		limit = len(list)
	}
	for i := 0; i < limit; i++ {
		if list[i].CanDelete {
			return i
		}
	}
	return -1
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// ceilDiv2 computes ceil(0.5 * n) for the required_references formula,
// matching std::ceil(.5 * n) on an int argument.
func ceilDiv2(n int) int {
	if n <= 0 {
		return 0
	}
	return (n + 1) / 2
}

