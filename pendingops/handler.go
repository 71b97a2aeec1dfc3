package pendingops

import (
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/tidwall/buntdb"

	"github.com/maidsafe-go/vaultcore/cmn"
	"github.com/maidsafe-go/vaultcore/ids"
	"github.com/maidsafe-go/vaultcore/metrics"
)

// Handler is the PendingOperations table. Rows are msgp-free: buntdb
// holds one pipe-delimited text value per composite key, which is
// enough structure for this ledger's narrow field set and lets buntdb's
// own key-range iteration stand in for the boost::multi_index
// composite-key scans the original used.
type Handler struct {
	mu      sync.Mutex
	db      *buntdb.DB
	clock   cmn.Clock
	metrics *metrics.Set
}

// New opens a PendingOperations table. path == ":memory:" keeps the
// table in-process only; any other path persists it via buntdb's own
// append-only file format.
func New(path string, clock cmn.Clock, m *metrics.Set) (*Handler, error) {
	db, err := buntdb.Open(path)
	if err != nil {
		return nil, err
	}
	return &Handler{db: db, clock: clock, metrics: m}, nil
}

// Close releases the underlying buntdb handle.
func (h *Handler) Close() error { return h.db.Close() }

func rowKey(k key) string {
	return fmt.Sprintf("%02d/%s/%s/%020d", k.status, k.chunkName, k.pmid, k.chunkSize)
}

func encodeRow(r Row) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s|%s|%d|%s|%s|%d|%s|%d",
		r.Pmid, r.ChunkName, r.ChunkSize, r.Iou, r.RankAuthority, r.Timestamp, r.PublicKey, r.Status)
	return b.String()
}

func decodeRow(v string) (Row, error) {
	parts := strings.SplitN(v, "|", 8)
	if len(parts) != 8 {
		return Row{}, fmt.Errorf("pendingops: malformed row %q", v)
	}
	pmidBytes, err := hexDecode(parts[0])
	if err != nil {
		return Row{}, err
	}
	chunkBytes, err := hexDecode(parts[1])
	if err != nil {
		return Row{}, err
	}
	size, err := strconv.ParseUint(parts[2], 10, 64)
	if err != nil {
		return Row{}, err
	}
	ts, err := strconv.ParseUint(parts[5], 10, 32)
	if err != nil {
		return Row{}, err
	}
	statusN, err := strconv.Atoi(parts[7])
	if err != nil {
		return Row{}, err
	}
	return Row{
		Pmid:          ids.FromBytes(pmidBytes),
		ChunkName:     ids.FromBytes(chunkBytes),
		ChunkSize:     size,
		Iou:           parts[3],
		RankAuthority: parts[4],
		Timestamp:     uint32(ts),
		PublicKey:     parts[6],
		Status:        Status(statusN),
	}, nil
}

func hexDecode(s string) ([]byte, error) { return hex.DecodeString(s) }

// Add inserts row if its key is not already present; otherwise it
// refreshes the existing row's timestamp and returns
// PendingAlreadyExists (spec §4.3).
func (h *Handler) Add(row Row) error {
	if err := validateParams(row); err != nil {
		return err
	}
	if row.Timestamp == 0 {
		row.Timestamp = h.clock.Now()
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	k := rowKey(key{row.Status, row.ChunkName, row.Pmid, row.ChunkSize})
	var existing bool
	err := h.db.Update(func(tx *buntdb.Tx) error {
		if old, err := tx.Get(k); err == nil {
			existing = true
			existingRow, derr := decodeRow(old)
			if derr != nil {
				return derr
			}
			existingRow.Timestamp = h.clock.Now()
			_, _, err = tx.Set(k, encodeRow(existingRow), nil)
			return err
		}
		_, _, err := tx.Set(k, encodeRow(row), nil)
		return err
	})
	if err != nil {
		return err
	}
	if existing {
		return cmn.NewErr(cmn.PendingAlreadyExists, "pendingops: row already exists")
	}
	if h.metrics != nil {
		metrics.SetGauge(h.metrics.PendingOpsLive, float64(h.countLocked()))
	}
	return nil
}

// Advance transitions the row at (pmid, chunk, size, from) to `to`,
// failing PendingInvalidParameters if the edge is not allowed and
// PendingNotFound if no such row exists.
func (h *Handler) Advance(pmid ids.Id, chunk ids.ChunkName, size uint64, from, to Status) error {
	if next, ok := allowedEdges[from]; !ok || next != to {
		return cmn.NewErr(cmn.PendingInvalidParameters, "pendingops: disallowed status edge")
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	oldKey := rowKey(key{from, chunk, pmid, size})
	newKey := rowKey(key{to, chunk, pmid, size})

	return h.db.Update(func(tx *buntdb.Tx) error {
		v, err := tx.Get(oldKey)
		if err == buntdb.ErrNotFound {
			return cmn.NewErr(cmn.PendingNotFound, "pendingops: row not found")
		} else if err != nil {
			return err
		}
		row, derr := decodeRow(v)
		if derr != nil {
			return derr
		}
		row.Status = to
		row.Timestamp = h.clock.Now()
		if _, err := tx.Delete(oldKey); err != nil {
			return err
		}
		_, _, err = tx.Set(newKey, encodeRow(row), nil)
		return err
	})
}

// FindOperation reports whether exactly one row matches the full key,
// failing PendingNotFound otherwise.
func (h *Handler) FindOperation(pmid ids.Id, chunk ids.ChunkName, size uint64, status Status) (Row, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	k := rowKey(key{status, chunk, pmid, size})
	var row Row
	err := h.db.View(func(tx *buntdb.Tx) error {
		v, err := tx.Get(k)
		if err == buntdb.ErrNotFound {
			return cmn.NewErr(cmn.PendingNotFound, "pendingops: row not found")
		} else if err != nil {
			return err
		}
		row, err = decodeRow(v)
		return err
	})
	return row, err
}

// GetSizeAndIOU returns (size, iou) for pmid/chunk's row in the
// IouReceived state.
func (h *Handler) GetSizeAndIOU(pmid ids.Id, chunk ids.ChunkName) (uint64, string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	var size uint64
	var iou string
	found := false
	err := h.db.View(func(tx *buntdb.Tx) error {
		prefix := fmt.Sprintf("%02d/%s/%s/", IouReceived, chunk, pmid)
		return tx.AscendGreaterOrEqual("", prefix, func(k, v string) bool {
			if !strings.HasPrefix(k, prefix) {
				return false
			}
			row, err := decodeRow(v)
			if err != nil {
				return false
			}
			size, iou, found = row.ChunkSize, row.Iou, true
			return false
		})
	})
	if err != nil {
		return 0, "", err
	}
	if !found {
		return 0, "", cmn.NewErr(cmn.PendingNotFound, "pendingops: no IouReceived row")
	}
	return size, iou, nil
}

// Prune erases every row whose Timestamp is strictly before cutoff
// and returns the count erased.
func (h *Handler) Prune(cutoff uint32) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	var toDelete []string
	_ = h.db.View(func(tx *buntdb.Tx) error {
		return tx.Ascend("", func(k, v string) bool {
			row, err := decodeRow(v)
			if err == nil && row.Timestamp < cutoff {
				toDelete = append(toDelete, k)
			}
			return true
		})
	})
	if len(toDelete) == 0 {
		return 0
	}
	_ = h.db.Update(func(tx *buntdb.Tx) error {
		for _, k := range toDelete {
			if _, err := tx.Delete(k); err != nil && err != buntdb.ErrNotFound {
				return err
			}
		}
		return nil
	})
	if h.metrics != nil {
		metrics.Incr(h.metrics.PendingOpsPruned)
		metrics.SetGauge(h.metrics.PendingOpsLive, float64(h.countLocked()))
	}
	return len(toDelete)
}

func (h *Handler) countLocked() int {
	n := 0
	_ = h.db.View(func(tx *buntdb.Tx) error {
		var err error
		n, err = tx.Len()
		return err
	})
	return n
}

// validateParams enforces the per-status parameter-validity table
// (spec §4.3). All violations return PendingInvalidParameters: the
// table calls for "distinct error codes... one per status family" but
// this ledger has a single cross-cutting code and relies on the
// returned error's message to disambiguate which field failed.
func validateParams(r Row) error {
	fail := func(field string) error {
		return cmn.NewErrf(cmn.PendingInvalidParameters, "pendingops: missing required field %s for status %s", field, r.Status)
	}
	switch r.Status {
	case StoreAccepted:
		if r.Pmid.IsZero() {
			return fail("pmid")
		}
		if r.ChunkName.IsZero() {
			return fail("chunk_name")
		}
		if r.ChunkSize == 0 {
			return fail("chunk_size")
		}
		if r.PublicKey == "" {
			return fail("public_key")
		}
	case StoreDone:
		if r.Pmid.IsZero() {
			return fail("pmid")
		}
		if r.ChunkName.IsZero() {
			return fail("chunk_name")
		}
		if r.ChunkSize == 0 {
			return fail("chunk_size")
		}
	case AwaitingIou, IouReady:
		if r.ChunkName.IsZero() {
			return fail("chunk_name")
		}
	case IouRankRetrieved:
		if r.ChunkName.IsZero() {
			return fail("chunk_name")
		}
		if r.Iou == "" {
			return fail("iou")
		}
		if r.RankAuthority == "" {
			return fail("rank_authority")
		}
	case IouReceived:
		if r.Pmid.IsZero() {
			return fail("pmid")
		}
		if r.ChunkName.IsZero() {
			return fail("chunk_name")
		}
		if r.ChunkSize == 0 {
			return fail("chunk_size")
		}
		if r.Iou == "" {
			return fail("iou")
		}
	case IouCollected:
		if r.Pmid.IsZero() {
			return fail("pmid")
		}
		if r.ChunkName.IsZero() {
			return fail("chunk_name")
		}
	case IouRankDelivered, IouErased:
		if r.ChunkName.IsZero() {
			return fail("chunk_name")
		}
	}
	return nil
}

// sortedKeys is a small test/debug helper that returns every key in
// table order.
func (h *Handler) sortedKeys() []string {
	var keys []string
	_ = h.db.View(func(tx *buntdb.Tx) error {
		return tx.Ascend("", func(k, v string) bool {
			keys = append(keys, k)
			return true
		})
	})
	sort.Strings(keys)
	return keys
}
