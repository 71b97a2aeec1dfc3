package pendingops

import (
	"testing"

	"github.com/maidsafe-go/vaultcore/cmn"
	"github.com/maidsafe-go/vaultcore/collab/clock"
	"github.com/maidsafe-go/vaultcore/ids"
)

func mkID(b byte) ids.Id {
	var id ids.Id
	id[ids.Size-1] = b
	return id
}

func newTestHandler(t *testing.T) (*Handler, *clock.Frozen) {
	t.Helper()
	fc := clock.NewFrozen(1000)
	h, err := New(":memory:", fc, nil)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	t.Cleanup(func() { _ = h.Close() })
	return h, fc
}

func TestAddRejectsDuplicateAndRefreshesTimestamp(t *testing.T) {
	h, fc := newTestHandler(t)
	row := Row{Pmid: mkID(1), ChunkName: mkID(2), ChunkSize: 10, PublicKey: "pk", Status: StoreAccepted}

	if err := h.Add(row); err != nil {
		t.Fatalf("first add: %v", err)
	}
	fc.Advance(5)
	if err := h.Add(row); !cmn.Is(err, cmn.PendingAlreadyExists) {
		t.Fatalf("want PendingAlreadyExists, got %v", err)
	}

	found, err := h.FindOperation(row.Pmid, row.ChunkName, row.ChunkSize, StoreAccepted)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if found.Timestamp != 1005 {
		t.Fatalf("want refreshed timestamp 1005, got %d", found.Timestamp)
	}
}

func TestAddRejectsMissingRequiredField(t *testing.T) {
	h, _ := newTestHandler(t)
	row := Row{Pmid: mkID(1), ChunkName: mkID(2), ChunkSize: 10, Status: StoreAccepted}
	if err := h.Add(row); !cmn.Is(err, cmn.PendingInvalidParameters) {
		t.Fatalf("want PendingInvalidParameters for missing public_key, got %v", err)
	}
}

func TestAdvanceFollowsAllowedEdgeOnly(t *testing.T) {
	h, _ := newTestHandler(t)
	row := Row{Pmid: mkID(1), ChunkName: mkID(2), ChunkSize: 10, PublicKey: "pk", Status: StoreAccepted}
	if err := h.Add(row); err != nil {
		t.Fatalf("add: %v", err)
	}

	if err := h.Advance(row.Pmid, row.ChunkName, row.ChunkSize, StoreAccepted, AwaitingIou); !cmn.Is(err, cmn.PendingInvalidParameters) {
		t.Fatalf("want PendingInvalidParameters for skipped edge, got %v", err)
	}

	if err := h.Advance(row.Pmid, row.ChunkName, row.ChunkSize, StoreAccepted, StoreDone); err != nil {
		t.Fatalf("advance: %v", err)
	}
	if _, err := h.FindOperation(row.Pmid, row.ChunkName, row.ChunkSize, StoreAccepted); !cmn.Is(err, cmn.PendingNotFound) {
		t.Fatalf("old-status row should be gone, got %v", err)
	}
	if _, err := h.FindOperation(row.Pmid, row.ChunkName, row.ChunkSize, StoreDone); err != nil {
		t.Fatalf("new-status row should exist: %v", err)
	}
}

func TestAdvanceMissingRowIsNotFound(t *testing.T) {
	h, _ := newTestHandler(t)
	err := h.Advance(mkID(1), mkID(2), 10, StoreAccepted, StoreDone)
	if !cmn.Is(err, cmn.PendingNotFound) {
		t.Fatalf("want PendingNotFound, got %v", err)
	}
}

func TestGetSizeAndIOU(t *testing.T) {
	h, _ := newTestHandler(t)
	row := Row{Pmid: mkID(1), ChunkName: mkID(2), ChunkSize: 99, Iou: "iou-data", Status: IouReceived}
	if err := h.Add(row); err != nil {
		t.Fatalf("add: %v", err)
	}

	size, iou, err := h.GetSizeAndIOU(row.Pmid, row.ChunkName)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if size != 99 || iou != "iou-data" {
		t.Fatalf("want (99, iou-data), got (%d, %s)", size, iou)
	}
}

func TestPruneErasesOlderThanCutoff(t *testing.T) {
	h, fc := newTestHandler(t)
	old := Row{Pmid: mkID(1), ChunkName: mkID(2), ChunkSize: 10, PublicKey: "pk", Status: StoreAccepted, Timestamp: 500}
	if err := h.Add(old); err != nil {
		t.Fatalf("add old: %v", err)
	}
	fc.Set(2000)
	fresh := Row{Pmid: mkID(3), ChunkName: mkID(4), ChunkSize: 10, PublicKey: "pk", Status: StoreAccepted, Timestamp: 1900}
	if err := h.Add(fresh); err != nil {
		t.Fatalf("add fresh: %v", err)
	}

	n := h.Prune(1000)
	if n != 1 {
		t.Fatalf("want 1 row pruned, got %d", n)
	}
	if _, err := h.FindOperation(old.Pmid, old.ChunkName, old.ChunkSize, StoreAccepted); !cmn.Is(err, cmn.PendingNotFound) {
		t.Fatalf("old row should be gone, got %v", err)
	}
	if _, err := h.FindOperation(fresh.Pmid, fresh.ChunkName, fresh.ChunkSize, StoreAccepted); err != nil {
		t.Fatalf("fresh row should remain: %v", err)
	}
}

func TestUniqueKeyDiffersByChunkSize(t *testing.T) {
	h, _ := newTestHandler(t)
	small := Row{Pmid: mkID(1), ChunkName: mkID(2), ChunkSize: 10, PublicKey: "pk", Status: StoreAccepted}
	large := Row{Pmid: mkID(1), ChunkName: mkID(2), ChunkSize: 20, PublicKey: "pk", Status: StoreAccepted}
	if err := h.Add(small); err != nil {
		t.Fatalf("add small: %v", err)
	}
	if err := h.Add(large); err != nil {
		t.Fatalf("add large should not collide on chunk_size: %v", err)
	}
}
