package chunkinfo

import (
	"sort"

	"github.com/tinylib/msgp/msgp"

	"github.com/maidsafe-go/vaultcore/ids"
)

// Snapshot is the exported, codec-friendly view of one chunk's
// accounting record, used by PutMapToBytes/GetMapFromBytes and by
// tests that need to inspect handler state without reaching into the
// unexported chunkInfo.
type Snapshot struct {
	Chunk           ids.ChunkName
	ChunkSize       uint64
	WaitingList     []WaitingEntry
	WatchList       []WatchEntry
	ReferenceList   []ReferenceEntry
	WatcherCount    uint64
	WatcherChecksum uint64
}

// Snapshot returns a copy of chunk's current record, or false if it is
// not held.
func (h *Handler) Snapshot(chunk ids.ChunkName) (Snapshot, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	ci, exists := h.infos[chunk]
	if !exists {
		return Snapshot{}, false
	}
	return snapshotOf(chunk, ci), true
}

func snapshotOf(chunk ids.ChunkName, ci *chunkInfo) Snapshot {
	return Snapshot{
		Chunk:           chunk,
		ChunkSize:       ci.chunkSize,
		WaitingList:     append([]WaitingEntry(nil), ci.waitingList...),
		WatchList:       append([]WatchEntry(nil), ci.watchList...),
		ReferenceList:   append([]ReferenceEntry(nil), ci.referenceList...),
		WatcherCount:    ci.watcherCount,
		WatcherChecksum: ci.watcherChecksum,
	}
}

// PutMapToBytes serializes the handler's entire live map to a single
// msgp-encoded blob, chunk-name-sorted for byte-reproducible output
// (spec §9, grounded on chunkinfohandler.cc's PutMapToPb).
func (h *Handler) PutMapToBytes() ([]byte, error) {
	h.mu.Lock()
	snaps := make([]Snapshot, 0, len(h.infos))
	for chunk, ci := range h.infos {
		snaps = append(snaps, snapshotOf(chunk, ci))
	}
	h.mu.Unlock()

	sort.Slice(snaps, func(i, j int) bool { return snaps[i].Chunk.Less(snaps[j].Chunk) })

	buf := msgp.AppendArrayHeader(nil, uint32(len(snaps)))
	for _, s := range snaps {
		b, err := appendSnapshot(buf, s)
		if err != nil {
			return nil, err
		}
		buf = b
	}
	return buf, nil
}

// GetMapFromBytes replaces the handler's entire live map with the
// contents of an msgp blob produced by PutMapToBytes (grounded on
// chunkinfohandler.cc's GetMapFromPb / InsertChunkInfoFromPb). The
// handler must not yet be started with live traffic when this is
// called.
func (h *Handler) GetMapFromBytes(b []byte) error {
	n, buf, err := msgp.ReadArrayHeaderBytes(b)
	if err != nil {
		return err
	}
	infos := make(map[ids.ChunkName]*chunkInfo, n)
	for i := uint32(0); i < n; i++ {
		s, rest, err := readSnapshot(buf)
		if err != nil {
			return err
		}
		buf = rest
		infos[s.Chunk] = &chunkInfo{
			chunkSize:       s.ChunkSize,
			waitingList:     s.WaitingList,
			watchList:       s.WatchList,
			referenceList:   s.ReferenceList,
			watcherCount:    s.WatcherCount,
			watcherChecksum: s.WatcherChecksum,
		}
	}

	h.mu.Lock()
	h.infos = infos
	h.mu.Unlock()
	return nil
}

func appendSnapshot(buf []byte, s Snapshot) ([]byte, error) {
	buf = msgp.AppendArrayHeader(buf, 7)
	buf = msgp.AppendBytes(buf, s.Chunk.Bytes())
	buf = msgp.AppendUint64(buf, s.ChunkSize)
	buf = msgp.AppendUint64(buf, s.WatcherCount)
	buf = msgp.AppendUint64(buf, s.WatcherChecksum)

	buf = msgp.AppendArrayHeader(buf, uint32(len(s.WaitingList)))
	for _, w := range s.WaitingList {
		buf = msgp.AppendArrayHeader(buf, 5)
		buf = msgp.AppendBytes(buf, w.Pmid.Bytes())
		buf = msgp.AppendUint32(buf, w.CreationTime)
		buf = msgp.AppendBool(buf, w.StoringDone)
		buf = msgp.AppendBool(buf, w.PaymentsDone)
		buf = msgp.AppendInt32(buf, w.RequestedPayments)
	}

	buf = msgp.AppendArrayHeader(buf, uint32(len(s.WatchList)))
	for _, w := range s.WatchList {
		buf = msgp.AppendArrayHeader(buf, 2)
		buf = msgp.AppendBytes(buf, w.Pmid.Bytes())
		buf = msgp.AppendBool(buf, w.CanDelete)
	}

	buf = msgp.AppendArrayHeader(buf, uint32(len(s.ReferenceList)))
	for _, r := range s.ReferenceList {
		buf = msgp.AppendArrayHeader(buf, 2)
		buf = msgp.AppendBytes(buf, r.Pmid.Bytes())
		buf = msgp.AppendUint32(buf, r.LastSeen)
	}

	return buf, nil
}

func readSnapshot(buf []byte) (Snapshot, []byte, error) {
	var s Snapshot
	fields, buf, err := msgp.ReadArrayHeaderBytes(buf)
	if err != nil || fields != 7 {
		return s, buf, errOrMismatch(err, "chunk record")
	}

	raw, buf, err := msgp.ReadBytesZC(buf)
	if err != nil {
		return s, buf, err
	}
	s.Chunk = ids.FromBytes(raw)

	if s.ChunkSize, buf, err = msgp.ReadUint64Bytes(buf); err != nil {
		return s, buf, err
	}
	if s.WatcherCount, buf, err = msgp.ReadUint64Bytes(buf); err != nil {
		return s, buf, err
	}
	if s.WatcherChecksum, buf, err = msgp.ReadUint64Bytes(buf); err != nil {
		return s, buf, err
	}

	var n uint32
	if n, buf, err = msgp.ReadArrayHeaderBytes(buf); err != nil {
		return s, buf, err
	}
	s.WaitingList = make([]WaitingEntry, n)
	for i := range s.WaitingList {
		var fc uint32
		if fc, buf, err = msgp.ReadArrayHeaderBytes(buf); err != nil || fc != 5 {
			return s, buf, errOrMismatch(err, "waiting entry")
		}
		if raw, buf, err = msgp.ReadBytesZC(buf); err != nil {
			return s, buf, err
		}
		s.WaitingList[i].Pmid = ids.FromBytes(raw)
		if s.WaitingList[i].CreationTime, buf, err = msgp.ReadUint32Bytes(buf); err != nil {
			return s, buf, err
		}
		if s.WaitingList[i].StoringDone, buf, err = msgp.ReadBoolBytes(buf); err != nil {
			return s, buf, err
		}
		if s.WaitingList[i].PaymentsDone, buf, err = msgp.ReadBoolBytes(buf); err != nil {
			return s, buf, err
		}
		if s.WaitingList[i].RequestedPayments, buf, err = msgp.ReadInt32Bytes(buf); err != nil {
			return s, buf, err
		}
	}

	if n, buf, err = msgp.ReadArrayHeaderBytes(buf); err != nil {
		return s, buf, err
	}
	s.WatchList = make([]WatchEntry, n)
	for i := range s.WatchList {
		var fc uint32
		if fc, buf, err = msgp.ReadArrayHeaderBytes(buf); err != nil || fc != 2 {
			return s, buf, errOrMismatch(err, "watch entry")
		}
		if raw, buf, err = msgp.ReadBytesZC(buf); err != nil {
			return s, buf, err
		}
		s.WatchList[i].Pmid = ids.FromBytes(raw)
		if s.WatchList[i].CanDelete, buf, err = msgp.ReadBoolBytes(buf); err != nil {
			return s, buf, err
		}
	}

	if n, buf, err = msgp.ReadArrayHeaderBytes(buf); err != nil {
		return s, buf, err
	}
	s.ReferenceList = make([]ReferenceEntry, n)
	for i := range s.ReferenceList {
		var fc uint32
		if fc, buf, err = msgp.ReadArrayHeaderBytes(buf); err != nil || fc != 2 {
			return s, buf, errOrMismatch(err, "reference entry")
		}
		if raw, buf, err = msgp.ReadBytesZC(buf); err != nil {
			return s, buf, err
		}
		s.ReferenceList[i].Pmid = ids.FromBytes(raw)
		if s.ReferenceList[i].LastSeen, buf, err = msgp.ReadUint32Bytes(buf); err != nil {
			return s, buf, err
		}
	}

	return s, buf, nil
}

func errOrMismatch(err error, what string) error {
	if err != nil {
		return err
	}
	return msgp.ArrayError{Wanted: 0, Got: 0}
}
