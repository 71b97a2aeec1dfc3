// Package pendingops is the PendingOperations ledger: a multi-index
// table of in-flight store/payment rows keyed by (status, chunk_name,
// pmid, chunk_size), backed by an embedded buntdb store whose keys sort
// in that field order, so a row is found by its exact key or by a
// (status, chunk_name, pmid) key prefix; Prune walks every row
// (spec §4.3).
/*
 * Copyright (c) 2024-2025, maidsafe-go contributors. All rights reserved.
 */
package pendingops

import "github.com/maidsafe-go/vaultcore/ids"

// Status is a pending operation's position in its payment/IOU
// lifecycle.
type Status int

const (
	StoreAccepted Status = iota
	StoreDone
	AwaitingIou
	IouReady
	IouRankRetrieved
	IouReceived
	IouCollected
	IouRankDelivered
	IouErased
)

func (s Status) String() string {
	switch s {
	case StoreAccepted:
		return "StoreAccepted"
	case StoreDone:
		return "StoreDone"
	case AwaitingIou:
		return "AwaitingIou"
	case IouReady:
		return "IouReady"
	case IouRankRetrieved:
		return "IouRankRetrieved"
	case IouReceived:
		return "IouReceived"
	case IouCollected:
		return "IouCollected"
	case IouRankDelivered:
		return "IouRankDelivered"
	case IouErased:
		return "IouErased"
	default:
		return "Status(?)"
	}
}

// allowedEdges enumerates the transitions advance() is permitted to
// make (spec §4.3).
var allowedEdges = map[Status]Status{
	StoreAccepted:    StoreDone,
	StoreDone:        AwaitingIou,
	AwaitingIou:      IouReady,
	IouReady:         IouRankRetrieved,
	IouReceived:      IouCollected,
	IouRankDelivered: IouErased,
}

// Row is one pending-operation record. The unique key is
// (Status, ChunkName, Pmid, ChunkSize).
type Row struct {
	Pmid          ids.Id
	ChunkName     ids.ChunkName
	ChunkSize     uint64
	Iou           string
	RankAuthority string
	Timestamp     uint32
	PublicKey     string
	Status        Status
}

// key is the table's unique composite key.
type key struct {
	status    Status
	chunkName ids.ChunkName
	pmid      ids.Id
	chunkSize uint64
}
