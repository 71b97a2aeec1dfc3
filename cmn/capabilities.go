package cmn

import "github.com/maidsafe-go/vaultcore/ids"

// Clock is the monotonic "epoch seconds" source every handler consults
// for timeouts and timestamps (spec §6 item 4). Production code uses
// collab/clock.Real; tests inject collab/clock.Frozen.
type Clock interface {
	Now() uint32
}

// Hash is the deterministic, collision-resistant 512-bit digest
// capability consumed by IdChecksum's callers and AccountHolderGroup
// (spec §6 item 1). Production code uses collab/hashfn.SHA3_512.
type Hash interface {
	Sum512(data []byte) ids.Id
}

// Contact is an opaque routing-table entry: the core never interprets
// its fields, only orders and counts them.
type Contact struct {
	Id ids.Id
	// Endpoint is transport-layer address information opaque to the
	// core (host:port, multiaddr, ...); left as a string so the core
	// has no dependency on any particular transport.
	Endpoint string
}

// RoutingTable is the synchronous "k closest contacts" capability
// (spec §6 item 2). Must be safe for concurrent readers; that
// requirement is on the collaborator, not the core.
type RoutingTable interface {
	GetClosestContacts(target ids.Id, k int) []Contact
}

// FindKClosestFunc is the callback an AsyncKademlia implementation
// invokes on completion: nil error and a (possibly empty) contact list
// on success, non-nil error on failure.
type FindKClosestFunc func(contacts []Contact, err error)

// AsyncKademlia is the non-blocking Kademlia lookup capability (spec §6
// item 3).
type AsyncKademlia interface {
	FindKClosest(target ids.Id, onComplete FindKClosestFunc)
}
