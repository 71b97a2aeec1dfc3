package infosync

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

type fakeRouting struct {
	contacts []cmn.Contact
}

func (f *fakeRouting) GetClosestContacts(target ids.Id, k int) []cmn.Contact {
	return f.contacts
}

func TestShouldFetchReturnsFalseForSelf(t *testing.T) {
	self := mkID(1)
	s := New(self, &fakeRouting{}, clock.NewFrozen(1000), Config{InfoEntryLifespan: 60, K: 4})
	ok, contacts := s.ShouldFetch(self)
	if ok || contacts != nil {
		t.Fatalf("want (false, nil) for self, got (%v, %v)", ok, contacts)
	}
}

// TestShouldFetchCalledTwiceReturnsTrueThenFalse witnesses spec
// property 7: the first call sees a fresh id and is within closest;
// the second, rapid-succession call must be suppressed by the
// negative cache.
func TestShouldFetchCalledTwiceReturnsTrueThenFalse(t *testing.T) {
	self := mkID(1)
	target := mkID(2)
	routing := &fakeRouting{contacts: []cmn.Contact{{Id: self}, {Id: mkID(3)}}}
	s := New(self, routing, clock.NewFrozen(1000), Config{InfoEntryLifespan: 60, K: 4})

	ok1, contacts1 := s.ShouldFetch(target)
	if !ok1 {
		t.Fatal("first call should fetch, self is within closest")
	}
	if len(contacts1) != 2 {
		t.Fatalf("want closest contacts returned, got %v", contacts1)
	}

	ok2, contacts2 := s.ShouldFetch(target)
	if ok2 || contacts2 != nil {
		t.Fatalf("second rapid call should be suppressed, got (%v, %v)", ok2, contacts2)
	}
}

func TestShouldFetchFalseWhenNotWithinClosest(t *testing.T) {
	self := mkID(1)
	target := mkID(2)
	routing := &fakeRouting{contacts: []cmn.Contact{{Id: mkID(9)}, {Id: mkID(10)}}}
	s := New(self, routing, clock.NewFrozen(1000), Config{InfoEntryLifespan: 60, K: 4})

	ok, contacts := s.ShouldFetch(target)
	if ok || contacts != nil {
		t.Fatalf("want (false, nil) when self not within closest, got (%v, %v)", ok, contacts)
	}
}

func TestRemoveEntryAllowsRefetch(t *testing.T) {
	self := mkID(1)
	target := mkID(2)
	routing := &fakeRouting{contacts: []cmn.Contact{{Id: self}}}
	s := New(self, routing, clock.NewFrozen(1000), Config{InfoEntryLifespan: 60, K: 4})

	s.ShouldFetch(target)
	s.RemoveEntry(target)
	ok, _ := s.ShouldFetch(target)
	if !ok {
		t.Fatal("after RemoveEntry, should_fetch should re-evaluate instead of hitting the cache")
	}
}

func TestPruneMapEvictsExpiredEntries(t *testing.T) {
	self := mkID(1)
	target := mkID(2)
	routing := &fakeRouting{contacts: []cmn.Contact{{Id: self}}}
	fc := clock.NewFrozen(1000)
	s := New(self, routing, fc, Config{InfoEntryLifespan: 60, K: 4})

	s.ShouldFetch(target)
	fc.Advance(61)
	s.PruneMap()

	ok, _ := s.ShouldFetch(target)
	if !ok {
		t.Fatal("after expiry and prune, should_fetch should re-evaluate")
	}
}
