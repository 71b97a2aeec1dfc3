package accountholders

import (
	"testing"

	"github.com/maidsafe-go/vaultcore/cmn"
	"github.com/maidsafe-go/vaultcore/collab/clock"
	"github.com/maidsafe-go/vaultcore/collab/hashfn"
	"github.com/maidsafe-go/vaultcore/ids"
)

func mkID(b byte) ids.Id {
	var id ids.Id
	id[ids.Size-1] = b
	return id
}

// fakeKad is a synchronous, test-only cmn.AsyncKademlia: FindKClosest
// invokes onComplete inline with whatever the test has queued.
type fakeKad struct {
	calls   int
	results []cmn.Contact
	err     error
}

func (f *fakeKad) FindKClosest(target ids.Id, onComplete cmn.FindKClosestFunc) {
	f.calls++
	onComplete(f.results, f.err)
}

func TestInitPopulatesGroupMinusSelf(t *testing.T) {
	self := mkID(1)
	other := mkID(2)
	kad := &fakeKad{results: []cmn.Contact{{Id: self}, {Id: other}}}
	g := New(hashfn.SHA3_512{}, kad, clock.NewFrozen(1000), Config{MaxUpdateInterval: 3600, MaxFailedNodes: 3, MaxFailsPerNode: 3}, nil)

	var got []cmn.Contact
	var gotErr error
	g.Init(self, func(group []cmn.Contact, err error) { got, gotErr = group, err })

	if gotErr != nil {
		t.Fatalf("unexpected error: %v", gotErr)
	}
	if len(got) != 1 || got[0].Id != other {
		t.Fatalf("want group=[other], got %v", got)
	}
}

// TestReportFailureThresholdTriggersUpdate reproduces the threshold
// half of Scenario F: kMaxFailsPerNode=3; two reports of the same node
// do not trigger a refresh, the third triggers exactly one. fakeKad
// completes lookups inline, so a report made while a refresh is
// in-flight is not exercised here.
func TestReportFailureThresholdTriggersUpdate(t *testing.T) {
	self := mkID(1)
	flaky := mkID(2)
	kad := &fakeKad{results: []cmn.Contact{{Id: flaky}}}
	g := New(hashfn.SHA3_512{}, kad, clock.NewFrozen(1000), Config{MaxUpdateInterval: 3600, MaxFailedNodes: 3, MaxFailsPerNode: 3}, nil)
	g.Init(self, func([]cmn.Contact, error) {})

	callsAfterInit := kad.calls
	g.ReportFailure(flaky)
	g.ReportFailure(flaky)
	if kad.calls != callsAfterInit {
		t.Fatalf("update should not fire before threshold, calls=%d", kad.calls)
	}
	g.ReportFailure(flaky)
	if kad.calls != callsAfterInit+1 {
		t.Fatalf("third report should trigger exactly one update, calls=%d", kad.calls)
	}
}

func TestUpdateRequiredByInterval(t *testing.T) {
	fc := clock.NewFrozen(1000)
	self := mkID(1)
	kad := &fakeKad{results: nil}
	g := New(hashfn.SHA3_512{}, kad, fc, Config{MaxUpdateInterval: 60, MaxFailedNodes: 10, MaxFailsPerNode: 10}, nil)
	g.Init(self, func([]cmn.Contact, error) {})

	if g.UpdateRequired() {
		t.Fatal("should not require update immediately after init")
	}
	fc.Advance(61)
	if !g.UpdateRequired() {
		t.Fatal("should require update once the interval has elapsed")
	}
}

func TestFindNodesFailurePropagatesError(t *testing.T) {
	self := mkID(1)
	kad := &fakeKad{err: cmn.NewErr(cmn.FindNodesError, "boom")}
	g := New(hashfn.SHA3_512{}, kad, clock.NewFrozen(1000), Config{MaxUpdateInterval: 3600, MaxFailedNodes: 3, MaxFailsPerNode: 3}, nil)

	var gotErr error
	g.Init(self, func(group []cmn.Contact, err error) { gotErr = err })
	if !cmn.Is(gotErr, cmn.FindNodesFailure) {
		t.Fatalf("want FindNodesFailure, got %v", gotErr)
	}
	if len(g.Current()) != 0 {
		t.Fatalf("want empty group on failure, got %v", g.Current())
	}
}
