package taskshandler

import (
	"testing"

	"github.com/maidsafe-go/vaultcore/cmn"
	"github.com/maidsafe-go/vaultcore/collab/clock"
	"github.com/maidsafe-go/vaultcore/ids"
)

func mkName(b byte) ids.Id {
	var id ids.Id
	id[ids.Size-1] = b
	return id
}

// TestCascadeOrderMatchesLeafToRoot reproduces the worked example from
// the task-tree cascade scenario: a failing grandchild fails its
// parent, which in turn contributes to the root's success, and every
// callback must fire in strict leaf-to-root order.
func TestCascadeOrderMatchesLeafToRoot(t *testing.T) {
	h := New(clock.NewFrozen(1000), nil)

	var order []string
	record := func(name string) Callback {
		return func(rc cmn.ReturnCode) { order = append(order, name) }
	}

	root, err := h.AddTask(mkName(1), StoreChunk, 1, 1, record("root"))
	if err != nil {
		t.Fatalf("add root: %v", err)
	}
	c1, err := h.AddChildTask(root, StoreChunk, 2, 0, record("c1"))
	if err != nil {
		t.Fatalf("add c1: %v", err)
	}
	c1_1, err := h.AddChildTask(c1, StoreChunk, 1, 0, record("c1_1"))
	if err != nil {
		t.Fatalf("add c1_1: %v", err)
	}
	c1_2, err := h.AddChildTask(c1, StoreChunk, 1, 0, record("c1_2"))
	if err != nil {
		t.Fatalf("add c1_2: %v", err)
	}
	c2, err := h.AddChildTask(root, StoreChunk, 1, 0, record("c2"))
	if err != nil {
		t.Fatalf("add c2: %v", err)
	}

	if err := h.NotifyTaskSuccess(c1_1); err != nil {
		t.Fatalf("notify c1_1: %v", err)
	}
	if st, _ := h.Status(c1); st != Active {
		t.Fatalf("c1 should still be active, got %s", st)
	}

	if err := h.NotifyTaskFailure(c1_2, cmn.GeneralError); err != nil {
		t.Fatalf("notify c1_2: %v", err)
	}
	if st, _ := h.Status(c1); st != Failed {
		t.Fatalf("c1 should be Failed, got %s", st)
	}
	if st, _ := h.Status(root); st != Active {
		t.Fatalf("root should still be active, got %s", st)
	}

	if err := h.NotifyTaskSuccess(c2); err != nil {
		t.Fatalf("notify c2: %v", err)
	}
	if st, _ := h.Status(root); st != Succeeded {
		t.Fatalf("root should be Succeeded, got %s", st)
	}

	want := []string{"c1_1", "c1_2", "c1", "c2", "root"}
	if len(order) != len(want) {
		t.Fatalf("want %v, got %v", want, order)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("want %v, got %v", want, order)
		}
	}
}

func TestAddTaskRejectsZeroSuccessesRequired(t *testing.T) {
	h := New(clock.NewFrozen(1000), nil)
	if _, err := h.AddTask(mkName(1), StoreChunk, 0, 0, nil); !cmn.Is(err, cmn.TaskIncorrectParameter) {
		t.Fatalf("want TaskIncorrectParameter, got %v", err)
	}
}

func TestAddTaskDeleteSupersedesActiveStore(t *testing.T) {
	h := New(clock.NewFrozen(1000), nil)
	name := mkName(5)

	var storeReason cmn.ReturnCode
	storeID, err := h.AddTask(name, StoreChunk, 1, 0, func(rc cmn.ReturnCode) { storeReason = rc })
	if err != nil {
		t.Fatalf("add store: %v", err)
	}

	if _, err := h.AddTask(name, DeleteChunk, 1, 0, nil); err != nil {
		t.Fatalf("add delete: %v", err)
	}

	if storeReason != cmn.CancelledOrDone {
		t.Fatalf("want superseded store callback with CancelledOrDone, got %v", storeReason)
	}
	if _, exists := h.Status(storeID); exists {
		t.Fatal("superseded store task should have been removed")
	}
}

func TestAddTaskRefreshesTimestampOnReAdd(t *testing.T) {
	fc := clock.NewFrozen(1000)
	h := New(fc, nil)
	name := mkName(7)

	id, err := h.AddTask(name, StoreChunk, 1, 0, nil)
	if err != nil {
		t.Fatalf("add: %v", err)
	}

	fc.Advance(5)
	_, err = h.AddTask(name, StoreChunk, 1, 0, nil)
	if !cmn.Is(err, cmn.TaskAlreadyExists) {
		t.Fatalf("want TaskAlreadyExists, got %v", err)
	}
	if st, _ := h.Status(id); st != Active {
		t.Fatalf("original task should remain active, got %s", st)
	}
	h.mu.Lock()
	createdAt := h.tasks[id].CreatedAt
	h.mu.Unlock()
	if createdAt != 1005 {
		t.Fatalf("want refreshed timestamp 1005, got %d", createdAt)
	}
}

func TestAddChildTaskRequiresActiveParent(t *testing.T) {
	h := New(clock.NewFrozen(1000), nil)
	root, _ := h.AddTask(mkName(1), StoreChunk, 1, 1, nil)
	if err := h.CancelTask(root, cmn.GeneralError); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if _, err := h.AddChildTask(root, StoreChunk, 1, 0, nil); !cmn.Is(err, cmn.TaskParentNotActive) {
		t.Fatalf("want TaskParentNotActive, got %v", err)
	}
}

func TestCancelTaskCancelsWholeSubtree(t *testing.T) {
	h := New(clock.NewFrozen(1000), nil)
	fired := map[string]cmn.ReturnCode{}
	mark := func(name string) Callback {
		return func(rc cmn.ReturnCode) { fired[name] = rc }
	}

	root, _ := h.AddTask(mkName(1), StoreChunk, 1, 1, mark("root"))
	c1, _ := h.AddChildTask(root, StoreChunk, 1, 0, mark("c1"))
	_, _ = h.AddChildTask(c1, StoreChunk, 1, 0, mark("c1_1"))

	if err := h.CancelTask(root, cmn.GeneralError); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	for _, name := range []string{"root", "c1", "c1_1"} {
		if rc, ok := fired[name]; !ok || rc != cmn.GeneralError {
			t.Fatalf("expected %s to fire with GeneralError, got %v (present=%v)", name, rc, ok)
		}
	}
}

func TestNotifyOnNonLeafIsIncorrectOperation(t *testing.T) {
	h := New(clock.NewFrozen(1000), nil)
	root, _ := h.AddTask(mkName(1), StoreChunk, 1, 1, nil)
	_, _ = h.AddChildTask(root, StoreChunk, 1, 0, nil)

	if err := h.NotifyTaskSuccess(root); !cmn.Is(err, cmn.TaskIncorrectOperation) {
		t.Fatalf("want TaskIncorrectOperation, got %v", err)
	}
}

func TestResetTaskProgress(t *testing.T) {
	h := New(clock.NewFrozen(1000), nil)
	root, _ := h.AddTask(mkName(1), StoreChunk, 3, 3, nil)
	c1, _ := h.AddChildTask(root, StoreChunk, 5, 5, nil)

	if err := h.NotifyTaskFailure(c1, cmn.GeneralError); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if err := h.ResetTaskProgress(c1); err != nil {
		t.Fatalf("reset: %v", err)
	}

	h.mu.Lock()
	task := h.tasks[c1]
	h.mu.Unlock()
	if task.FailuresCount != 0 || task.SuccessCount != 0 {
		t.Fatalf("want zeroed counters, got success=%d failures=%d", task.SuccessCount, task.FailuresCount)
	}
}
