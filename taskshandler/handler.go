package taskshandler

import (
	"sort"
	"sync"
	"sync/atomic"

	"github.com/maidsafe-go/vaultcore/cmn"
	"github.com/maidsafe-go/vaultcore/cmn/nlog"
	"github.com/maidsafe-go/vaultcore/ids"
	"github.com/maidsafe-go/vaultcore/metrics"
)

// Handler owns the whole task forest. One mutex guards every task; a
// cascade runs to completion under it, queuing callbacks, which are
// then invoked with it released (spec §5).
type Handler struct {
	mu      sync.Mutex
	tasks   map[TaskId]*Task
	byName  map[Kind]map[ids.Id]TaskId
	nextID  atomic.Uint64
	clock   cmn.Clock
	metrics *metrics.Set
}

// New constructs an empty Handler.
func New(clock cmn.Clock, m *metrics.Set) *Handler {
	return &Handler{
		tasks:  make(map[TaskId]*Task),
		byName: make(map[Kind]map[ids.Id]TaskId),
		clock:  clock, metrics: m,
	}
}

func (h *Handler) newID() TaskId {
	return TaskId(h.nextID.Add(1))
}

// AddTask inserts a new root-level task keyed by (name, kind). If an
// Active store-kind task shares name and this is the matching delete
// kind, the existing task is superseded: its callback fires with
// CancelledOrDone and it is removed before the new task is created
// (spec §4.2).
func (h *Handler) AddTask(name ids.Id, kind Kind, successesRequired, maxFailures uint8, cb Callback) (TaskId, error) {
	if successesRequired == 0 {
		return 0, cmn.NewErr(cmn.TaskIncorrectParameter, "taskshandler: successes_required must be > 0")
	}

	h.mu.Lock()
	var superseded []pendingCallback
	if storeKind, ok := supersedeTarget(kind); ok {
		if idx, exists := h.byName[storeKind]; exists {
			if existingID, exists := idx[name]; exists {
				if existing := h.tasks[existingID]; existing != nil && existing.Status == Active {
					superseded = h.deleteSubtreeLocked(existingID, cmn.CancelledOrDone)
				}
			}
		}
	} else if idx, exists := h.byName[kind]; exists {
		if existingID, exists := idx[name]; exists {
			if existing := h.tasks[existingID]; existing != nil && existing.Status == Active {
				existing.CreatedAt = h.clock.Now()
				h.mu.Unlock()
				return existingID, cmn.NewErr(cmn.TaskAlreadyExists, "taskshandler: task already active")
			}
		}
	}

	id := h.newID()
	t := &Task{
		Id: id, Parent: RootTask, Name: name, HasName: true, Kind: kind,
		Status: Active, CreatedAt: h.clock.Now(),
		SuccessesRequired: successesRequired, MaxFailures: maxFailures,
		Callback: cb,
	}
	h.tasks[id] = t
	if h.byName[kind] == nil {
		h.byName[kind] = make(map[ids.Id]TaskId)
	}
	h.byName[kind][name] = id
	h.mu.Unlock()

	h.fire(superseded)
	if h.metrics != nil {
		metrics.Incr(h.metrics.TasksCreated)
	}
	return id, nil
}

// supersedeTarget maps a delete-family kind to the store-family kind
// it supersedes, per spec §4.2 ("Same rule for Packet variants").
func supersedeTarget(kind Kind) (Kind, bool) {
	switch kind {
	case DeleteChunk:
		return StoreChunk, true
	case DeletePacket:
		return StorePacket, true
	default:
		return 0, false
	}
}

// AddChildTask inserts a child of parent, which must exist and be
// Active.
func (h *Handler) AddChildTask(parent TaskId, kind Kind, successesRequired, maxFailures uint8, cb Callback) (TaskId, error) {
	if successesRequired == 0 {
		return 0, cmn.NewErr(cmn.TaskIncorrectParameter, "taskshandler: successes_required must be > 0")
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	p, exists := h.tasks[parent]
	if !exists || p.Status != Active {
		return 0, cmn.NewErr(cmn.TaskParentNotActive, "taskshandler: parent not active")
	}

	id := h.newID()
	t := &Task{
		Id: id, Parent: parent, Kind: kind, Status: Active, CreatedAt: h.clock.Now(),
		SuccessesRequired: successesRequired, MaxFailures: maxFailures, Callback: cb,
	}
	h.tasks[id] = t
	p.Children = append(p.Children, id)

	if h.metrics != nil {
		metrics.Incr(h.metrics.TasksCreated)
	}
	return id, nil
}

// NotifyTaskSuccess records a leaf success and runs the cascade if it
// crosses the success threshold.
func (h *Handler) NotifyTaskSuccess(id TaskId) error {
	return h.notifyLeaf(id, true, cmn.Success)
}

// NotifyTaskFailure records a leaf failure and runs the cascade if it
// crosses the failure threshold.
func (h *Handler) NotifyTaskFailure(id TaskId, reason cmn.ReturnCode) error {
	return h.notifyLeaf(id, false, reason)
}

func (h *Handler) notifyLeaf(id TaskId, success bool, reason cmn.ReturnCode) error {
	h.mu.Lock()
	t, exists := h.tasks[id]
	if !exists {
		h.mu.Unlock()
		return cmn.NewErr(cmn.TaskNotFound, "taskshandler: task not found")
	}
	if !t.isLeaf() {
		h.mu.Unlock()
		return cmn.NewErr(cmn.TaskIncorrectOperation, "taskshandler: not a leaf task")
	}
	if t.Status != Active {
		h.mu.Unlock()
		return cmn.NewErr(cmn.CancelledOrDone, "taskshandler: task already terminal")
	}

	if success {
		t.SuccessCount++
	} else {
		t.FailuresCount++
	}

	var pending []pendingCallback
	if next, terminal := evalTransition(t); terminal {
		t.Status = next
		pending = h.cascadeLocked(t, next, reason)
	}
	h.mu.Unlock()

	h.fire(pending)
	return nil
}

func evalTransition(t *Task) (Status, bool) {
	if t.SuccessCount >= t.SuccessesRequired {
		return Succeeded, true
	}
	if t.FailuresCount > t.MaxFailures {
		return Failed, true
	}
	return Active, false
}

// ResetTaskProgress zeroes a leaf task's counters, used to retry after
// a non-terminal failure.
func (h *Handler) ResetTaskProgress(id TaskId) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	t, exists := h.tasks[id]
	if !exists {
		return cmn.NewErr(cmn.TaskNotFound, "taskshandler: task not found")
	}
	if !t.isLeaf() {
		return cmn.NewErr(cmn.TaskIncorrectOperation, "taskshandler: not a leaf task")
	}
	t.SuccessCount = 0
	t.FailuresCount = 0
	return nil
}

// CancelTask marks id and its still-Active descendants Cancelled,
// firing callbacks depth-first then cascading to the parent.
func (h *Handler) CancelTask(id TaskId, reason cmn.ReturnCode) error {
	h.mu.Lock()
	t, exists := h.tasks[id]
	if !exists {
		h.mu.Unlock()
		return cmn.NewErr(cmn.TaskNotFound, "taskshandler: task not found")
	}
	if t.Status != Active {
		h.mu.Unlock()
		return nil
	}
	t.Status = Cancelled
	pending := h.cascadeLocked(t, Cancelled, reason)
	h.mu.Unlock()

	h.fire(pending)
	return nil
}

// DeleteTask removes id and its entire subtree from the map. Active
// members' callbacks fire with reason first.
func (h *Handler) DeleteTask(id TaskId, reason cmn.ReturnCode) error {
	h.mu.Lock()
	if _, exists := h.tasks[id]; !exists {
		h.mu.Unlock()
		return cmn.NewErr(cmn.TaskNotFound, "taskshandler: task not found")
	}
	pending := h.deleteSubtreeLocked(id, reason)
	h.mu.Unlock()

	h.fire(pending)
	return nil
}

// CancelAllPendingTasks cancels every Active root-level task (and
// thereby its subtree) in reverse insertion order.
func (h *Handler) CancelAllPendingTasks(reason cmn.ReturnCode) {
	h.mu.Lock()
	var roots []TaskId
	for id, t := range h.tasks {
		if t.Parent == RootTask && t.Status == Active {
			roots = append(roots, id)
		}
	}
	sort.Slice(roots, func(i, j int) bool { return roots[i] < roots[j] })
	for i := len(roots) - 1; i >= 0; i-- {
		t := h.tasks[roots[i]]
		if t == nil || t.Status != Active {
			continue
		}
		t.Status = Cancelled
		pending := h.cascadeLocked(t, Cancelled, reason)
		h.mu.Unlock()
		h.fire(pending)
		h.mu.Lock()
	}
	h.mu.Unlock()
}

// Status returns a task's current lifecycle state.
func (h *Handler) Status(id TaskId) (Status, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	t, exists := h.tasks[id]
	if !exists {
		return 0, false
	}
	return t.Status, true
}

////////////
// internals //
////////////

type pendingCallback struct {
	cb Callback
	rc cmn.ReturnCode
}

// cascadeLocked implements the normative cascade algorithm (spec
// §4.2): still-Active descendants are cancelled depth-first and fire
// first, then this task's own callback fires, and only then does the
// parent's counter update and its own transition recurse — producing
// the leaf-to-root firing order the concrete scenarios require.
// Caller holds h.mu; returns the callbacks to fire once released.
func (h *Handler) cascadeLocked(t *Task, status Status, reason cmn.ReturnCode) []pendingCallback {
	var pending []pendingCallback

	for _, childID := range t.Children {
		child := h.tasks[childID]
		if child == nil || child.Status != Active {
			continue
		}
		child.Status = Cancelled
		pending = append(pending, h.cascadeLocked(child, Cancelled, reason)...)
	}

	if t.Callback != nil {
		cbReason := reason
		if status == Succeeded {
			cbReason = cmn.Success
		}
		pending = append(pending, pendingCallback{cb: t.Callback, rc: cbReason})
	}

	if t.Parent != RootTask {
		if parent := h.tasks[t.Parent]; parent != nil && parent.Status == Active {
			if status == Succeeded {
				parent.SuccessCount++
			} else {
				parent.FailuresCount++
			}
			if next, terminal := evalTransition(parent); terminal {
				parent.Status = next
				pending = append(pending, h.cascadeLocked(parent, next, reason)...)
			}
		}
	}

	h.bumpMetric(status)
	return pending
}

// deleteSubtreeLocked removes id and every descendant from the maps,
// firing Active members' callbacks with reason first. Caller holds
// h.mu.
func (h *Handler) deleteSubtreeLocked(id TaskId, reason cmn.ReturnCode) []pendingCallback {
	t := h.tasks[id]
	if t == nil {
		return nil
	}

	var pending []pendingCallback
	for _, childID := range t.Children {
		pending = append(pending, h.deleteSubtreeLocked(childID, reason)...)
	}

	if t.Status == Active && t.Callback != nil {
		pending = append(pending, pendingCallback{cb: t.Callback, rc: reason})
	}

	if t.HasName {
		if idx := h.byName[t.Kind]; idx != nil {
			if idx[t.Name] == id {
				delete(idx, t.Name)
			}
		}
	}
	delete(h.tasks, id)

	if parent := h.tasks[t.Parent]; parent != nil {
		parent.Children = removeID(parent.Children, id)
	}

	return pending
}

// fire invokes queued callbacks with h.mu released, per spec §5.
func (h *Handler) fire(pending []pendingCallback) {
	for _, p := range pending {
		if nlog.FastV(5, "taskshandler") {
			nlog.Infof("taskshandler: firing callback rc=%s", p.rc)
		}
		p.cb(p.rc)
	}
}

func (h *Handler) bumpMetric(status Status) {
	if h.metrics == nil {
		return
	}
	switch status {
	case Succeeded:
		metrics.Incr(h.metrics.TasksSucceeded)
	case Failed:
		metrics.Incr(h.metrics.TasksFailed)
	case Cancelled:
		metrics.Incr(h.metrics.TasksCancelled)
	}
}

func removeID(list []TaskId, id TaskId) []TaskId {
	for i, v := range list {
		if v == id {
			return append(list[:i], list[i+1:]...)
		}
	}
	return list
}
