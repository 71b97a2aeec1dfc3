// Package taskshandler implements the hierarchical, cancellable task
// tree that tracks a store/delete operation's leaf subtasks through to
// a quorum-based success/failure verdict, cascading terminal state from
// leaf to root (spec §4.2).
/*
 * Copyright (c) 2024-2025, maidsafe-go contributors. All rights reserved.
 */
package taskshandler

import (
	"github.com/maidsafe-go/vaultcore/cmn"
	"github.com/maidsafe-go/vaultcore/ids"
)

// TaskId is an opaque, monotonically increasing task handle. Numeric
// comparison is reserved to this package.
type TaskId uint64

// RootTask is the sentinel parent of every top-level task.
const RootTask TaskId = 0

// Kind is the operation a task represents.
type Kind int

const (
	StoreChunk Kind = iota
	LoadChunk
	DeleteChunk
	StorePacket
	LoadPacket
	DeletePacket
	ModifyPacket
)

func (k Kind) String() string {
	switch k {
	case StoreChunk:
		return "StoreChunk"
	case LoadChunk:
		return "LoadChunk"
	case DeleteChunk:
		return "DeleteChunk"
	case StorePacket:
		return "StorePacket"
	case LoadPacket:
		return "LoadPacket"
	case DeletePacket:
		return "DeletePacket"
	case ModifyPacket:
		return "ModifyPacket"
	default:
		return "Kind(?)"
	}
}

// isStoreKind reports whether k is one of the "store"-family kinds
// that participate in the add_task supersede rule.
func (k Kind) isStoreKind() bool {
	return k == StoreChunk || k == StorePacket
}

// isDeleteKind reports whether k is one of the "delete"-family kinds
// that can supersede a same-name, still-Active store.
func (k Kind) isDeleteKind() bool {
	return k == DeleteChunk || k == DeletePacket
}

// Status is a task's lifecycle state.
type Status int

const (
	Active Status = iota
	Succeeded
	Failed
	Cancelled
)

func (s Status) String() string {
	switch s {
	case Active:
		return "Active"
	case Succeeded:
		return "Succeeded"
	case Failed:
		return "Failed"
	case Cancelled:
		return "Cancelled"
	default:
		return "Status(?)"
	}
}

func (s Status) terminal() bool { return s != Active }

// Callback is invoked exactly once, when a task reaches a terminal
// state or is deleted or superseded while still Active, with the
// ReturnCode explaining why.
type Callback func(rc cmn.ReturnCode)

// Task is one node of the tree. name is only meaningful for root-level
// (parent == RootTask) tasks: it is the data name the public add_task
// supersede rule keys on.
type Task struct {
	Id                TaskId
	Parent            TaskId
	Name              ids.Id
	HasName           bool
	Kind              Kind
	Status            Status
	CreatedAt         uint32
	SuccessesRequired uint8
	MaxFailures       uint8
	SuccessCount      uint8
	FailuresCount     uint8
	Children          []TaskId
	Callback          Callback
}

func (t *Task) isLeaf() bool { return len(t.Children) == 0 }
