// Package cmn holds the types shared across the vault core: the tagged
// ReturnCode error kind, the Clock/Hash/RoutingTable capability
// interfaces collaborators must provide, and small helpers every
// handler package depends on.
/*
 * Copyright (c) 2024-2025, maidsafe-go contributors. All rights reserved.
 */
package cmn

import (
	"fmt"

	"github.com/pkg/errors"
)

// ReturnCode tags every fallible core operation's error with a stable,
// switchable kind, replacing the original C++ code's mix of negative
// integers, booleans, and exceptions (see spec §7, §9).
type ReturnCode int

const (
	// Success is not an error; it exists for parity with code that
	// threads a single ReturnCode channel through success and failure.
	Success ReturnCode = iota

	// ChunkInfoHandler
	InvalidName
	InvalidSize
	NoActiveWatchers
	CannotDelete
	RefExists
	HandlerNotStarted
	ChunkInfoExists

	// TasksHandler
	TaskNotFound
	TaskAlreadyExists
	TaskParentNotActive
	TaskIncorrectOperation
	TaskIncorrectParameter
	HandlerError

	// stop-subtask progress signals
	StoreTaskFinishedPass
	StoreTaskFinishedFail
	StoreTaskNotFinished

	// AccountHolderGroup
	FindNodesError
	FindNodesParseError
	FindNodesFailure

	// cross-cutting
	CancelledOrDone
	GeneralError

	// PendingOperations
	PendingAlreadyExists
	PendingInvalidParameters
	PendingNotFound

	// BufferPacketHandler (see SPEC_FULL §4.7)
	PacketExists
	PacketNotFound
	NotOwner
)

func (rc ReturnCode) String() string {
	switch rc {
	case Success:
		return "Success"
	case InvalidName:
		return "InvalidName"
	case InvalidSize:
		return "InvalidSize"
	case NoActiveWatchers:
		return "NoActiveWatchers"
	case CannotDelete:
		return "CannotDelete"
	case RefExists:
		return "RefExists"
	case HandlerNotStarted:
		return "HandlerNotStarted"
	case ChunkInfoExists:
		return "ChunkInfoExists"
	case TaskNotFound:
		return "TaskNotFound"
	case TaskAlreadyExists:
		return "TaskAlreadyExists"
	case TaskParentNotActive:
		return "TaskParentNotActive"
	case TaskIncorrectOperation:
		return "TaskIncorrectOperation"
	case TaskIncorrectParameter:
		return "TaskIncorrectParameter"
	case HandlerError:
		return "HandlerError"
	case StoreTaskFinishedPass:
		return "StoreTaskFinishedPass"
	case StoreTaskFinishedFail:
		return "StoreTaskFinishedFail"
	case StoreTaskNotFinished:
		return "StoreTaskNotFinished"
	case FindNodesError:
		return "FindNodesError"
	case FindNodesParseError:
		return "FindNodesParseError"
	case FindNodesFailure:
		return "FindNodesFailure"
	case CancelledOrDone:
		return "CancelledOrDone"
	case GeneralError:
		return "GeneralError"
	case PendingAlreadyExists:
		return "PendingAlreadyExists"
	case PendingInvalidParameters:
		return "PendingInvalidParameters"
	case PendingNotFound:
		return "PendingNotFound"
	case PacketExists:
		return "PacketExists"
	case PacketNotFound:
		return "PacketNotFound"
	case NotOwner:
		return "NotOwner"
	default:
		return fmt.Sprintf("ReturnCode(%d)", int(rc))
	}
}

// codeErr pairs a ReturnCode with the pkg/errors-wrapped context that
// produced it, so %+v printing retains a stack trace at the call site
// that first returned the error, while callers can still recover the
// tagged kind with Code.
type codeErr struct {
	rc   ReturnCode
	base error
}

func (e *codeErr) Error() string { return e.rc.String() + ": " + e.base.Error() }
func (e *codeErr) Unwrap() error { return e.base }

// NewErr builds a ReturnCode-tagged error, wrapping msg with a stack
// trace via pkg/errors the way the teacher wraps its own cmn errors.
func NewErr(rc ReturnCode, msg string) error {
	return &codeErr{rc: rc, base: errors.New(msg)}
}

// NewErrf is NewErr with Printf-style formatting.
func NewErrf(rc ReturnCode, format string, args ...any) error {
	return &codeErr{rc: rc, base: errors.Errorf(format, args...)}
}

// Code extracts the ReturnCode tagged onto err by NewErr/NewErrf, or
// GeneralError if err was not produced by this package (the catch-all
// from an external collaborator per spec §7).
func Code(err error) ReturnCode {
	if err == nil {
		return Success
	}
	var ce *codeErr
	if errors.As(err, &ce) {
		return ce.rc
	}
	return GeneralError
}

// Is reports whether err carries the given ReturnCode.
func Is(err error, rc ReturnCode) bool { return Code(err) == rc }
