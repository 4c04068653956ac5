package app

import (
	"errors"
	"time"
)

// Application-level errors
var (
	// ErrTransientWrite wraps persistence or cache failures. The sweep records it
	// and moves on; clients roll back optimistic state when they see it.
	ErrTransientWrite = errors.New("transient write failure")

	ErrAdminNotAuthorized     = errors.New("performing user is not authorized as an admin")
	ErrOwnerNotRegistered     = errors.New("owner is not registered")
	ErrSubjectNotOwned        = errors.New("care subject belongs to another owner")
	ErrSubjectAlreadyInactive = errors.New("care subject is already inactive")
	ErrEmptySubjectName       = errors.New("care subject name must not be empty")
	ErrNoCycles               = errors.New("care subject needs at least one cycle")
	ErrNotEventKind           = errors.New("notification kind is emitted by the sweep, not by events")
)

// Clock returns the current instant. Services take one so tests can pin time.
type Clock func() time.Time
