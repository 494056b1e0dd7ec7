package model

import "errors"

// Sentinel domain errors. Adapters map wire-level failures onto these so
// callers can branch with errors.Is and render specific copy.
var (
	// ErrOffline indicates no transport is available and no cached data
	// exists to fall back on.
	ErrOffline = errors.New("device is offline")

	// ErrReminderElapsed indicates the remote rejected reactivating a
	// one-shot reminder whose scheduled time has already passed.
	ErrReminderElapsed = errors.New("reminder schedule already elapsed")

	// ErrUnknownDraftKind indicates a draft ID with no recognized kind
	// prefix.
	ErrUnknownDraftKind = errors.New("unknown draft kind")

	// ErrDraftNotFound indicates a draft ID with no stored draft.
	ErrDraftNotFound = errors.New("draft not found")

	// ErrInvalidDraftPayload indicates a draft payload missing fields
	// required by its kind's schema.
	ErrInvalidDraftPayload = errors.New("invalid draft payload")
)
