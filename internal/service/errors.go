// Package service implements the synchronization engine: the orchestrator,
// conflict resolution, loop suppression, retry policy and channel lifecycle.
// Provider and store failures are translated into the sentinel errors below;
// callers match them with errors.Is.
package service

import "errors"

var (
	// Terminal credential failure. The provider rejected the refresh token
	// (or none is stored); the user has to reconnect. Never retried.
	ErrCredentialInvalid = errors.New("credential is invalid")

	// Network failures, provider 5xx responses and rate limiting. Safe to
	// retry with backoff.
	ErrTransientProvider = errors.New("transient provider error")

	// The provider no longer has the event. A deletion signal, not a failure.
	ErrRemoteNotFound = errors.New("remote event not found")

	// The provider rejected the incremental cursor; the caller must fall
	// back to a full sync.
	ErrCursorInvalid = errors.New("change cursor is invalid")

	// Sync is switched off in the user's settings.
	ErrSyncDisabled = errors.New("sync is disabled")
)
