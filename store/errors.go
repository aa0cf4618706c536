package store

import "errors"

var (
	// ErrCommitmentReused is returned by RegisterVault when the same
	// commitment txid is already bound to a different vaultId.
	ErrCommitmentReused = errors.New("store: commitment already bound to a different vault")

	// ErrCorruption is returned by the first-run guard when the store
	// has non-unchecked triggers but no last_checked_height, indicating
	// the store was written to outside of a completed cycle.
	ErrCorruption = errors.New("store: unchecked-only invariant violated on first run")

	// ErrNotificationNotFound is returned by SetAcknowledged when no
	// matching (pushToken, vaultId) row exists.
	ErrNotificationNotFound = errors.New("store: notification registration not found")
)
