package claim

import "errors"

var (
	// ErrPermissionDenied: the session user lacks the permission the
	// operation requires. Surfaced inline, no state change.
	ErrPermissionDenied = errors.New("claim: permission denied")
	// ErrClaimLimitReached: claiming would exceed the configured maximum.
	ErrClaimLimitReached = errors.New("claim: claim limit reached")
	// ErrAlreadyClaimed: the backend reports the customer is claimed by
	// another assistant. Re-claiming a customer this session already holds
	// is a no-op success, not this error.
	ErrAlreadyClaimed = errors.New("claim: customer claimed by another assistant")
	// ErrNotClaimedBySelf: release/transfer of a customer this session does
	// not hold.
	ErrNotClaimedBySelf = errors.New("claim: customer not claimed by this session")
)
