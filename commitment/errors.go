package commitment

import "errors"

var (
	// ErrUnauthorized is returned when a commitment pays none of the
	// authorized addresses.
	ErrUnauthorized = errors.New("commitment: no output pays an authorized address")

	// ErrCommitmentReused is returned when the commitment txid is
	// already bound to a different vaultId. Mirrors store.ErrCommitmentReused
	// one layer up, at the boundary callers actually see.
	ErrCommitmentReused = errors.New("commitment: already bound to a different vault")

	// ErrAuthorizationUnavailable is returned when the authorized
	// addresses database is missing or malformed.
	ErrAuthorizationUnavailable = errors.New("commitment: authorized addresses database unavailable")

	// ErrMalformedTransaction is returned when the hex payload does not
	// decode to a valid Bitcoin transaction.
	ErrMalformedTransaction = errors.New("commitment: malformed transaction hex")

	errUnknownNetwork = errors.New("commitment: unknown network id")
)
