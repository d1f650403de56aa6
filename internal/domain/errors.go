package domain

import "errors"

var (
	// ErrInvalidParameter marks malformed or missing configuration. It is
	// raised at construction time, before any network call.
	ErrInvalidParameter = errors.New("invalid parameter")

	// ErrIntegrity marks an upstream data-consistency violation: a payment
	// pointing at a payout the index has never seen, or a payout with no
	// originating paid event. Fatal for the run.
	ErrIntegrity = errors.New("integrity violation")
)
