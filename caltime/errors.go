package caltime

import "errors"

var (
	// ErrInvalidState is returned when time-unit arithmetic is attempted on a date-only value
	// or when an operation receives an absent (zero) Value.
	ErrInvalidState = errors.New("invalid state")

	// ErrIncompatibleComparison is returned by CompareStrict when an operand cannot be
	// placed on the UTC timeline.
	ErrIncompatibleComparison = errors.New("incompatible comparison")

	// ErrUnknownZone is returned when the zone provider has no offset for a zone at the
	// requested instant.
	ErrUnknownZone = errors.New("unknown time zone")

	// ErrSyntax is returned by ParseICal for malformed value text.
	ErrSyntax = errors.New("invalid date/time syntax")
)
