package domain

import "errors"

var (
	// ErrUnknownCategory is returned for a category or path that does not map
	// to a registered report category.
	ErrUnknownCategory = errors.New("unknown report category")

	// ErrMalformedDateToken is returned when a filename does not start with a
	// valid YYMMDD date token.
	ErrMalformedDateToken = errors.New("malformed date token")

	// ErrEmptyAggregationResult is returned when an aggregation run produced no rows.
	ErrEmptyAggregationResult = errors.New("aggregation produced no rows")
)
