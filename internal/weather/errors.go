package weather

import (
	"errors"

	"github.com/yegors/co-wx/internal/stations"
)

var (
	// ErrUpstreamUnavailable indicates a transport failure or timeout talking to a feed
	ErrUpstreamUnavailable = errors.New("upstream unavailable")

	// ErrMalformedUpstreamData indicates a feed response that did not match the expected shape
	ErrMalformedUpstreamData = errors.New("malformed upstream data")

	// ErrNotFound indicates a station code unknown to the directory
	ErrNotFound = stations.ErrNotFound

	// ErrNoDataAvailable indicates a valid request for which no data exists
	ErrNoDataAvailable = errors.New("no data available")

	// ErrInvalidCoordinate indicates a latitude or longitude that is non-finite or out of range
	ErrInvalidCoordinate = errors.New("invalid coordinate")
)
