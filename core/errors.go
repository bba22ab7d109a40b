package core

import (
	"errors"
	"fmt"

	"github.com/signalsfoundry/routeguard/model"
)

// ErrInvalidInput marks requests that are rejected before any search
// work starts: malformed coordinates, missing endpoints, bad config.
// Search failures are not errors; they surface as route statuses.
var ErrInvalidInput = errors.New("invalid input")

func validateEndpoints(start, end model.Coordinate) error {
	if err := start.Validate(); err != nil {
		return fmt.Errorf("%w: start: %v", ErrInvalidInput, err)
	}
	if err := end.Validate(); err != nil {
		return fmt.Errorf("%w: end: %v", ErrInvalidInput, err)
	}
	return nil
}
