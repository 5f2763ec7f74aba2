package validator

import (
	"context"
	"errors"
	"fmt"

	"call-classifier/internal/chain"
	"github.com/google/uuid"
)

var ErrInvalidEvent = errors.New("invalid event")

// BasicValidator checks the envelope fields an inbound event carries before
// it enters a chain. Absent fields are fine: an event nobody routes on is
// still a valid event and passes through the chain unchanged. It does not
// look at processor-specific fields.
type BasicValidator struct{}

func (v *BasicValidator) Validate(ctx context.Context, e chain.Event) error {
	// Discriminators must be strings when present
	for _, key := range []string{"type", "source"} {
		if _, _, err := optionalString(e, key); err != nil {
			return err
		}
	}

	// Check UUID format if provided
	id, set, err := optionalString(e, "event_id")
	if err != nil {
		return err
	}
	if set {
		if _, err := uuid.Parse(id); err != nil {
			return fmt.Errorf("%w: invalid UUID format", ErrInvalidEvent)
		}
	}

	return nil
}

func optionalString(e chain.Event, key string) (string, bool, error) {
	raw, ok := e[key]
	if !ok {
		return "", false, nil
	}
	s, isString := raw.(string)
	if !isString {
		return "", true, fmt.Errorf("%w: %s must be a string", ErrInvalidEvent, key)
	}
	return s, true, nil
}
