package pipeline

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"call-classifier/internal/chain"
	"call-classifier/internal/classification"

	"github.com/google/uuid"
)

// Envelope carries an event through ingestion. The event itself is the
// caller's map, dispatched as is; the envelope id and receive time travel
// beside it.
type Envelope struct {
	ID         string
	ReceivedAt time.Time
	Event      chain.Event
}

// NewEnvelope wraps ev. A string "event_id" already on the event is reused
// as the envelope id, otherwise a fresh UUID is generated. ev is not copied
// or modified.
func NewEnvelope(ev chain.Event) Envelope {
	id, _ := ev["event_id"].(string)
	if id == "" {
		id = uuid.New().String()
	}
	return Envelope{ID: id, ReceivedAt: time.Now().UTC(), Event: ev}
}

// Dispatched is the outcome of one enveloped event.
type Dispatched struct {
	EventID string
	chain.Outcome
}

func requiredString(ev chain.Event, key string) (string, error) {
	raw, ok := ev[key]
	if !ok {
		return "", fmt.Errorf("%w: %s is required", classification.ErrInvalidInput, key)
	}
	s, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("%w: %s must be a string, got %T", classification.ErrInvalidInput, key, raw)
	}
	if strings.TrimSpace(s) == "" {
		return "", fmt.Errorf("%w: %s must not be empty", classification.ErrInvalidInput, key)
	}
	return s, nil
}

func optionalString(ev chain.Event, key string) (string, error) {
	if _, ok := ev[key]; !ok {
		return "", nil
	}
	return requiredString(ev, key)
}

// requiredID reads a positive integer id. JSON decoding yields float64 or
// json.Number; programmatic callers may pass any integer type or a numeric
// string.
func requiredID(ev chain.Event, key string) (int64, error) {
	raw, ok := ev[key]
	if !ok {
		return 0, fmt.Errorf("%w: %s is required", classification.ErrInvalidInput, key)
	}

	var id int64
	switch v := raw.(type) {
	case int:
		id = int64(v)
	case int32:
		id = int64(v)
	case int64:
		id = v
	case float64:
		if v != math.Trunc(v) || v > math.MaxInt64 {
			return 0, fmt.Errorf("%w: %s must be an integer, got %v", classification.ErrInvalidInput, key, v)
		}
		id = int64(v)
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return 0, fmt.Errorf("%w: %s must be an integer, got %q", classification.ErrInvalidInput, key, v)
		}
		id = n
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %s must be an integer, got %q", classification.ErrInvalidInput, key, v)
		}
		id = n
	default:
		return 0, fmt.Errorf("%w: %s must be an integer, got %T", classification.ErrInvalidInput, key, raw)
	}

	if id <= 0 {
		return 0, fmt.Errorf("%w: %s must be positive, got %d", classification.ErrInvalidInput, key, id)
	}
	return id, nil
}
