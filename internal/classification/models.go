// Package classification holds the call classification domain: its models,
// the ports it depends on and the services that use them.
package classification

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrInvalidInput       = errors.New("invalid input")
	ErrUnexpectedResponse = errors.New("unexpected classifier response")
	ErrClassifierFailed   = errors.New("classifier unavailable")
)

type Category string

const (
	CategoryCommercial Category = "COMMERCIAL"
	CategoryFollowing  Category = "FOLLOWING"
)

// CategorySchema is the closed set of categories a classifier may answer
// with, in prompt order.
type CategorySchema []Category

// DefaultSchema returns the categories known to the domain.
func DefaultSchema() CategorySchema {
	return CategorySchema{CategoryCommercial, CategoryFollowing}
}

// String lists the choices as they are presented to a classifier.
func (s CategorySchema) String() string {
	parts := make([]string, len(s))
	for i, c := range s {
		parts[i] = string(c)
	}
	return strings.Join(parts, ", ")
}

func (s CategorySchema) Contains(c Category) bool {
	for _, known := range s {
		if known == c {
			return true
		}
	}
	return false
}

// Parse maps free text onto a schema category. Matching ignores case and
// surrounding whitespace or punctuation.
func (s CategorySchema) Parse(raw string) (Category, error) {
	cleaned := strings.ToUpper(strings.Trim(strings.TrimSpace(raw), ".\"'`*"))
	for _, c := range s {
		if string(c) == cleaned {
			return c, nil
		}
	}
	return "", fmt.Errorf("%w: %q is not one of [%s]", ErrUnexpectedResponse, raw, s)
}

// ClassificationCreate is the input for persisting a new classification.
type ClassificationCreate struct {
	CallID   string   `json:"call_id"`
	Category Category `json:"category"`
}

func (c ClassificationCreate) Validate() error {
	if strings.TrimSpace(c.CallID) == "" {
		return fmt.Errorf("%w: call_id is required", ErrInvalidInput)
	}
	if !DefaultSchema().Contains(c.Category) {
		return fmt.Errorf("%w: unknown category %q", ErrInvalidInput, c.Category)
	}
	return nil
}

// Classification is a stored classification.
type Classification struct {
	ID        int64     `json:"id"`
	CallID    string    `json:"call_id"`
	Category  Category  `json:"category"`
	CreatedAt time.Time `json:"created_at"`
}

// Result is what classifying a call yields. Warnings report best-effort
// side effects that failed without failing the classification.
type Result struct {
	Classification Classification `json:"classification"`
	Warnings       []string       `json:"warnings,omitempty"`
}
