package pipeline

import (
	"context"

	"call-classifier/internal/chain"
	"call-classifier/internal/classification"
)

// Service is what the processors need from the application layer.
type Service interface {
	ClassifyCall(ctx context.Context, callID, text string) (*classification.Result, error)
	Get(ctx context.Context, id int64) (*classification.Classification, error)
	FindByCall(ctx context.Context, callID string) ([]classification.Classification, error)
	List(ctx context.Context) ([]classification.Classification, error)
	Reclassify(ctx context.Context, id int64, category classification.Category) (*classification.Classification, error)
	Delete(ctx context.Context, id int64) error
}

// Validator checks an inbound event before it is dispatched.
type Validator interface {
	Validate(ctx context.Context, event chain.Event) error
}
