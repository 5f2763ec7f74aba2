package classification

import "context"

// Repository persists classifications. Lookups of absent records return an
// error wrapping ErrNotFound.
type Repository interface {
	Create(ctx context.Context, data ClassificationCreate) (*Classification, error)
	GetByID(ctx context.Context, id int64) (*Classification, error)
	Update(ctx context.Context, c Classification) (*Classification, error)
	Delete(ctx context.Context, id int64) error
	FindByCallID(ctx context.Context, callID string) ([]Classification, error)
	List(ctx context.Context) ([]Classification, error)
}

// Classifier assigns one category of schema to text.
type Classifier interface {
	Classify(ctx context.Context, text string, schema CategorySchema) (Category, error)
}

// Notifier announces a new classification to an external party.
type Notifier interface {
	Notify(ctx context.Context, c Classification) error
}
