package classification

import (
	"context"
	"fmt"
	"strings"

	"call-classifier/pkg/logger"
)

// ClassifyText asks the classifier to place text in one of the default
// categories.
func ClassifyText(ctx context.Context, text string, classifier Classifier) (Category, error) {
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("%w: text is required", ErrInvalidInput)
	}
	schema := DefaultSchema()
	category, err := classifier.Classify(ctx, text, schema)
	if err != nil {
		return "", err
	}
	if !schema.Contains(category) {
		return "", fmt.Errorf("%w: %q is not one of [%s]", ErrUnexpectedResponse, category, schema)
	}
	return category, nil
}

// CreateClassification validates data and stores it.
func CreateClassification(ctx context.Context, data ClassificationCreate, repo Repository) (*Classification, error) {
	if err := data.Validate(); err != nil {
		return nil, err
	}
	return repo.Create(ctx, data)
}

// Service is the application service for call classifications.
type Service struct {
	repo       Repository
	classifier Classifier
	notifier   Notifier
}

// NewService wires the service. notifier may be nil.
func NewService(repo Repository, classifier Classifier, notifier Notifier) *Service {
	return &Service{repo: repo, classifier: classifier, notifier: notifier}
}

// ClassifyCall classifies the transcript of a call and stores the outcome.
// A failing notification is logged and reported as a warning.
func (s *Service) ClassifyCall(ctx context.Context, callID, text string) (*Result, error) {
	log := logger.Get().With("component", "classification_service", "call_id", callID)

	category, err := ClassifyText(ctx, text, s.classifier)
	if err != nil {
		log.Warnw("classification failed", "error", err)
		return nil, fmt.Errorf("classify call %s: %w", callID, err)
	}

	created, err := CreateClassification(ctx, ClassificationCreate{CallID: callID, Category: category}, s.repo)
	if err != nil {
		log.Errorw("storing classification failed", "category", category, "error", err)
		return nil, fmt.Errorf("store classification for call %s: %w", callID, err)
	}

	res := &Result{Classification: *created}
	if s.notifier != nil {
		if err := s.notifier.Notify(ctx, *created); err != nil {
			log.Warnw("notification failed, continuing", "classification_id", created.ID, "error", err)
			res.Warnings = append(res.Warnings, fmt.Sprintf("notify: %v", err))
		}
	}

	log.Infow("call classified", "classification_id", created.ID, "category", created.Category)
	return res, nil
}

func (s *Service) Get(ctx context.Context, id int64) (*Classification, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) FindByCall(ctx context.Context, callID string) ([]Classification, error) {
	if strings.TrimSpace(callID) == "" {
		return nil, fmt.Errorf("%w: call_id is required", ErrInvalidInput)
	}
	return s.repo.FindByCallID(ctx, callID)
}

// List returns every stored classification ordered by id. An empty
// repository yields an empty, non-nil slice.
func (s *Service) List(ctx context.Context) ([]Classification, error) {
	return s.repo.List(ctx)
}

// Reclassify overrides the stored category of an existing classification.
func (s *Service) Reclassify(ctx context.Context, id int64, category Category) (*Classification, error) {
	if !DefaultSchema().Contains(category) {
		return nil, fmt.Errorf("%w: unknown category %q", ErrInvalidInput, category)
	}
	current, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	current.Category = category
	updated, err := s.repo.Update(ctx, *current)
	if err != nil {
		return nil, err
	}
	logger.Get().Infow("classification updated", "classification_id", id, "category", category)
	return updated, nil
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	logger.Get().Infow("classification deleted", "classification_id", id)
	return nil
}
