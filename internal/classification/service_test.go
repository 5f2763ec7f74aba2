package classification_test

import (
	"context"
	"errors"
	"testing"

	"call-classifier/internal/classification"
	"call-classifier/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubClassifier struct {
	category classification.Category
	err      error
	calls    int
	schema   classification.CategorySchema
}

func (s *stubClassifier) Classify(_ context.Context, _ string, schema classification.CategorySchema) (classification.Category, error) {
	s.calls++
	s.schema = schema
	return s.category, s.err
}

type stubNotifier struct {
	err   error
	calls []classification.Classification
}

func (s *stubNotifier) Notify(_ context.Context, c classification.Classification) error {
	s.calls = append(s.calls, c)
	return s.err
}

func TestClassifyTextUsesDefaultSchema(t *testing.T) {
	cl := &stubClassifier{category: classification.CategoryCommercial}

	got, err := classification.ClassifyText(context.Background(), "Sample text", cl)
	require.NoError(t, err)
	assert.Equal(t, classification.CategoryCommercial, got)
	assert.Equal(t, 1, cl.calls)
	assert.Equal(t, classification.DefaultSchema(), cl.schema)
}

func TestClassifyTextRejects(t *testing.T) {
	_, err := classification.ClassifyText(context.Background(), "  ", &stubClassifier{})
	assert.ErrorIs(t, err, classification.ErrInvalidInput)

	_, err = classification.ClassifyText(context.Background(), "hi", &stubClassifier{category: "SPAM"})
	assert.ErrorIs(t, err, classification.ErrUnexpectedResponse)
}

func TestClassifyCallStoresAndNotifies(t *testing.T) {
	repo := storage.NewMemoryRepository()
	notifier := &stubNotifier{}
	svc := classification.NewService(repo, &stubClassifier{category: classification.CategoryFollowing}, notifier)

	res, err := svc.ClassifyCall(context.Background(), "call_1", "following up")
	require.NoError(t, err)

	assert.EqualValues(t, 1, res.Classification.ID)
	assert.Equal(t, "call_1", res.Classification.CallID)
	assert.Equal(t, classification.CategoryFollowing, res.Classification.Category)
	assert.Empty(t, res.Warnings)
	require.Len(t, notifier.calls, 1)
	assert.Equal(t, res.Classification, notifier.calls[0])

	stored, err := repo.GetByID(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, res.Classification, *stored)
}

func TestClassifyCallToleratesNotifierFailure(t *testing.T) {
	repo := storage.NewMemoryRepository()
	notifier := &stubNotifier{err: errors.New("connection refused")}
	svc := classification.NewService(repo, &stubClassifier{category: classification.CategoryCommercial}, notifier)

	res, err := svc.ClassifyCall(context.Background(), "call_1", "buy a car")
	require.NoError(t, err)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "connection refused")

	_, err = repo.GetByID(context.Background(), res.Classification.ID)
	assert.NoError(t, err)
}

func TestClassifyCallPropagatesClassifierFailure(t *testing.T) {
	repo := storage.NewMemoryRepository()
	svc := classification.NewService(repo, &stubClassifier{err: classification.ErrClassifierFailed}, nil)

	_, err := svc.ClassifyCall(context.Background(), "call_1", "text")
	assert.ErrorIs(t, err, classification.ErrClassifierFailed)

	all, err := repo.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestClassifyCallRequiresCallID(t *testing.T) {
	svc := classification.NewService(storage.NewMemoryRepository(), &stubClassifier{category: classification.CategoryCommercial}, nil)

	_, err := svc.ClassifyCall(context.Background(), "", "text")
	assert.ErrorIs(t, err, classification.ErrInvalidInput)
}

func TestReclassifyAndDelete(t *testing.T) {
	ctx := context.Background()
	repo := storage.NewMemoryRepository()
	svc := classification.NewService(repo, &stubClassifier{category: classification.CategoryCommercial}, nil)

	res, err := svc.ClassifyCall(ctx, "call_1", "text")
	require.NoError(t, err)
	id := res.Classification.ID

	updated, err := svc.Reclassify(ctx, id, classification.CategoryFollowing)
	require.NoError(t, err)
	assert.Equal(t, classification.CategoryFollowing, updated.Category)

	_, err = svc.Reclassify(ctx, id, "SPAM")
	assert.ErrorIs(t, err, classification.ErrInvalidInput)
	_, err = svc.Reclassify(ctx, id+1, classification.CategoryFollowing)
	assert.ErrorIs(t, err, classification.ErrNotFound)

	found, err := svc.FindByCall(ctx, "call_1")
	require.NoError(t, err)
	assert.Len(t, found, 1)
	_, err = svc.FindByCall(ctx, "")
	assert.ErrorIs(t, err, classification.ErrInvalidInput)

	require.NoError(t, svc.Delete(ctx, id))
	_, err = svc.Get(ctx, id)
	assert.ErrorIs(t, err, classification.ErrNotFound)
}

func TestCategorySchema(t *testing.T) {
	s := classification.DefaultSchema()
	assert.Equal(t, "COMMERCIAL, FOLLOWING", s.String())

	for raw, want := range map[string]classification.Category{
		"COMMERCIAL":     classification.CategoryCommercial,
		" commercial\n":  classification.CategoryCommercial,
		"\"Following.\"": classification.CategoryFollowing,
		"**FOLLOWING**":  classification.CategoryFollowing,
	} {
		got, err := s.Parse(raw)
		require.NoError(t, err, raw)
		assert.Equal(t, want, got, raw)
	}

	_, err := s.Parse("COMMERCIAL and FOLLOWING")
	assert.ErrorIs(t, err, classification.ErrUnexpectedResponse)
}
