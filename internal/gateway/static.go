package gateway

import (
	"context"
	"fmt"
	"strings"

	"call-classifier/internal/classification"
)

// KeywordRule maps a lower-case keyword to the category it implies.
type KeywordRule struct {
	Keyword  string
	Category classification.Category
}

// StaticClassifier answers without any network call. Rules are tried in
// order and the first whose keyword appears in the text decides the
// category; otherwise it returns the fallback. It backs local runs and
// tests.
type StaticClassifier struct {
	Fallback classification.Category
	Rules    []KeywordRule
}

func NewStaticClassifier(fallback classification.Category) *StaticClassifier {
	return &StaticClassifier{
		Fallback: fallback,
		Rules: []KeywordRule{
			{Keyword: "follow-up", Category: classification.CategoryFollowing},
			{Keyword: "follow up", Category: classification.CategoryFollowing},
			{Keyword: "previous", Category: classification.CategoryFollowing},
		},
	}
}

func (s *StaticClassifier) Classify(_ context.Context, text string, schema classification.CategorySchema) (classification.Category, error) {
	lower := strings.ToLower(text)
	for _, r := range s.Rules {
		if strings.Contains(lower, r.Keyword) && schema.Contains(r.Category) {
			return r.Category, nil
		}
	}
	if !schema.Contains(s.Fallback) {
		return "", fmt.Errorf("%w: fallback %q is not one of [%s]", classification.ErrUnexpectedResponse, s.Fallback, schema)
	}
	return s.Fallback, nil
}
