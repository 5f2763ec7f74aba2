package pipeline

import (
	"context"
	"strings"

	"call-classifier/internal/chain"
	"call-classifier/internal/classification"

	"github.com/google/uuid"
)

// Step names, in the priority order NewChain links them.
const (
	StepClassifyCall         = "classify_call"
	StepGetClassification    = "get_classification"
	StepFindByCall           = "find_by_call"
	StepListClassifications  = "list_classifications"
	StepReclassify           = "reclassify"
	StepDeleteClassification = "delete_classification"
)

// IsNewCall matches events announcing a new call transcript.
var IsNewCall = chain.AnyOf(
	chain.FieldEquals("type", "newcall"),
	chain.FieldEquals("source", "newcall"),
)

// ClassifyCallProcessor classifies the "text" of a new call. "call_id" is
// optional; a fresh one is generated when absent.
func ClassifyCallProcessor(svc Service) chain.Processor {
	return chain.MustFunctional(chain.Match(IsNewCall), func(ctx context.Context, ev chain.Event) (any, error) {
		text, err := requiredString(ev, "text")
		if err != nil {
			return nil, err
		}
		callID, err := optionalString(ev, "call_id")
		if err != nil {
			return nil, err
		}
		if callID == "" {
			callID = uuid.New().String()
		}
		return svc.ClassifyCall(ctx, callID, text)
	})
}

func GetClassificationProcessor(svc Service) chain.Processor {
	return chain.MustFunctional(chain.Match(chain.FieldEquals("type", StepGetClassification)), func(ctx context.Context, ev chain.Event) (any, error) {
		id, err := requiredID(ev, "classification_id")
		if err != nil {
			return nil, err
		}
		return svc.Get(ctx, id)
	})
}

func FindByCallProcessor(svc Service) chain.Processor {
	return chain.MustFunctional(chain.Match(chain.FieldEquals("type", StepFindByCall)), func(ctx context.Context, ev chain.Event) (any, error) {
		callID, err := requiredString(ev, "call_id")
		if err != nil {
			return nil, err
		}
		return svc.FindByCall(ctx, callID)
	})
}

func ListClassificationsProcessor(svc Service) chain.Processor {
	return chain.MustFunctional(chain.Match(chain.FieldEquals("type", StepListClassifications)), func(ctx context.Context, _ chain.Event) (any, error) {
		return svc.List(ctx)
	})
}

func ReclassifyProcessor(svc Service) chain.Processor {
	return chain.MustFunctional(chain.Match(chain.FieldEquals("type", StepReclassify)), func(ctx context.Context, ev chain.Event) (any, error) {
		id, err := requiredID(ev, "classification_id")
		if err != nil {
			return nil, err
		}
		category, err := requiredString(ev, "category")
		if err != nil {
			return nil, err
		}
		return svc.Reclassify(ctx, id, classification.Category(strings.ToUpper(strings.TrimSpace(category))))
	})
}

func DeleteClassificationProcessor(svc Service) chain.Processor {
	return chain.MustFunctional(chain.Match(chain.FieldEquals("type", StepDeleteClassification)), func(ctx context.Context, ev chain.Event) (any, error) {
		id, err := requiredID(ev, "classification_id")
		if err != nil {
			return nil, err
		}
		if err := svc.Delete(ctx, id); err != nil {
			return nil, err
		}
		return map[string]int64{"deleted": id}, nil
	})
}

// NewChain assembles every classification processor in priority order.
func NewChain(svc Service) (*chain.Chain, error) {
	return chain.NewBuilder().
		Add(StepClassifyCall, ClassifyCallProcessor(svc)).
		Add(StepGetClassification, GetClassificationProcessor(svc)).
		Add(StepFindByCall, FindByCallProcessor(svc)).
		Add(StepListClassifications, ListClassificationsProcessor(svc)).
		Add(StepReclassify, ReclassifyProcessor(svc)).
		Add(StepDeleteClassification, DeleteClassificationProcessor(svc)).
		Build()
}
