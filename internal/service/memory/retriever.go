package memory

import (
	"context"

	"github.com/sandevgo/cnapse/internal/core"
)

// Hit is one retrieved message. Score is only comparable across hits when
// Normalized is set, in which case it lies in [0,1].
type Hit struct {
	Message    core.Message
	Score      float64
	Normalized bool
}

// Retriever ranks persisted messages against a query. Results are ordered
// best first and hold at most limit entries.
type Retriever interface {
	Search(ctx context.Context, query string, limit int) ([]Hit, error)
}

// Indexer is implemented by retrievers that keep their own index and must be
// told about new and cleared messages.
type Indexer interface {
	Index(ctx context.Context, msgs ...core.Message) error
	RemoveSession(ctx context.Context, sessionID string) error
}

type MessageSearcher interface {
	SearchMessages(ctx context.Context, query string, limit int) ([]core.Message, error)
}

// SubstringRetriever matches the whole query as a literal substring of
// persisted messages, newest first.
type SubstringRetriever struct {
	store MessageSearcher
}

func NewSubstringRetriever(store MessageSearcher) *SubstringRetriever {
	return &SubstringRetriever{store: store}
}

func (r *SubstringRetriever) Search(ctx context.Context, query string, limit int) ([]Hit, error) {
	msgs, err := r.store.SearchMessages(ctx, query, limit)
	if err != nil {
		return nil, err
	}

	hits := make([]Hit, 0, len(msgs))
	for _, m := range msgs {
		hits = append(hits, Hit{Message: m, Score: 1})
	}
	return hits, nil
}
