package memory

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/lang/en"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/sandevgo/cnapse/internal/core"
	"github.com/sandevgo/cnapse/pkg/log"
	"github.com/sandevgo/cnapse/pkg/tokens"
)

// chunks of one message compete for the same slot, so over-fetch.
const keywordFetchFactor = 4

// KeywordRetriever ranks messages by term relevance over an in-memory bleve
// index. Scores are normalized against the best hit of each search.
type KeywordRetriever struct {
	index   bleve.Index
	chunker *Chunker

	mu       sync.RWMutex
	messages map[string]core.Message
	sessions map[string][]string
}

func NewKeywordRetriever(counter tokens.Counter) (*KeywordRetriever, error) {
	index, err := bleve.NewMemOnly(buildIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("failed to create keyword index: %w", err)
	}

	return &KeywordRetriever{
		index:    index,
		chunker:  NewChunker(MessageChunkerConfig(), counter),
		messages: make(map[string]core.Message),
		sessions: make(map[string][]string),
	}, nil
}

func buildIndexMapping() mapping.IndexMapping {
	indexMapping := bleve.NewIndexMapping()

	chunkMapping := bleve.NewDocumentMapping()

	textField := bleve.NewTextFieldMapping()
	textField.Analyzer = en.AnalyzerName
	textField.Store = false
	chunkMapping.AddFieldMappingsAt("text", textField)

	roleField := bleve.NewKeywordFieldMapping()
	roleField.Store = false
	chunkMapping.AddFieldMappingsAt("role", roleField)

	indexMapping.DefaultMapping = chunkMapping
	return indexMapping
}

// Index adds messages to the index. System messages and messages already
// indexed are skipped.
func (r *KeywordRetriever) Index(ctx context.Context, msgs ...core.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	batch := r.index.NewBatch()
	added := make(map[string][]string)
	var fresh []string

	for _, msg := range msgs {
		if msg.ID == "" || msg.Role == core.RoleSystem {
			continue
		}
		if _, ok := r.messages[msg.ID]; ok {
			continue
		}

		for _, chunk := range r.chunker.Split(msg.Content) {
			docID := chunkDocID(msg.ID, chunk.Index)
			doc := map[string]any{
				"text": chunk.Text,
				"role": msg.Role,
			}
			if err := batch.Index(docID, doc); err != nil {
				return fmt.Errorf("failed to add message %s to batch: %w", msg.ID, err)
			}
			added[msg.SessionID] = append(added[msg.SessionID], docID)
		}
		r.messages[msg.ID] = msg
		fresh = append(fresh, msg.ID)
	}

	if batch.Size() == 0 {
		return nil
	}
	if err := r.index.Batch(batch); err != nil {
		for _, id := range fresh {
			delete(r.messages, id)
		}
		return fmt.Errorf("failed to index messages: %w", err)
	}

	for sessionID, ids := range added {
		r.sessions[sessionID] = append(r.sessions[sessionID], ids...)
	}

	log.FromCtx(ctx).Debug().Int("docs", batch.Size()).Msg("keyword index updated")
	return nil
}

// RemoveSession drops every indexed message of a session.
func (r *KeywordRetriever) RemoveSession(_ context.Context, sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := r.sessions[sessionID]
	if len(ids) > 0 {
		batch := r.index.NewBatch()
		for _, id := range ids {
			batch.Delete(id)
		}
		if err := r.index.Batch(batch); err != nil {
			return fmt.Errorf("failed to remove session %s: %w", sessionID, err)
		}
	}

	delete(r.sessions, sessionID)
	for id, msg := range r.messages {
		if msg.SessionID == sessionID {
			delete(r.messages, id)
		}
	}
	return nil
}

func (r *KeywordRetriever) Search(_ context.Context, query string, limit int) ([]Hit, error) {
	query = strings.TrimSpace(query)
	if query == "" || limit <= 0 {
		return nil, nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	q := bleve.NewMatchQuery(query)
	q.SetField("text")

	req := bleve.NewSearchRequestOptions(q, limit*keywordFetchFactor, 0, false)
	res, err := r.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("keyword search failed: %w", err)
	}
	if len(res.Hits) == 0 {
		return nil, nil
	}

	top := res.Hits[0].Score
	seen := make(map[string]struct{}, len(res.Hits))
	hits := make([]Hit, 0, limit)

	for _, h := range res.Hits {
		msgID := messageIDOf(h.ID)
		if _, dup := seen[msgID]; dup {
			continue
		}
		msg, ok := r.messages[msgID]
		if !ok {
			continue
		}
		seen[msgID] = struct{}{}

		score := 0.0
		if top > 0 {
			score = h.Score / top
		}
		hits = append(hits, Hit{Message: msg, Score: score, Normalized: true})
		if len(hits) == limit {
			break
		}
	}
	return hits, nil
}

// Backfill indexes the messages of the most recently updated sessions so a
// fresh process can retrieve history written by earlier runs.
func (r *KeywordRetriever) Backfill(ctx context.Context, sessions core.SessionRepository, store core.MemoryStore, maxSessions int) (int, error) {
	list, err := sessions.ListSessions(ctx, maxSessions)
	if err != nil {
		return 0, fmt.Errorf("failed to list sessions: %w", err)
	}

	total := 0
	for _, s := range list {
		msgs, err := store.GetMessages(ctx, s.ID, 0)
		if err != nil {
			return total, fmt.Errorf("failed to load session %s: %w", s.ID, err)
		}
		if err := r.Index(ctx, msgs...); err != nil {
			return total, err
		}
		total += len(msgs)
	}
	return total, nil
}

// Len reports how many messages are indexed.
func (r *KeywordRetriever) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.messages)
}

func (r *KeywordRetriever) Close() error {
	return r.index.Close()
}

func chunkDocID(msgID string, idx int) string {
	return msgID + "/" + strconv.Itoa(idx)
}

func messageIDOf(docID string) string {
	if i := strings.LastIndexByte(docID, '/'); i >= 0 {
		return docID[:i]
	}
	return docID
}
