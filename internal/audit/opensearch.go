package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/opensearch-project/opensearch-go/v2/opensearchapi"
)

const defaultIndex = "wardwatch-audit"

// indexMapping keeps identifiers as exact-match keywords.
const indexMapping = `{
  "mappings": {
    "properties": {
      "id":          {"type": "keyword"},
      "action":      {"type": "keyword"},
      "actor_id":    {"type": "keyword"},
      "hospital_id": {"type": "keyword"},
      "resource":    {"type": "keyword"},
      "resource_id": {"type": "keyword"},
      "result":      {"type": "keyword"},
      "error":       {"type": "text"},
      "metadata":    {"type": "object", "enabled": false},
      "prev_hash":   {"type": "keyword"},
      "hash":        {"type": "keyword"},
      "created_at":  {"type": "date"}
    }
  }
}`

// OpenSearchStorage indexes events for search. It is meant as a secondary
// behind MultiStorage; the chain is verified against the primary.
type OpenSearchStorage struct {
	transport opensearchapi.Transport
	index     string
}

// NewOpenSearchStorage uses transport, typically an *opensearch.Client.
// An empty index selects the default.
func NewOpenSearchStorage(transport opensearchapi.Transport, index string) *OpenSearchStorage {
	if index == "" {
		index = defaultIndex
	}
	return &OpenSearchStorage{transport: transport, index: index}
}

// EnsureIndex creates the index with its mapping when it does not exist.
func (s *OpenSearchStorage) EnsureIndex(ctx context.Context) error {
	res, err := opensearchapi.IndicesCreateRequest{
		Index: s.index,
		Body:  strings.NewReader(indexMapping),
	}.Do(ctx, s.transport)
	if err != nil {
		return errors.Join(ErrStorageNotAvailable, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		body, _ := io.ReadAll(res.Body)
		if bytes.Contains(body, []byte("resource_already_exists_exception")) {
			return nil
		}
		return fmt.Errorf("%w: create index %s: %s", ErrIndexFailed, s.index, res.Status())
	}
	return nil
}

func (s *OpenSearchStorage) Store(ctx context.Context, event Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode audit event: %w", err)
	}

	res, err := opensearchapi.IndexRequest{
		Index:      s.index,
		DocumentID: event.ID,
		Body:       bytes.NewReader(body),
	}.Do(ctx, s.transport)
	if err != nil {
		return errors.Join(ErrStorageNotAvailable, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("%w: index event %s: %s", ErrIndexFailed, event.ID, res.Status())
	}
	return nil
}

func searchQuery(c Criteria) map[string]any {
	var filters []map[string]any
	term := func(field, v string) {
		if v != "" {
			filters = append(filters, map[string]any{"term": map[string]any{field: v}})
		}
	}
	term("action", c.Action)
	term("actor_id", c.ActorID)
	term("hospital_id", c.HospitalID)
	term("resource", c.Resource)
	term("resource_id", c.ResourceID)
	term("result", string(c.Result))

	if !c.StartTime.IsZero() || !c.EndTime.IsZero() {
		rng := map[string]any{}
		if !c.StartTime.IsZero() {
			rng["gte"] = c.StartTime.UTC().Format(time.RFC3339Nano)
		}
		if !c.EndTime.IsZero() {
			rng["lt"] = c.EndTime.UTC().Format(time.RFC3339Nano)
		}
		filters = append(filters, map[string]any{"range": map[string]any{"created_at": rng}})
	}

	size := c.Limit
	if size <= 0 {
		size = 1000
	}

	q := map[string]any{
		"size": size,
		"sort": []any{map[string]any{"created_at": "asc"}, map[string]any{"id": "asc"}},
		"query": map[string]any{
			"bool": map[string]any{"filter": filters},
		},
	}
	if c.Offset > 0 {
		q["from"] = c.Offset
	}
	return q
}

type searchResponse struct {
	Hits struct {
		Hits []struct {
			Source Event `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

func (s *OpenSearchStorage) Query(ctx context.Context, criteria Criteria) ([]Event, error) {
	body, err := json.Marshal(searchQuery(criteria))
	if err != nil {
		return nil, fmt.Errorf("encode audit search: %w", err)
	}

	res, err := opensearchapi.SearchRequest{
		Index: []string{s.index},
		Body:  bytes.NewReader(body),
	}.Do(ctx, s.transport)
	if err != nil {
		return nil, errors.Join(ErrStorageNotAvailable, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("%w: search %s: %s", ErrIndexFailed, s.index, res.Status())
	}

	var sr searchResponse
	if err := json.NewDecoder(res.Body).Decode(&sr); err != nil {
		return nil, fmt.Errorf("decode audit search: %w", err)
	}

	events := make([]Event, 0, len(sr.Hits.Hits))
	for _, h := range sr.Hits.Hits {
		events = append(events, h.Source)
	}
	return events, nil
}
