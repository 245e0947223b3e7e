package audit_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wardwatch/wardwatch/internal/audit"
)

type recordedRequest struct {
	method string
	path   string
	body   string
}

type fakeTransport struct {
	requests []recordedRequest
	status   int
	body     string
}

func (f *fakeTransport) Perform(req *http.Request) (*http.Response, error) {
	var body []byte
	if req.Body != nil {
		body, _ = io.ReadAll(req.Body)
	}
	f.requests = append(f.requests, recordedRequest{method: req.Method, path: req.URL.Path, body: string(body)})

	status := f.status
	if status == 0 {
		status = http.StatusOK
	}
	return &http.Response{
		StatusCode: status,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(strings.NewReader(f.body)),
	}, nil
}

func TestOpenSearchStorage_Store(t *testing.T) {
	t.Parallel()

	tr := &fakeTransport{status: http.StatusCreated, body: `{"result":"created"}`}
	s := audit.NewOpenSearchStorage(tr, "audit-test")

	err := s.Store(context.Background(), audit.Event{
		ID: "e1", Action: audit.ActionAlertEscalated, Result: audit.ResultSuccess, HospitalID: "h1",
		CreatedAt: time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	require.Len(t, tr.requests, 1)
	assert.Equal(t, http.MethodPut, tr.requests[0].method)
	assert.Equal(t, "/audit-test/_doc/e1", tr.requests[0].path)

	var doc map[string]any
	require.NoError(t, json.Unmarshal([]byte(tr.requests[0].body), &doc))
	assert.Equal(t, "alert.escalated", doc["action"])
	assert.Equal(t, "h1", doc["hospital_id"])
}

func TestOpenSearchStorage_StoreRejected(t *testing.T) {
	t.Parallel()

	tr := &fakeTransport{status: http.StatusBadRequest, body: `{"error":"mapper_parsing_exception"}`}
	err := audit.NewOpenSearchStorage(tr, "").Store(context.Background(), audit.Event{ID: "e1"})
	assert.ErrorIs(t, err, audit.ErrIndexFailed)
	assert.Equal(t, "/wardwatch-audit/_doc/e1", tr.requests[0].path)
}

func TestOpenSearchStorage_Query(t *testing.T) {
	t.Parallel()

	tr := &fakeTransport{body: `{"hits":{"hits":[
		{"_source":{"id":"e1","action":"alert.raised","result":"success","hash":"h1","created_at":"2026-03-01T08:00:00Z"}},
		{"_source":{"id":"e2","action":"alert.escalated","result":"success","prev_hash":"h1","hash":"h2","created_at":"2026-03-01T08:05:00Z"}}
	]}}`}
	s := audit.NewOpenSearchStorage(tr, "audit-test")

	events, err := s.Query(context.Background(), audit.Criteria{
		HospitalID: "h1",
		Resource:   "alert",
		StartTime:  time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		Limit:      50,
		Offset:     10,
	})
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "e2", events[1].ID)
	assert.Equal(t, "h1", events[1].PrevHash)

	require.Len(t, tr.requests, 1)
	assert.Equal(t, "/audit-test/_search", tr.requests[0].path)

	var q map[string]any
	require.NoError(t, json.Unmarshal([]byte(tr.requests[0].body), &q))
	assert.EqualValues(t, 50, q["size"])
	assert.EqualValues(t, 10, q["from"])
	body := tr.requests[0].body
	assert.Contains(t, body, `{"term":{"hospital_id":"h1"}}`)
	assert.Contains(t, body, `{"term":{"resource":"alert"}}`)
	assert.Contains(t, body, `"gte":"2026-03-01T00:00:00Z"`)
}

func TestOpenSearchStorage_EnsureIndex(t *testing.T) {
	t.Parallel()

	t.Run("creates the index", func(t *testing.T) {
		t.Parallel()
		tr := &fakeTransport{body: `{"acknowledged":true}`}
		require.NoError(t, audit.NewOpenSearchStorage(tr, "audit-test").EnsureIndex(context.Background()))
		assert.Equal(t, http.MethodPut, tr.requests[0].method)
		assert.Equal(t, "/audit-test", tr.requests[0].path)
		assert.Contains(t, tr.requests[0].body, `"hospital_id": {"type": "keyword"}`)
	})

	t.Run("existing index is fine", func(t *testing.T) {
		t.Parallel()
		tr := &fakeTransport{status: http.StatusBadRequest,
			body: `{"error":{"type":"resource_already_exists_exception"}}`}
		assert.NoError(t, audit.NewOpenSearchStorage(tr, "audit-test").EnsureIndex(context.Background()))
	})

	t.Run("other failures surface", func(t *testing.T) {
		t.Parallel()
		tr := &fakeTransport{status: http.StatusForbidden, body: `{"error":"forbidden"}`}
		assert.ErrorIs(t, audit.NewOpenSearchStorage(tr, "audit-test").EnsureIndex(context.Background()), audit.ErrIndexFailed)
	})
}
