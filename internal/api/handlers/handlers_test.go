package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"cloud.google.com/go/civil"
	"github.com/avelkov/finfacts/internal/introspect"
	"github.com/avelkov/finfacts/internal/jobs"
	"github.com/avelkov/finfacts/internal/jobs/inmemory"
	"github.com/avelkov/finfacts/internal/logger"
	"github.com/avelkov/finfacts/internal/mediator"
	"github.com/avelkov/finfacts/internal/queryguard"
	"github.com/avelkov/finfacts/internal/resolver"
)

type stubExecutor struct{}

func (stubExecutor) ExecuteReadQuery(ctx context.Context, query string) ([]string, [][]string, error) {
	return []string{"account_name"}, [][]string{{"Product Sales"}}, nil
}

type stubNameLister struct{}

func (stubNameLister) ListDistinctAccountNames(ctx context.Context) ([]string, error) {
	return []string{"Product Sales", "Office Rent"}, nil
}

type stubSchemaReader struct{}

func (stubSchemaReader) AccountNameSample(ctx context.Context, limit int) ([]string, error) {
	return []string{"Product Sales"}, nil
}

func (stubSchemaReader) PeriodRange(ctx context.Context) (civil.Date, civil.Date, error) {
	return civil.Date{Year: 2024, Month: 1, Day: 1}, civil.Date{Year: 2024, Month: 6, Day: 1}, nil
}

func (stubSchemaReader) ListCategories(ctx context.Context) ([]string, error) {
	return []string{"Income"}, nil
}

func (stubSchemaReader) LatestBatchID(ctx context.Context) (string, error) {
	return "batch-1", nil
}

func newQueryHandler() *QueryHandler {
	m := mediator.New(
		queryguard.New(200),
		resolver.New(stubNameLister{}),
		introspect.New(stubSchemaReader{}, 0),
		stubExecutor{},
	)
	return NewQueryHandler(m, logger.New())
}

func TestQuery(t *testing.T) {
	h := newQueryHandler()

	req := httptest.NewRequest(http.MethodPost, "/v1/query", strings.NewReader(`{"sql": "SELECT account_name FROM financial_facts"}`))
	w := httptest.NewRecorder()
	h.Query(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body)
	}
	var resp mediator.Response
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if len(resp.Rows) != 1 {
		t.Errorf("rows = %+v, want 1 row", resp.Rows)
	}
}

func TestQuery_UnsafeSQL(t *testing.T) {
	h := newQueryHandler()

	req := httptest.NewRequest(http.MethodPost, "/v1/query", strings.NewReader(`{"sql": "DROP TABLE financial_facts"}`))
	w := httptest.NewRecorder()
	h.Query(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400: %s", w.Code, w.Body)
	}
	if !strings.Contains(w.Body.String(), "unsafe query") {
		t.Errorf("error body does not name the violation: %s", w.Body)
	}
}

func TestQuery_MissingSQL(t *testing.T) {
	h := newQueryHandler()

	req := httptest.NewRequest(http.MethodPost, "/v1/query", strings.NewReader(`{}`))
	w := httptest.NewRecorder()
	h.Query(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestResolveAccount(t *testing.T) {
	h := newQueryHandler()

	req := httptest.NewRequest(http.MethodPost, "/v1/resolve", strings.NewReader(`{"term": "product sales"}`))
	w := httptest.NewRecorder()
	h.ResolveAccount(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body)
	}
	if !strings.Contains(w.Body.String(), "Product Sales") {
		t.Errorf("response missing matched name: %s", w.Body)
	}
}

func TestGetSchema(t *testing.T) {
	h := newQueryHandler()

	req := httptest.NewRequest(http.MethodGet, "/v1/schema", nil)
	w := httptest.NewRecorder()
	h.GetSchema(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body)
	}
	var snap introspect.Snapshot
	if err := json.Unmarshal(w.Body.Bytes(), &snap); err != nil {
		t.Fatalf("decoding snapshot: %v", err)
	}
	if snap.Token != "batch-1" {
		t.Errorf("token = %q, want batch-1", snap.Token)
	}
}

func TestEnqueueIngest(t *testing.T) {
	store := inmemory.NewStore()
	queue := inmemory.NewQueue(4, store)
	defer queue.Close()
	h := NewIngestHandler(queue, logger.New())

	body := `{"source": "column_report", "document_path": "data/report.json"}`
	req := httptest.NewRequest(http.MethodPost, "/v1/ingest", strings.NewReader(body))
	w := httptest.NewRecorder()
	h.EnqueueIngest(w, req)

	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202: %s", w.Code, w.Body)
	}
	var resp map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp["job_id"] == "" {
		t.Error("response missing job_id")
	}

	if _, err := store.GetJob(context.Background(), resp["job_id"]); err != nil {
		t.Errorf("published job not in store: %v", err)
	}
}

func TestEnqueueIngest_BadSource(t *testing.T) {
	h := NewIngestHandler(inmemory.NewQueue(1, nil), logger.New())

	body := `{"source": "csv_export", "document_path": "data/report.csv"}`
	req := httptest.NewRequest(http.MethodPost, "/v1/ingest", strings.NewReader(body))
	w := httptest.NewRecorder()
	h.EnqueueIngest(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestGetJob_NotFound(t *testing.T) {
	h := NewJobsHandler(inmemory.NewStore(), logger.New())

	req := httptest.NewRequest(http.MethodGet, "/v1/jobs/missing", nil)
	w := httptest.NewRecorder()
	h.GetJob(w, req, "missing")

	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
}

func TestListJobs(t *testing.T) {
	store := inmemory.NewStore()
	_ = store.SaveJob(context.Background(), &jobs.IngestSourceJob{JobID: "1", Source: "column_report", Status: jobs.JobStatusCompleted})
	h := NewJobsHandler(store, logger.New())

	req := httptest.NewRequest(http.MethodGet, "/v1/jobs?status=completed", nil)
	w := httptest.NewRecorder()
	h.ListJobs(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"count":1`) {
		t.Errorf("response = %s, want count 1", w.Body)
	}
}
