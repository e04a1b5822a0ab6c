package introspect

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"cloud.google.com/go/civil"
)

type mockSchemaReader struct {
	names      []string
	min, max   civil.Date
	categories []string
	batchID    string

	sampleCalls int
	tokenErr    error
}

func (m *mockSchemaReader) AccountNameSample(ctx context.Context, limit int) ([]string, error) {
	m.sampleCalls++
	if limit < len(m.names) {
		return m.names[:limit], nil
	}
	return m.names, nil
}

func (m *mockSchemaReader) PeriodRange(ctx context.Context) (civil.Date, civil.Date, error) {
	return m.min, m.max, nil
}

func (m *mockSchemaReader) ListCategories(ctx context.Context) ([]string, error) {
	return m.categories, nil
}

func (m *mockSchemaReader) LatestBatchID(ctx context.Context) (string, error) {
	if m.tokenErr != nil {
		return "", m.tokenErr
	}
	return m.batchID, nil
}

func newReader() *mockSchemaReader {
	return &mockSchemaReader{
		names:      []string{"Product Sales", "Office Rent"},
		min:        civil.Date{Year: 2024, Month: time.January, Day: 1},
		max:        civil.Date{Year: 2024, Month: time.June, Day: 1},
		categories: []string{"Income", "Operating Expense"},
		batchID:    "batch-1",
	}
}

func TestSnapshot(t *testing.T) {
	reader := newReader()
	i := New(reader, 0)

	snap, err := i.Snapshot(context.Background(), "")
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}
	if snap.Token != "batch-1" {
		t.Errorf("token = %q, want batch-1", snap.Token)
	}
	if len(snap.AccountNames) != 2 {
		t.Errorf("account names = %v, want 2 entries", snap.AccountNames)
	}
	if snap.PeriodMin != reader.min || snap.PeriodMax != reader.max {
		t.Errorf("period range = %v..%v, want %v..%v", snap.PeriodMin, snap.PeriodMax, reader.min, reader.max)
	}
}

func TestSnapshot_CachedWhileTokenUnchanged(t *testing.T) {
	reader := newReader()
	i := New(reader, 0)

	first, err := i.Snapshot(context.Background(), "")
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}
	second, err := i.Snapshot(context.Background(), first.Token)
	if err != nil {
		t.Fatalf("second Snapshot failed: %v", err)
	}
	if second != first {
		t.Error("expected the cached snapshot while the token is unchanged")
	}
	if reader.sampleCalls != 1 {
		t.Errorf("sample queried %d times, want 1", reader.sampleCalls)
	}
}

func TestSnapshot_CachedForStaleCallerToken(t *testing.T) {
	reader := newReader()
	i := New(reader, 0)

	first, err := i.Snapshot(context.Background(), "")
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}

	// A caller holding an outdated token still gets the cached snapshot as
	// long as no newer batch has committed.
	second, err := i.Snapshot(context.Background(), "batch-0")
	if err != nil {
		t.Fatalf("Snapshot with stale token failed: %v", err)
	}
	if second != first {
		t.Error("expected the cached snapshot for a stale caller token")
	}
	if reader.sampleCalls != 1 {
		t.Errorf("sample queried %d times, want 1", reader.sampleCalls)
	}
}

func TestSnapshot_RebuiltAfterNewBatch(t *testing.T) {
	reader := newReader()
	i := New(reader, 0)

	first, err := i.Snapshot(context.Background(), "")
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}

	reader.batchID = "batch-2"
	i.Invalidate()

	second, err := i.Snapshot(context.Background(), first.Token)
	if err != nil {
		t.Fatalf("Snapshot after new batch failed: %v", err)
	}
	if second.Token != "batch-2" {
		t.Errorf("token = %q, want batch-2", second.Token)
	}
	if reader.sampleCalls != 2 {
		t.Errorf("sample queried %d times, want 2", reader.sampleCalls)
	}
}

func TestSnapshot_SampleBound(t *testing.T) {
	reader := newReader()
	reader.names = []string{"a", "b", "c", "d", "e"}
	i := New(reader, 3)

	snap, err := i.Snapshot(context.Background(), "")
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}
	if len(snap.AccountNames) != 3 {
		t.Errorf("got %d names, want the sample bound of 3", len(snap.AccountNames))
	}
}

func TestSnapshot_TokenError(t *testing.T) {
	reader := newReader()
	reader.tokenErr = errors.New("timeout")
	i := New(reader, 0)

	if _, err := i.Snapshot(context.Background(), ""); !errors.Is(err, reader.tokenErr) {
		t.Fatalf("error = %v, want wrapped token error", err)
	}
}

func TestText(t *testing.T) {
	snap := &Snapshot{
		AccountNames: []string{"Product Sales"},
		PeriodMin:    civil.Date{Year: 2024, Month: time.January, Day: 1},
		PeriodMax:    civil.Date{Year: 2024, Month: time.June, Day: 1},
		Categories:   []string{"Income"},
		Token:        "batch-1",
	}

	text := snap.Text()
	for _, want := range []string{"financial_facts", "2024-01-01", "2024-06-01", "Income", "Product Sales"} {
		if !strings.Contains(text, want) {
			t.Errorf("rendered text missing %q:\n%s", want, text)
		}
	}
}
