package resolver

import (
	"context"
	"errors"
	"testing"
)

type mockNameLister struct {
	names []string
	err   error
	calls int
}

func (m *mockNameLister) ListDistinctAccountNames(ctx context.Context) ([]string, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.names, nil
}

var accountNames = []string{
	"Office Rent",
	"Office Supplies",
	"Product Sales",
	"Consulting Revenue",
	"Payroll Expenses",
}

func TestResolve_ExactMatchRankedFirst(t *testing.T) {
	r := New(&mockNameLister{names: accountNames})

	matches, err := r.Resolve(context.Background(), "office rent", 0, 0)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if len(matches) == 0 {
		t.Fatal("expected matches for an exact term")
	}
	if matches[0].Name != "Office Rent" {
		t.Errorf("top match = %q, want Office Rent", matches[0].Name)
	}
	if matches[0].Score != 1 {
		t.Errorf("exact match score = %v, want 1", matches[0].Score)
	}
	for i := 1; i < len(matches); i++ {
		if matches[i].Score > matches[i-1].Score {
			t.Errorf("matches not sorted by score: %+v", matches)
		}
	}
}

func TestResolve_NearMiss(t *testing.T) {
	r := New(&mockNameLister{names: accountNames})

	matches, err := r.Resolve(context.Background(), "ofice rent", 5, 0.5)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if len(matches) == 0 {
		t.Fatal("expected a fuzzy match for a near-miss term")
	}
	if matches[0].Name != "Office Rent" {
		t.Errorf("top match = %q, want Office Rent", matches[0].Name)
	}
}

func TestResolve_NoMatchIsEmptyNotError(t *testing.T) {
	r := New(&mockNameLister{names: accountNames})

	matches, err := r.Resolve(context.Background(), "zzzzqqqq", 0, 0)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if len(matches) != 0 {
		t.Errorf("matches = %+v, want empty", matches)
	}
}

func TestResolve_EmptyTerm(t *testing.T) {
	lister := &mockNameLister{names: accountNames}
	r := New(lister)

	matches, err := r.Resolve(context.Background(), "   ", 0, 0)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if matches != nil {
		t.Errorf("matches = %+v, want nil", matches)
	}
	if lister.calls != 0 {
		t.Errorf("lister called %d times for an empty term, want 0", lister.calls)
	}
}

func TestResolve_MaxResults(t *testing.T) {
	r := New(&mockNameLister{names: accountNames})

	matches, err := r.Resolve(context.Background(), "office", 1, 0.3)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if len(matches) > 1 {
		t.Errorf("got %d matches, want at most 1", len(matches))
	}
}

func TestResolve_CacheAndInvalidate(t *testing.T) {
	lister := &mockNameLister{names: accountNames}
	r := New(lister)

	for i := 0; i < 3; i++ {
		if _, err := r.Resolve(context.Background(), "office", 0, 0); err != nil {
			t.Fatalf("Resolve failed: %v", err)
		}
	}
	if lister.calls != 1 {
		t.Errorf("lister called %d times across cached resolves, want 1", lister.calls)
	}

	r.Invalidate()
	if _, err := r.Resolve(context.Background(), "office", 0, 0); err != nil {
		t.Fatalf("Resolve after invalidation failed: %v", err)
	}
	if lister.calls != 2 {
		t.Errorf("lister called %d times after invalidation, want 2", lister.calls)
	}
}

func TestResolve_ListerError(t *testing.T) {
	listErr := errors.New("connection reset")
	r := New(&mockNameLister{err: listErr})

	if _, err := r.Resolve(context.Background(), "office", 0, 0); !errors.Is(err, listErr) {
		t.Fatalf("error = %v, want wrapped lister error", err)
	}
}
