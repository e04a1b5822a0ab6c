// Package resolver fuzzy-matches free-text account references against the
// distinct account names known to the fact store. The name set is cached and
// invalidated whenever an ingestion batch commits.
package resolver

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/adrg/strutil"
	"github.com/adrg/strutil/metrics"
)

const (
	DefaultMinScore   = 0.6
	DefaultMaxResults = 10
)

// NameLister is the storage primitive the resolver reads from.
type NameLister interface {
	ListDistinctAccountNames(ctx context.Context) ([]string, error)
}

// Match is one ranked candidate. Score is in [0, 1]; an exact
// case-insensitive match always scores 1.
type Match struct {
	Name  string  `json:"name"`
	Score float64 `json:"score"`
}

type Resolver struct {
	lister NameLister

	mu     sync.RWMutex
	names  []string
	loaded bool
}

func New(lister NameLister) *Resolver {
	return &Resolver{lister: lister}
}

// Resolve returns up to maxResults account names scoring at least minScore
// against the term, best first. Zero values select the defaults. No candidate
// clearing the threshold is a normal empty result, not an error.
func (r *Resolver) Resolve(ctx context.Context, term string, maxResults int, minScore float64) ([]Match, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return nil, nil
	}
	if maxResults <= 0 {
		maxResults = DefaultMaxResults
	}
	if minScore <= 0 {
		minScore = DefaultMinScore
	}

	names, err := r.load(ctx)
	if err != nil {
		return nil, fmt.Errorf("Resolve: loading account names: %w", err)
	}

	metric := metrics.NewSorensenDice()
	needle := strings.ToLower(term)

	matches := make([]Match, 0, maxResults)
	for _, name := range names {
		var score float64
		if strings.ToLower(name) == needle {
			score = 1
		} else {
			score = strutil.Similarity(needle, strings.ToLower(name), metric)
		}
		if score >= minScore {
			matches = append(matches, Match{Name: name, Score: score})
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].Name < matches[j].Name
	})
	if len(matches) > maxResults {
		matches = matches[:maxResults]
	}
	return matches, nil
}

// Invalidate drops the cached name set. The next Resolve call reloads it;
// concurrent readers keep using the old set until then.
func (r *Resolver) Invalidate() {
	r.mu.Lock()
	r.names = nil
	r.loaded = false
	r.mu.Unlock()
}

func (r *Resolver) load(ctx context.Context) ([]string, error) {
	r.mu.RLock()
	if r.loaded {
		names := r.names
		r.mu.RUnlock()
		return names, nil
	}
	r.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.loaded {
		return r.names, nil
	}

	names, err := r.lister.ListDistinctAccountNames(ctx)
	if err != nil {
		return nil, err
	}
	r.names = names
	r.loaded = true
	return names, nil
}
