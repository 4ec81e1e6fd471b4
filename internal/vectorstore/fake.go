package vectorstore

import (
	"context"
	"math"
	"sort"
	"sync"
)

// Fake is an in-memory VectorStore used by component tests that need a
// real search/scroll/delete contract without a running Qdrant instance.
type Fake struct {
	mu        sync.Mutex
	dimension int
	distance  string
	points    map[string]Point
}

// NewFake returns an empty in-memory VectorStore.
func NewFake() *Fake {
	return &Fake{points: make(map[string]Point)}
}

func (f *Fake) Initialize(_ context.Context, dimension int, distanceMetric string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dimension = dimension
	f.distance = distanceMetric
	return nil
}

func (f *Fake) BatchUpsert(_ context.Context, points []Point, _ int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range points {
		f.points[p.ID] = p
	}
	return nil
}

func (f *Fake) Search(_ context.Context, vector []float32, limit int, filter *Filter) ([]SearchResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var results []SearchResult
	for _, p := range f.points {
		if !matches(p, filter) {
			continue
		}
		results = append(results, SearchResult{Point: p, Score: cosineSimilarity(vector, p.Vector)})
	}

	sort.Slice(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func (f *Fake) Scroll(_ context.Context, filter *Filter, limit int, offset *string) ([]Point, *string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var ids []string
	for id, p := range f.points {
		if matches(p, filter) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)

	start := 0
	if offset != nil {
		for i, id := range ids {
			if id == *offset {
				start = i + 1
				break
			}
		}
	}

	if limit <= 0 {
		limit = len(ids)
	}
	end := start + limit
	if end > len(ids) {
		end = len(ids)
	}
	if start > len(ids) {
		start = len(ids)
	}

	page := make([]Point, 0, end-start)
	for _, id := range ids[start:end] {
		page = append(page, f.points[id])
	}

	var next *string
	if end < len(ids) {
		last := ids[end-1]
		next = &last
	}

	return page, next, nil
}

func (f *Fake) Delete(_ context.Context, ids []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range ids {
		delete(f.points, id)
	}
	return nil
}

func (f *Fake) Close() error { return nil }

// Len reports how many points the fake currently holds, for test
// assertions.
func (f *Fake) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.points)
}

func matches(p Point, filter *Filter) bool {
	if filter == nil {
		return true
	}
	for key, want := range filter.Fields {
		if fieldValue(p, key) != want {
			return false
		}
	}
	if len(filter.Filepaths) > 0 {
		fp := fieldValue(p, "filepath")
		found := false
		for _, want := range filter.Filepaths {
			if fp == want {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func fieldValue(p Point, key string) string {
	switch key {
	case "data_type":
		return string(p.Payload.Type)
	case "filepath":
		switch p.Payload.Type {
		case DataTypeFileChunk:
			return p.Payload.File.Filepath
		case DataTypeDiffChunk:
			return p.Payload.Diff.Filepath
		}
	}
	return ""
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
