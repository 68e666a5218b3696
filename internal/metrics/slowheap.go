package metrics

import (
	"container/heap"
	"sort"

	"github.com/tinytelemetry/logsift/internal/model"
)

// slowHeap keeps the K slowest requests in a fixed-capacity min-heap.
// The root is the entry that would be evicted next.
type slowHeap struct {
	limit int
	items []model.SlowRequest
}

func newSlowHeap(limit int) *slowHeap {
	return &slowHeap{limit: limit, items: make([]model.SlowRequest, 0, limit)}
}

// slower is a total order: higher response time first, then the earlier
// timestamp (unknown timestamps last), then source position.
func slower(a, b model.SlowRequest) bool {
	if a.ResponseTimeMs != b.ResponseTimeMs {
		return a.ResponseTimeMs > b.ResponseTimeMs
	}
	az, bz := a.Timestamp.IsZero(), b.Timestamp.IsZero()
	if az != bz {
		return bz
	}
	if !a.Timestamp.Equal(b.Timestamp) {
		return a.Timestamp.Before(b.Timestamp)
	}
	if a.SourceFile != b.SourceFile {
		return a.SourceFile < b.SourceFile
	}
	if a.SourceLine != b.SourceLine {
		return a.SourceLine < b.SourceLine
	}
	if a.Endpoint != b.Endpoint {
		return a.Endpoint < b.Endpoint
	}
	return a.ClientAddress < b.ClientAddress
}

func (h *slowHeap) Len() int           { return len(h.items) }
func (h *slowHeap) Less(i, j int) bool { return slower(h.items[j], h.items[i]) }
func (h *slowHeap) Swap(i, j int)      { h.items[i], h.items[j] = h.items[j], h.items[i] }

func (h *slowHeap) Push(x any) {
	h.items = append(h.items, x.(model.SlowRequest))
}

func (h *slowHeap) Pop() any {
	n := len(h.items)
	it := h.items[n-1]
	h.items = h.items[:n-1]
	return it
}

// offer keeps s if the heap has room or s outranks the current minimum.
func (h *slowHeap) offer(s model.SlowRequest) {
	if h.limit <= 0 {
		return
	}
	if len(h.items) < h.limit {
		heap.Push(h, s)
		return
	}
	if slower(s, h.items[0]) {
		h.items[0] = s
		heap.Fix(h, 0)
	}
}

func (h *slowHeap) merge(other *slowHeap) {
	for _, s := range other.items {
		h.offer(s)
	}
}

// sorted returns the retained entries slowest first.
func (h *slowHeap) sorted() []model.SlowRequest {
	out := make([]model.SlowRequest, len(h.items))
	copy(out, h.items)
	sort.Slice(out, func(i, j int) bool { return slower(out[i], out[j]) })
	return out
}
