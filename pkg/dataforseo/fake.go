package dataforseo

import (
	"context"
	"fmt"
	"hash/fnv"
	"math/rand/v2"
	"sync"
)

// Fake is an in-memory Client producing deterministic synthetic results.
// Output is a pure function of keyword and coordinate, so offline runs, demos,
// and tests exercise the same orchestrator and aggregator code as production.
type Fake struct {
	// BusinessName is woven into result titles at the generated rank.
	BusinessName string
	// ReadyAfterPolls delays readiness by that many IsReady calls per task.
	ReadyAfterPolls int
	// Depth is the synthetic result list length. Default 20.
	Depth int

	mu    sync.Mutex
	tasks map[string]TaskRequest
	polls map[string]int
}

// competitors seeds plausible rival titles around the target business.
var competitors = []string{
	"Summit Plumbing & Heating",
	"Metro Drain Pros",
	"Cascade Home Services",
	"Bright Water Mechanical",
	"Allied Pipe Works",
	"Northgate Service Co",
	"Rapid Rooter Crew",
	"Evergreen Repair Group",
	"Citywide Fix It",
	"Harbor Line Contractors",
}

// NewFake creates a deterministic fake provider for the given business.
func NewFake(businessName string) *Fake {
	return &Fake{
		BusinessName: businessName,
		Depth:        20,
		tasks:        make(map[string]TaskRequest),
		polls:        make(map[string]int),
	}
}

// SubmitTask registers the request and returns a synthetic task id.
func (f *Fake) SubmitTask(_ context.Context, req TaskRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := fmt.Sprintf("fake-%016x", taskSeed(req))
	f.tasks[id] = req
	return id, nil
}

// IsReady reports readiness after the configured number of polls.
func (f *Fake) IsReady(_ context.Context, taskID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.tasks[taskID]; !ok {
		return false, nil
	}
	f.polls[taskID]++
	return f.polls[taskID] > f.ReadyAfterPolls, nil
}

// FetchResult synthesizes the result list for a registered task.
func (f *Fake) FetchResult(_ context.Context, taskID string) (*TaskResult, error) {
	f.mu.Lock()
	req, ok := f.tasks[taskID]
	polled := f.polls[taskID]
	f.mu.Unlock()

	if !ok {
		return nil, ErrNotFound
	}
	if polled <= f.ReadyAfterPolls {
		return nil, ErrNotReady
	}

	depth := f.Depth
	if depth <= 0 {
		depth = 20
	}

	rng := rand.New(rand.NewPCG(taskSeed(req), 0))

	// Roughly a third of points draw a rank past the list depth and come
	// back unranked, which mirrors real suburban falloff well enough.
	rank := 1 + rng.IntN(depth+depth/2)

	res := &TaskResult{SearchVolume: 100 + rng.IntN(4900)}
	for pos := 1; pos <= depth; pos++ {
		title := competitors[rng.IntN(len(competitors))]
		if pos == rank && f.BusinessName != "" {
			title = f.BusinessName
		}
		res.Items = append(res.Items, ResultItem{
			Position: pos,
			Title:    title,
			URL:      fmt.Sprintf("https://maps.example.com/place/%d", rng.IntN(1_000_000)),
		})
	}
	return res, nil
}

// taskSeed derives a stable seed from keyword and coordinate.
func taskSeed(req TaskRequest) uint64 {
	h := fnv.New64a()
	fmt.Fprintf(h, "%s|%.7f|%.7f", req.Keyword, req.Lat, req.Lng)
	return h.Sum64()
}
