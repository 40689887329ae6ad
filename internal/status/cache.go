// Package status exposes the state of the current run over HTTP.
package status

import (
	"sync"

	"github.com/raphi011/gauntlet"
	"github.com/raphi011/gauntlet/internal/model"
)

// Cache is a hook that keeps a snapshot of the latest run and its cases.
// The scheduler writes to it from a single goroutine, the HTTP handlers
// read from it concurrently.
type Cache struct {
	mu    sync.RWMutex
	run   *model.RunHTTP
	cases *sync.Map
}

func NewCache() *Cache {
	return &Cache{cases: &sync.Map{}}
}

func (c *Cache) Name() string {
	return "status"
}

func (c *Cache) Init() error {
	return nil
}

func (c *Cache) RunStarted(run gauntlet.RunInfo, cases []*gauntlet.TestCase) {
	r := &model.RunHTTP{
		ID:      run.ID,
		Start:   run.Start,
		Cases:   len(cases),
		Counts:  map[string]int{},
		CaseIDs: make([]uint64, 0, len(cases)),
	}

	m := &sync.Map{}

	for _, tc := range cases {
		r.CaseIDs = append(r.CaseIDs, tc.ID())
		m.Store(tc.ID(), snapshot(tc))
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.run = r
	c.cases = m
}

func (c *Cache) CaseStarted(run gauntlet.RunInfo, tc *gauntlet.TestCase) {
	c.store(tc)
}

func (c *Cache) CaseFinished(run gauntlet.RunInfo, tc *gauntlet.TestCase) {
	c.store(tc)

	state, err := tc.Result()
	if err != nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.run != nil && c.run.ID == run.ID {
		c.run.Counts[state.Label]++
	}
}

func (c *Cache) RunFinished(run gauntlet.RunInfo, cases []*gauntlet.TestCase) {
	for _, tc := range cases {
		c.store(tc)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.run != nil && c.run.ID == run.ID {
		c.run.End = run.End
		c.run.ExitCode = run.ExitCode
		c.run.Finished = true
	}
}

func (c *Cache) store(tc *gauntlet.TestCase) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	c.cases.Store(tc.ID(), snapshot(tc))
}

// Run returns a copy of the latest run.
func (c *Cache) Run() (model.RunHTTP, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.run == nil {
		return model.RunHTTP{}, model.NotFoundError{}
	}

	r := *c.run
	r.Counts = make(map[string]int, len(c.run.Counts))
	for k, v := range c.run.Counts {
		r.Counts[k] = v
	}
	r.CaseIDs = append([]uint64(nil), c.run.CaseIDs...)

	return r, nil
}

// Case returns the latest snapshot of a case of the latest run.
func (c *Cache) Case(id uint64) (model.CaseHTTP, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	v, ok := c.cases.Load(id)
	if !ok {
		return model.CaseHTTP{}, model.NotFoundError{}
	}

	return v.(model.CaseHTTP), nil
}

// Cases returns the latest snapshots of the cases of the latest run in
// submission order.
func (c *Cache) Cases() ([]model.CaseHTTP, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.run == nil {
		return nil, model.NotFoundError{}
	}

	cases := make([]model.CaseHTTP, 0, len(c.run.CaseIDs))

	for _, id := range c.run.CaseIDs {
		if v, ok := c.cases.Load(id); ok {
			cases = append(cases, v.(model.CaseHTTP))
		}
	}

	return cases, nil
}

func snapshot(tc *gauntlet.TestCase) model.CaseHTTP {
	cs := model.CaseHTTP{
		ID:           tc.ID(),
		Name:         tc.Name(),
		Progress:     tc.Progress(),
		DurationInMS: tc.Duration().Milliseconds(),
	}

	if state, err := tc.Result(); err == nil {
		cs.Result = &state
		cs.Records = tc.Records()
	}

	return cs
}
