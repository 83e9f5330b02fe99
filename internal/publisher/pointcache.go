package publisher

import (
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/testbridge/adopub/internal/ado"
)

// PlanSuite keys the point cache by the structured (plan, suite) pair.
type PlanSuite struct {
	Plan  int
	Suite int
}

// PointCache stores remote test-point records fetched once per unique
// (plan, suite) pair. Entries are written only during the collection phase
// and read-only thereafter; the cache lives for the duration of one run.
type PointCache struct {
	log logrus.FieldLogger

	mu      sync.RWMutex
	entries map[PlanSuite][]ado.TestPoint
}

// NewPointCache creates an empty point cache.
func NewPointCache(log logrus.FieldLogger) *PointCache {
	return &PointCache{
		log:     log.WithField("component", "point_cache"),
		entries: make(map[PlanSuite][]ado.TestPoint),
	}
}

// Put stores the fetched points for a pair. A failed fetch is stored as an
// empty slice so the pair is not fetched again.
func (c *PointCache) Put(pair PlanSuite, points []ado.TestPoint) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[pair] = points

	c.log.WithFields(logrus.Fields{
		"plan":   pair.Plan,
		"suite":  pair.Suite,
		"points": len(points),
	}).Debug("cached test points")
}

// Has reports whether the pair has been populated, including degraded empty
// entries from failed fetches.
func (c *PointCache) Has(pair PlanSuite) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	_, ok := c.entries[pair]
	return ok
}

// Points returns the cached points for a pair. An unpopulated pair yields an
// empty result, never an error.
func (c *PointCache) Points(pair PlanSuite) []ado.TestPoint {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.entries[pair]
}

// PointIDsForCase returns the IDs of cached points whose embedded test-case
// reference matches caseID.
func (c *PointCache) PointIDsForCase(pair PlanSuite, caseID string) []int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var ids []int
	for _, point := range c.entries[pair] {
		if point.TestCase.ID == caseID {
			ids = append(ids, point.ID)
		}
	}

	return ids
}

// CollectedTestPoints is the frozen outcome of a collection phase: the set of
// point IDs the run should be scoped to. Only a successful Collect call
// produces one, which enforces the populate-before-read phase ordering.
type CollectedTestPoints struct {
	ids   []int
	index map[int]bool
	// planID is the first plan observed during collection, used when the run
	// is created.
	planID int
}

func newCollectedTestPoints() *CollectedTestPoints {
	return &CollectedTestPoints{index: make(map[int]bool)}
}

// add records a point ID once, preserving first-seen order.
func (c *CollectedTestPoints) add(id int) {
	if c.index[id] {
		return
	}
	c.index[id] = true
	c.ids = append(c.ids, id)
}

// IDs returns the collected point IDs in first-seen order.
func (c *CollectedTestPoints) IDs() []int {
	out := make([]int, len(c.ids))
	copy(out, c.ids)
	return out
}

// Empty reports whether no scenario mapped to any remote point.
func (c *CollectedTestPoints) Empty() bool {
	return len(c.ids) == 0
}

// PlanID returns the plan the run should be created under, zero when no
// complete mapping was seen.
func (c *CollectedTestPoints) PlanID() int {
	return c.planID
}
