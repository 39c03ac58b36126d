package planner

import (
	"slices"
	"strings"
	"sync"
)

// Runs remembers the latest GroupStats per plan date. Record has the
// signature of Options.Observe.
type Runs struct {
	mu     sync.Mutex
	byDate map[string]GroupStats
}

func NewRuns() *Runs { return &Runs{byDate: map[string]GroupStats{}} }

func (r *Runs) Record(s GroupStats) {
	r.mu.Lock()
	r.byDate[s.Date] = s
	r.mu.Unlock()
}

func (r *Runs) Get(date string) (GroupStats, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.byDate[date]
	return s, ok
}

// All returns every remembered run ordered by date.
func (r *Runs) All() []GroupStats {
	r.mu.Lock()
	out := make([]GroupStats, 0, len(r.byDate))
	for _, s := range r.byDate {
		out = append(out, s)
	}
	r.mu.Unlock()
	slices.SortFunc(out, func(a, b GroupStats) int { return strings.Compare(a.Date, b.Date) })
	return out
}

// Chain calls every non-nil observer in order.
func Chain(observers ...func(GroupStats)) func(GroupStats) {
	return func(s GroupStats) {
		for _, o := range observers {
			if o != nil {
				o(s)
			}
		}
	}
}
