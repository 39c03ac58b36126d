package planner

import (
	"slices"

	"dronenav/internal/model"
)

// groupState is everything the batching loop of one date group carries from
// one iteration to the next. Transitions return a new value and never mutate
// the receiver.
type groupState struct {
	pending []model.Order
	failed  map[int]bool
}

func newGroupState(orders []model.Order) groupState {
	return groupState{pending: slices.Clone(orders), failed: map[int]bool{}}
}

// done reports whether nothing schedulable is left.
func (s groupState) done() bool {
	for _, o := range s.pending {
		if !s.failed[o.ID] {
			return false
		}
	}
	return true
}

// active returns the pending orders not marked failed, in queue order.
func (s groupState) active() []model.Order {
	out := make([]model.Order, 0, len(s.pending))
	for _, o := range s.pending {
		if !s.failed[o.ID] {
			out = append(out, o)
		}
	}
	return out
}

// drop removes the first pending order with the given id.
func (s groupState) drop(id int) groupState {
	i := slices.IndexFunc(s.pending, func(o model.Order) bool { return o.ID == id })
	if i < 0 {
		return s
	}
	return groupState{pending: slices.Delete(slices.Clone(s.pending), i, i+1), failed: s.failed}
}

// remove takes every given order off the queue.
func (s groupState) remove(orders []model.Order) groupState {
	gone := make(map[int]bool, len(orders))
	for _, o := range orders {
		gone[o.ID] = true
	}
	pending := slices.DeleteFunc(slices.Clone(s.pending), func(o model.Order) bool { return gone[o.ID] })
	return groupState{pending: pending, failed: s.failed}
}

// fail marks orders as unserviceable for the rest of this pass. They stay
// queued but are skipped by every later step.
func (s groupState) fail(orders []model.Order) groupState {
	failed := make(map[int]bool, len(s.failed)+len(orders))
	for id := range s.failed {
		failed[id] = true
	}
	for _, o := range orders {
		failed[o.ID] = true
	}
	return groupState{pending: s.pending, failed: failed}
}
