package model

import (
	"errors"
	"fmt"
)

// ErrDuplicateOrderID is returned for a batch that repeats an order id.
var ErrDuplicateOrderID = errors.New("duplicate order id")

// CheckOrderIDs fails on the first order whose id was already seen.
func CheckOrderIDs(orders []Order) error {
	seen := make(map[int]int, len(orders))
	for i, o := range orders {
		if j, ok := seen[o.ID]; ok {
			return fmt.Errorf("orders[%d]: %w %d (also orders[%d])", i, ErrDuplicateOrderID, o.ID, j)
		}
		seen[o.ID] = i
	}
	return nil
}
