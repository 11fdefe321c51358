package repo

import "time"

// defaultLimit caps a page when no limit, or a larger one, is asked for.
const defaultLimit = 100

// MovementFilter narrows GetByCode. A Limit of zero asks for the total count only.
type MovementFilter struct {
	Since  *time.Time
	Until  *time.Time
	Offset *int
	Limit  *int
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}
