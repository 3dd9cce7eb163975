package history

import (
	"errors"

	"modelmon/internal/models"
)

// ErrOutOfOrder is returned when an insert would break timestamp ordering.
// Callers treat it as a logic error: reject, log, keep the loop running.
var ErrOutOfOrder = errors.New("history point is not newer than the latest retained point")

// Ring is a fixed-capacity, insertion-ordered buffer of recent dashboard
// points. When full, the oldest point is evicted first.
type Ring struct {
	capacity int
	points   []models.DashboardPoint
}

// New creates a ring with the given capacity; capacity must be positive
// (enforced at config validation).
func New(capacity int) *Ring {
	return &Ring{
		capacity: capacity,
		points:   make([]models.DashboardPoint, 0, capacity),
	}
}

// Append inserts a point, evicting the oldest when at capacity. Points with
// a timestamp at or before the latest retained one are rejected.
func (r *Ring) Append(p models.DashboardPoint) error {
	if n := len(r.points); n > 0 && !p.Timestamp.After(r.points[n-1].Timestamp) {
		return ErrOutOfOrder
	}
	if len(r.points) >= r.capacity {
		copy(r.points, r.points[1:])
		r.points = r.points[:len(r.points)-1]
	}
	r.points = append(r.points, p)
	return nil
}

// Len returns the number of retained points
func (r *Ring) Len() int {
	return len(r.points)
}

// Points returns a copy of the retained points, oldest first
func (r *Ring) Points() []models.DashboardPoint {
	out := make([]models.DashboardPoint, len(r.points))
	copy(out, r.points)
	return out
}

// LastTwo returns the two most recent points, oldest first, and whether
// two points exist.
func (r *Ring) LastTwo() (prev, last models.DashboardPoint, ok bool) {
	n := len(r.points)
	if n < 2 {
		return models.DashboardPoint{}, models.DashboardPoint{}, false
	}
	return r.points[n-2], r.points[n-1], true
}
