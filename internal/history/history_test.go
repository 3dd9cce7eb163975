package history_test

import (
	"testing"
	"time"

	"modelmon/internal/history"
	"modelmon/internal/models"
)

func point(ts time.Time) models.DashboardPoint {
	return models.DashboardPoint{Timestamp: ts}
}

func TestAppendAndEviction(t *testing.T) {
	base := time.Unix(1700000000, 0)
	r := history.New(3)

	for i := 0; i < 5; i++ {
		if err := r.Append(point(base.Add(time.Duration(i) * time.Second))); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}

	if r.Len() != 3 {
		t.Fatalf("len = %d, want 3", r.Len())
	}

	points := r.Points()
	// Oldest evicted first: points 0 and 1 are gone
	if !points[0].Timestamp.Equal(base.Add(2 * time.Second)) {
		t.Errorf("oldest retained = %v, want %v", points[0].Timestamp, base.Add(2*time.Second))
	}
	if !points[2].Timestamp.Equal(base.Add(4 * time.Second)) {
		t.Errorf("newest retained = %v, want %v", points[2].Timestamp, base.Add(4*time.Second))
	}
}

func TestCapacityAfterManyAppends(t *testing.T) {
	// 60 successful polls with capacity 50: length exactly 50 and the
	// oldest retained point is poll #11's
	base := time.Unix(1700000000, 0)
	r := history.New(50)

	for i := 1; i <= 60; i++ {
		if err := r.Append(point(base.Add(time.Duration(i) * 2 * time.Second))); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}

	if r.Len() != 50 {
		t.Fatalf("len = %d, want 50", r.Len())
	}
	oldest := r.Points()[0]
	if !oldest.Timestamp.Equal(base.Add(11 * 2 * time.Second)) {
		t.Errorf("oldest retained = %v, want poll #11's timestamp", oldest.Timestamp)
	}
}

func TestOutOfOrderRejected(t *testing.T) {
	base := time.Unix(1700000000, 0)
	r := history.New(10)

	if err := r.Append(point(base)); err != nil {
		t.Fatalf("first append: %v", err)
	}

	tests := []struct {
		name string
		ts   time.Time
	}{
		{"duplicate timestamp", base},
		{"earlier timestamp", base.Add(-time.Second)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := r.Append(point(tt.ts)); err != history.ErrOutOfOrder {
				t.Errorf("Append() error = %v, want ErrOutOfOrder", err)
			}
		})
	}

	if r.Len() != 1 {
		t.Errorf("rejected inserts must not change the ring, len = %d", r.Len())
	}
}

func TestPointsReturnsCopy(t *testing.T) {
	base := time.Unix(1700000000, 0)
	r := history.New(10)
	if err := r.Append(point(base)); err != nil {
		t.Fatal(err)
	}

	points := r.Points()
	points[0].Timestamp = base.Add(time.Hour)

	if !r.Points()[0].Timestamp.Equal(base) {
		t.Error("mutating the returned slice must not affect the ring")
	}
}

func TestLastTwo(t *testing.T) {
	base := time.Unix(1700000000, 0)
	r := history.New(10)

	if _, _, ok := r.LastTwo(); ok {
		t.Error("LastTwo on empty ring should report false")
	}

	r.Append(point(base))
	if _, _, ok := r.LastTwo(); ok {
		t.Error("LastTwo with one point should report false")
	}

	r.Append(point(base.Add(time.Second)))
	prev, last, ok := r.LastTwo()
	if !ok {
		t.Fatal("LastTwo with two points should report true")
	}
	if !prev.Timestamp.Equal(base) || !last.Timestamp.Equal(base.Add(time.Second)) {
		t.Error("LastTwo returned points in wrong order")
	}
}
