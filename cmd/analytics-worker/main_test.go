package main

import (
	"testing"
	"time"
)

func TestBulkAdjustmentDue(t *testing.T) {
	cases := []struct {
		now  time.Time
		want bool
	}{
		{time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC), true},
		{time.Date(2025, 7, 1, 23, 59, 59, 0, time.UTC), true},
		{time.Date(2025, 7, 2, 0, 0, 0, 0, time.UTC), false},
		{time.Date(2025, 6, 30, 12, 0, 0, 0, time.UTC), false},
		{time.Date(2025, 2, 28, 12, 0, 0, 0, time.UTC), false},
	}
	for _, tc := range cases {
		if got := bulkAdjustmentDue(tc.now); got != tc.want {
			t.Errorf("bulkAdjustmentDue(%s) = %v, want %v", tc.now.Format("2006-01-02 15:04"), got, tc.want)
		}
	}
}
