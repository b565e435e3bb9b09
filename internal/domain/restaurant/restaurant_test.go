package restaurant

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestAddRating(t *testing.T) {
	tests := []struct {
		name      string
		avg       string
		count     int
		rating    int
		wantAvg   string
		wantCount int
	}{
		{name: "first rating", avg: "0", count: 0, rating: 3, wantAvg: "3", wantCount: 1},
		{name: "four ratings of 4 plus a 5", avg: "4.0", count: 4, rating: 5, wantAvg: "4.2", wantCount: 5},
		{name: "lowering average", avg: "5", count: 1, rating: 1, wantAvg: "3", wantCount: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			avg, count := AddRating(decimal.RequireFromString(tt.avg), tt.count, tt.rating)
			assert.True(t, decimal.RequireFromString(tt.wantAvg).Equal(avg), "got average %s", avg)
			assert.Equal(t, tt.wantCount, count)
		})
	}
}
