package customer

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

func daysAgo(n int) *time.Time {
	t := now.Add(-time.Duration(n) * 24 * time.Hour)
	return &t
}

func TestScoreWorkedExample(t *testing.T) {
	c := Customer{
		GamesPlayed:  10,
		TotalPoints:  250,
		LastPlayDate: daysAgo(2),
		Email:        "sam@example.com",
		AgeGroup:     "25-34",
		Location:     "Lisbon",
	}

	e := Score(c, now)

	require.True(t, e.Score.Equal(decimal.RequireFromString("48.5")), "score = %s", e.Score)
	assert.Equal(t, SegmentActive, e.Segment)
	assert.Equal(t, 2, e.DaysSinceLastPlay)
}

func TestScoreComponentsAreCapped(t *testing.T) {
	c := Customer{
		GamesPlayed:  100,
		TotalPoints:  1_000_000,
		LastPlayDate: daysAgo(0),
		Email:        "a", SocialHandle: "b", AgeGroup: "c", Gender: "d", Location: "e",
	}

	e := Score(c, now)

	// 40 + 30 + 20 + 10
	assert.True(t, e.Score.Equal(decimal.NewFromInt(100)), "score = %s", e.Score)
	assert.Equal(t, SegmentLoyal, e.Segment)
}

func TestScoreRoundsToTwoPlaces(t *testing.T) {
	c := Customer{TotalPoints: 1234, LastPlayDate: daysAgo(40)}

	e := Score(c, now)

	assert.Equal(t, "12.34", e.Score.StringFixed(2))
}

func TestSegments(t *testing.T) {
	tests := []struct {
		name    string
		c       Customer
		segment Segment
	}{
		{
			name:    "new player",
			c:       Customer{GamesPlayed: 1, LastPlayDate: daysAgo(1)},
			segment: SegmentNew,
		},
		{
			name:    "never played falls through to at risk",
			c:       Customer{},
			segment: SegmentAtRisk,
		},
		{
			name:    "active with score over fifty",
			c:       Customer{GamesPlayed: 20, TotalPoints: 1000, LastPlayDate: daysAgo(45)},
			segment: SegmentActive,
		},
		{
			name:    "loyal needs recent play",
			c:       Customer{GamesPlayed: 20, TotalPoints: 3000, LastPlayDate: daysAgo(10)},
			segment: SegmentLoyal,
		},
		{
			name:    "at risk after ninety days with a low score",
			c:       Customer{GamesPlayed: 2, TotalPoints: 100, LastPlayDate: daysAgo(120)},
			segment: SegmentAtRisk,
		},
		{
			name:    "inactive after half a year when score is not low",
			c:       Customer{GamesPlayed: 20, TotalPoints: 1000, LastPlayDate: daysAgo(200)},
			segment: SegmentInactive,
		},
		{
			name:    "default is active",
			c:       Customer{GamesPlayed: 5, TotalPoints: 100, LastPlayDate: daysAgo(20)},
			segment: SegmentActive,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.segment, Score(tt.c, now).Segment)
		})
	}
}

func TestScoreIsDeterministic(t *testing.T) {
	c := Customer{GamesPlayed: 7, TotalPoints: 815, LastPlayDate: daysAgo(12), Gender: "f"}

	first := Score(c, now)
	for i := 0; i < 10; i++ {
		again := Score(c, now)
		require.True(t, first.Score.Equal(again.Score))
		require.Equal(t, first.Segment, again.Segment)
	}
}

func TestDaysSinceLastPlay(t *testing.T) {
	assert.Equal(t, NeverPlayedDays, DaysSinceLastPlay(nil, now))
	assert.Equal(t, 0, DaysSinceLastPlay(daysAgo(0), now))

	almostTwo := now.Add(-47 * time.Hour)
	assert.Equal(t, 1, DaysSinceLastPlay(&almostTwo, now))

	future := now.Add(time.Hour)
	assert.Equal(t, 0, DaysSinceLastPlay(&future, now))
}

func TestRecordPlay(t *testing.T) {
	c := Customer{GamesPlayed: 1, TotalSessionDuration: 60, TotalPoints: 40, LastPlayDate: daysAgo(3)}

	e := c.RecordPlay(90, now, now)

	assert.Equal(t, 2, c.GamesPlayed)
	assert.Equal(t, int64(150), c.TotalSessionDuration)
	assert.Equal(t, "75.00", c.AverageSessionDuration.StringFixed(2))
	require.NotNil(t, c.LastPlayDate)
	assert.True(t, c.LastPlayDate.Equal(now))
	assert.Equal(t, e.Segment, c.Segment)
	assert.True(t, e.Score.Equal(c.EngagementScore))
	assert.Equal(t, SegmentNew, c.Segment)
}
