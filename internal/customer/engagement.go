package customer

import (
	"time"

	"github.com/shopspring/decimal"
)

// NeverPlayedDays stands in for days-since-last-play when a customer has no plays.
const NeverPlayedDays = 999

var (
	gamesCap   = decimal.NewFromInt(40)
	pointsCap  = decimal.NewFromInt(30)
	hundred    = decimal.NewFromInt(100)
	profileMax = decimal.NewFromInt(5)
	ten        = decimal.NewFromInt(10)
)

type Engagement struct {
	Score             decimal.Decimal
	Segment           Segment
	DaysSinceLastPlay int
}

// Score computes the engagement score and segment of c as of now.
func Score(c Customer, now time.Time) Engagement {
	days := DaysSinceLastPlay(c.LastPlayDate, now)

	games := decimal.Min(decimal.NewFromInt(int64(c.GamesPlayed)*2), gamesCap)
	points := decimal.Min(decimal.NewFromInt(c.TotalPoints).Div(hundred), pointsCap)

	var recency decimal.Decimal
	switch {
	case days <= 7:
		recency = decimal.NewFromInt(20)
	case days <= 30:
		recency = decimal.NewFromInt(10)
	default:
		recency = decimal.Zero
	}

	profile := decimal.NewFromInt(int64(FilledProfileFields(c))).Div(profileMax).Mul(ten)

	score := games.Add(points).Add(recency).Add(profile).Round(2)
	return Engagement{
		Score:             score,
		Segment:           segmentFor(score, days, c.GamesPlayed),
		DaysSinceLastPlay: days,
	}
}

func segmentFor(score decimal.Decimal, days int, gamesPlayed int) Segment {
	switch {
	case score.GreaterThanOrEqual(decimal.NewFromInt(70)) && days <= 30:
		return SegmentLoyal
	case score.GreaterThanOrEqual(decimal.NewFromInt(50)) && days <= 60:
		return SegmentActive
	case days <= 7 && gamesPlayed <= 3:
		return SegmentNew
	case days > 90 && score.LessThan(decimal.NewFromInt(30)):
		return SegmentAtRisk
	case days > 180:
		return SegmentInactive
	default:
		return SegmentActive
	}
}

// DaysSinceLastPlay returns whole days elapsed since last, or NeverPlayedDays.
func DaysSinceLastPlay(last *time.Time, now time.Time) int {
	if last == nil {
		return NeverPlayedDays
	}
	d := now.Sub(*last)
	if d < 0 {
		return 0
	}
	return int(d / (24 * time.Hour))
}

// FilledProfileFields counts the optional profile fields that carry a value.
func FilledProfileFields(c Customer) int {
	n := 0
	for _, v := range []string{c.Email, c.SocialHandle, c.AgeGroup, c.Gender, c.Location} {
		if v != "" {
			n++
		}
	}
	return n
}
