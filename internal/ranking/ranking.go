// Package ranking turns raw hall ratings into a ranked leaderboard.
package ranking

import (
	"sort"

	"github.com/penne-app/penne/internal/models"
)

// Option adjusts aggregation
type Option func(*options)

type options struct {
	overrides map[string]float64
}

// WithOverrides replaces the aggregated score of the named subjects with a
// fixed value (the viewer's own rating). Overridden rows are marked Personal
// and ordered by the override.
func WithOverrides(overrides map[string]float64) Option {
	return func(o *options) {
		o.overrides = overrides
	}
}

type tally struct {
	sum   int
	count int
}

// AggregateAndRank groups ratings by dining hall, averages them and ranks the
// halls by mean descending. Equal means are ordered by hall name and still
// receive distinct ranks. Halls in knownSubjects with no ratings appear with
// mean 0 and count 0.
func AggregateAndRank(ratings []models.Rating, knownSubjects []string, opts ...Option) []models.AggregatedRanking {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	tallies := make(map[string]*tally)
	for _, name := range knownSubjects {
		if _, ok := tallies[name]; !ok {
			tallies[name] = &tally{}
		}
	}
	for _, r := range ratings {
		t, ok := tallies[r.DiningHallName]
		if !ok {
			t = &tally{}
			tallies[r.DiningHallName] = t
		}
		t.sum += r.Score
		t.count++
	}
	for name := range o.overrides {
		if _, ok := tallies[name]; !ok {
			tallies[name] = &tally{}
		}
	}

	out := make([]models.AggregatedRanking, 0, len(tallies))
	for name, t := range tallies {
		row := models.AggregatedRanking{DiningHallName: name, Count: t.count}
		if t.count > 0 {
			row.MeanScore = float64(t.sum) / float64(t.count)
		}
		if v, ok := o.overrides[name]; ok {
			row.MeanScore = v
			row.Personal = true
		}
		out = append(out, row)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].MeanScore != out[j].MeanScore {
			return out[i].MeanScore > out[j].MeanScore
		}
		return out[i].DiningHallName < out[j].DiningHallName
	})
	for i := range out {
		out[i].Rank = i + 1
	}
	return out
}

// PersonalOverrides returns userID's own score per hall
func PersonalOverrides(ratings []models.Rating, userID string) map[string]float64 {
	out := make(map[string]float64)
	if userID == "" {
		return out
	}
	for _, r := range ratings {
		if r.UserID == userID {
			out[r.DiningHallName] = float64(r.Score)
		}
	}
	return out
}

// ExcludeRater returns the ratings not made by userID
func ExcludeRater(ratings []models.Rating, userID string) []models.Rating {
	out := make([]models.Rating, 0, len(ratings))
	for _, r := range ratings {
		if userID == "" || r.UserID != userID {
			out = append(out, r)
		}
	}
	return out
}

// Personalized ranks halls the way a signed-in viewer sees them: halls the
// viewer rated show their own score, the rest show everyone else's mean.
func Personalized(ratings []models.Rating, knownSubjects []string, userID string) []models.AggregatedRanking {
	overrides := PersonalOverrides(ratings, userID)
	return AggregateAndRank(ExcludeRater(ratings, userID), knownSubjects, WithOverrides(overrides))
}

// Top returns the first n rows (the podium for n = 3)
func Top(rankings []models.AggregatedRanking, n int) []models.AggregatedRanking {
	if n < 0 {
		n = 0
	}
	if n > len(rankings) {
		n = len(rankings)
	}
	return rankings[:n]
}

// Find returns the row for a hall
func Find(rankings []models.AggregatedRanking, hall string) (models.AggregatedRanking, bool) {
	for _, r := range rankings {
		if r.DiningHallName == hall {
			return r, true
		}
	}
	return models.AggregatedRanking{}, false
}
