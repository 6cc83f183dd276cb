// Package report computes summary statistics over a finished run.
package report

import (
	"strconv"

	"ctrip-reviews/models"
)

// Stats summarises the final record set. Score statistics cover only
// records whose score coerces to a number; ScoredCount says how many did.
type Stats struct {
	Count       int
	ServerTotal int

	ScoredCount int
	ScoreMean   float64
	ScoreMin    float64
	ScoreMax    float64

	UsefulSum  int
	UsefulMean float64
}

// Compute derives statistics from reviews. serverTotal is the count the
// API reported on the first page; it is carried through untouched.
func Compute(reviews []*models.Review, serverTotal int) Stats {
	stats := Stats{
		Count:       len(reviews),
		ServerTotal: serverTotal,
	}
	if len(reviews) == 0 {
		return stats
	}

	scoreSum := 0.0
	for _, review := range reviews {
		stats.UsefulSum += review.UsefulCount

		score, err := strconv.ParseFloat(review.Score, 64)
		if err != nil {
			continue
		}
		if stats.ScoredCount == 0 || score < stats.ScoreMin {
			stats.ScoreMin = score
		}
		if stats.ScoredCount == 0 || score > stats.ScoreMax {
			stats.ScoreMax = score
		}
		scoreSum += score
		stats.ScoredCount++
	}

	if stats.ScoredCount > 0 {
		stats.ScoreMean = scoreSum / float64(stats.ScoredCount)
	}
	stats.UsefulMean = float64(stats.UsefulSum) / float64(len(reviews))

	return stats
}
