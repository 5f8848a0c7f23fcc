// Package grading turns a session's completed trades into a letter
// grade with the qualitative observations that drove it.
package grading

import (
	"math"

	"SPXEngine/internal/domain/models"
)

const (
	winRatePoints = 40.0
	evRPoints     = 25.0

	stopConsistentPoints = 15.0
	stopPartialPoints    = 8.0
	trimActivePoints     = 10.0
	trimSomePoints       = 6.0
	sizeAdaptivePoints   = 10.0
	sizeUniformPoints    = 5.0

	// avg EV-R saturates the full EV allotment at this value
	evRSaturation = 2.0

	emptySessionScore = 14.0
)

// Grade aggregates a replayed or live session into a 0..100 score and a
// letter grade. Zero-trade sessions resolve to a defined F rather than
// an error.
func Grade(stats models.SessionStats, trades []models.EnrichedTrade) models.SessionGrade {
	if len(trades) == 0 {
		return models.SessionGrade{
			Grade:   "F",
			Score:   emptySessionScore,
			Factors: []string{"No completed trades"},
		}
	}

	factors := []string{}
	score := 0.0

	winRate := winRate(stats, trades)
	score += math.Round(winRate * winRatePoints)
	switch {
	case winRate >= 0.6:
		factors = append(factors, "Strong win rate")
	case winRate >= 0.4:
		factors = append(factors, "Moderate win rate")
	default:
		factors = append(factors, "Low win rate")
	}

	avgEvR := averageExpectedValueR(trades)
	score += math.Round(clamp01(avgEvR/evRSaturation) * evRPoints)
	switch {
	case avgEvR >= 1.5:
		factors = append(factors, "High expected value per trade")
	case avgEvR >= 0.5:
		factors = append(factors, "Positive expected value")
	default:
		factors = append(factors, "Weak expected value")
	}

	stopFraction := fraction(trades, func(t models.EnrichedTrade) bool {
		return len(t.StopLevels) > 0
	})
	switch {
	case stopFraction >= 0.8:
		score += stopConsistentPoints
		factors = append(factors, "Consistent stop usage")
	case stopFraction >= 0.4:
		score += stopPartialPoints
		factors = append(factors, "Partial stop usage")
	default:
		factors = append(factors, "No stop discipline")
	}

	trimFraction := fraction(trades, hasTrim)
	switch {
	case trimFraction >= 0.6:
		score += trimActivePoints
		factors = append(factors, "Active trim management")
	case trimFraction >= 0.25:
		score += trimSomePoints
		factors = append(factors, "Some trim management")
	default:
		factors = append(factors, "No trim management")
	}

	if sizingVaries(trades) {
		score += sizeAdaptivePoints
		factors = append(factors, "Adaptive position sizing")
	} else {
		score += sizeUniformPoints
		factors = append(factors, "Uniform position sizing")
	}

	score = clamp(score, 0, 100)
	return models.SessionGrade{
		Grade:   letter(score),
		Score:   score,
		Factors: factors,
	}
}

func letter(score float64) string {
	switch {
	case score >= 90:
		return "A"
	case score >= 75:
		return "B"
	case score >= 60:
		return "C"
	case score >= 45:
		return "D"
	default:
		return "F"
	}
}

// winRate prefers the precomputed stats when consistent with the trade
// list, else recounts from the trades themselves.
func winRate(stats models.SessionStats, trades []models.EnrichedTrade) float64 {
	if stats.TradeCount == len(trades) && stats.TradeCount > 0 {
		return float64(stats.WinnerCount) / float64(stats.TradeCount)
	}
	return fraction(trades, func(t models.EnrichedTrade) bool { return t.IsWinner })
}

func averageExpectedValueR(trades []models.EnrichedTrade) float64 {
	sum := 0.0
	for _, t := range trades {
		v := t.Evaluation.ExpectedValueR
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		sum += v
	}
	return sum / float64(len(trades))
}

func hasTrim(t models.EnrichedTrade) bool {
	for _, e := range t.ExitEvents {
		if e.Type == models.ExitTrim {
			return true
		}
	}
	return false
}

// sizingVaries reports whether position size differs across trades.
func sizingVaries(trades []models.EnrichedTrade) bool {
	for _, t := range trades[1:] {
		if t.Size != trades[0].Size {
			return true
		}
	}
	return false
}

func fraction(trades []models.EnrichedTrade, pred func(models.EnrichedTrade) bool) float64 {
	n := 0
	for _, t := range trades {
		if pred(t) {
			n++
		}
	}
	return float64(n) / float64(len(trades))
}

func clamp01(v float64) float64 { return clamp(v, 0, 1) }

func clamp(v, lo, hi float64) float64 {
	if v < lo || math.IsNaN(v) {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
