// Package lifecycle advances a setup's status from live price and time.
// Transition is a pure function; the caller owns writing the result back.
package lifecycle

import (
	"time"

	"SPXEngine/internal/domain/models"
	"SPXEngine/pkg/util"
)

// legacyTTLMinutes applies when a setup carries no regime at all. Kept for
// setups persisted before regime tagging; new setups always carry one.
const legacyTTLMinutes = 30

// ttlMinutes maps (regime, status) to the minutes a setup may remain in
// that status before expiring.
var ttlMinutes = map[models.Regime]map[models.SetupStatus]int{
	models.RegimeTrending:    {models.StatusForming: 15, models.StatusReady: 25, models.StatusTriggered: 20},
	models.RegimeBreakout:    {models.StatusForming: 10, models.StatusReady: 20, models.StatusTriggered: 15},
	models.RegimeCompression: {models.StatusForming: 30, models.StatusReady: 50, models.StatusTriggered: 30},
	models.RegimeRanging:     {models.StatusForming: 25, models.StatusReady: 45, models.StatusTriggered: 25},
}

// TTLFor returns the status lifetime for a regime, falling back to the
// flat legacy value when the regime is unknown.
func TTLFor(regime models.Regime, status models.SetupStatus) time.Duration {
	if byStatus, ok := ttlMinutes[regime]; ok {
		if m, ok := byStatus[status]; ok {
			return time.Duration(m) * time.Minute
		}
	}
	return legacyTTLMinutes * time.Minute
}

// Input carries the live readings a transition decision needs.
type Input struct {
	CurrentPrice    float64
	Now             time.Time
	ConfluenceScore *float64 // overrides the setup's own score when set
	LatestBarClose  *float64
	BarConfirmed    *bool // nil means legacy caller: compare CurrentPrice directly
}

// Transition computes the next status for a setup. Rules apply in order:
//
//  1. triggered is terminal
//  2. TTL expiry against CreatedAt (malformed timestamps never expire)
//  3. forming -> ready once confluence >= 3
//  4. ready -> triggered on a bar-confirmed close inside the entry zone,
//     boundaries inclusive; legacy callers fall back to CurrentPrice
func Transition(s models.Setup, in Input) models.SetupStatus {
	if s.Status == models.StatusTriggered {
		return models.StatusTriggered
	}

	if createdAt, ok := util.ParseTime(s.CreatedAt); ok {
		if in.Now.Sub(createdAt) >= TTLFor(s.Regime, s.Status) {
			return models.StatusExpired
		}
	}

	status := s.Status
	confluence := s.ConfluenceScore
	if in.ConfluenceScore != nil {
		confluence = *in.ConfluenceScore
	}
	if status == models.StatusForming && confluence >= 3 {
		status = models.StatusReady
	}

	if status == models.StatusReady && entryConfirmed(s.EntryZone, in) {
		return models.StatusTriggered
	}
	return status
}

func entryConfirmed(zone models.PriceZone, in Input) bool {
	if in.BarConfirmed != nil {
		if !*in.BarConfirmed || in.LatestBarClose == nil {
			return false
		}
		return zone.Contains(*in.LatestBarClose)
	}
	return zone.Contains(in.CurrentPrice)
}
