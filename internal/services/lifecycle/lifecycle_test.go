package lifecycle

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"SPXEngine/internal/domain/models"
)

func boolp(b bool) *bool      { return &b }
func f64p(f float64) *float64 { return &f }
func iso(t time.Time) string  { return t.UTC().Format(time.RFC3339) }

func baseSetup(status models.SetupStatus, createdAt time.Time) models.Setup {
	return models.Setup{
		ID:              "s-1",
		Type:            models.SetupTrendContinuation,
		Direction:       models.Bullish,
		EntryZone:       models.PriceZone{Low: 5000, High: 5005},
		Stop:            4990,
		ConfluenceScore: 4,
		Regime:          models.RegimeTrending,
		Status:          status,
		CreatedAt:       iso(createdAt),
	}
}

func TestTriggeredIsTerminal(t *testing.T) {
	now := time.Date(2026, 3, 23, 15, 0, 0, 0, time.UTC)
	s := baseSetup(models.StatusTriggered, now.Add(-48*time.Hour))

	got := Transition(s, Input{CurrentPrice: 4000, Now: now})
	assert.Equal(t, models.StatusTriggered, got, "triggered must never expire")
}

func TestBarConfirmedTrigger(t *testing.T) {
	now := time.Date(2026, 3, 23, 15, 0, 0, 0, time.UTC)
	s := baseSetup(models.StatusReady, now.Add(-time.Minute))

	got := Transition(s, Input{
		CurrentPrice:   5002,
		Now:            now,
		BarConfirmed:   boolp(true),
		LatestBarClose: f64p(5002),
	})
	assert.Equal(t, models.StatusTriggered, got)
}

func TestBarNotConfirmedHoldsReady(t *testing.T) {
	now := time.Date(2026, 3, 23, 15, 0, 0, 0, time.UTC)
	s := baseSetup(models.StatusReady, now.Add(-time.Minute))

	// current price inside the zone but the bar has not closed there
	got := Transition(s, Input{
		CurrentPrice:   5002,
		Now:            now,
		BarConfirmed:   boolp(false),
		LatestBarClose: f64p(5002),
	})
	assert.Equal(t, models.StatusReady, got)
}

func TestEntryZoneBoundariesInclusive(t *testing.T) {
	now := time.Date(2026, 3, 23, 15, 0, 0, 0, time.UTC)
	for _, close := range []float64{5000, 5005} {
		s := baseSetup(models.StatusReady, now.Add(-time.Minute))
		got := Transition(s, Input{
			Now:            now,
			BarConfirmed:   boolp(true),
			LatestBarClose: f64p(close),
		})
		assert.Equal(t, models.StatusTriggered, got, "close %.0f should trigger", close)
	}
}

func TestLegacyCallerUsesCurrentPrice(t *testing.T) {
	now := time.Date(2026, 3, 23, 15, 0, 0, 0, time.UTC)
	s := baseSetup(models.StatusReady, now.Add(-time.Minute))

	got := Transition(s, Input{CurrentPrice: 5003, Now: now})
	assert.Equal(t, models.StatusTriggered, got)

	s = baseSetup(models.StatusReady, now.Add(-time.Minute))
	got = Transition(s, Input{CurrentPrice: 4999.5, Now: now})
	assert.Equal(t, models.StatusReady, got)
}

func TestFormingPromotesOnConfluence(t *testing.T) {
	now := time.Date(2026, 3, 23, 15, 0, 0, 0, time.UTC)
	s := baseSetup(models.StatusForming, now.Add(-time.Minute))
	s.ConfluenceScore = 2

	got := Transition(s, Input{CurrentPrice: 4900, Now: now})
	assert.Equal(t, models.StatusForming, got)

	got = Transition(s, Input{CurrentPrice: 4900, Now: now, ConfluenceScore: f64p(3)})
	assert.Equal(t, models.StatusReady, got)
}

func TestRegimeAwareTTLBoundary(t *testing.T) {
	created := time.Date(2026, 3, 23, 14, 0, 0, 0, time.UTC)
	s := baseSetup(models.StatusReady, created)
	s.Regime = models.RegimeCompression // ready TTL = 50 minutes

	// one second before expiry
	got := Transition(s, Input{CurrentPrice: 4900, Now: created.Add(50*time.Minute - time.Second)})
	assert.Equal(t, models.StatusReady, got)

	// one second past expiry
	got = Transition(s, Input{CurrentPrice: 4900, Now: created.Add(50*time.Minute + time.Second)})
	assert.Equal(t, models.StatusExpired, got)
}

func TestTTLTablePerRegime(t *testing.T) {
	cases := []struct {
		regime  models.Regime
		status  models.SetupStatus
		minutes int
	}{
		{models.RegimeTrending, models.StatusForming, 15},
		{models.RegimeTrending, models.StatusReady, 25},
		{models.RegimeTrending, models.StatusTriggered, 20},
		{models.RegimeBreakout, models.StatusForming, 10},
		{models.RegimeBreakout, models.StatusReady, 20},
		{models.RegimeBreakout, models.StatusTriggered, 15},
		{models.RegimeCompression, models.StatusForming, 30},
		{models.RegimeCompression, models.StatusReady, 50},
		{models.RegimeCompression, models.StatusTriggered, 30},
		{models.RegimeRanging, models.StatusForming, 25},
		{models.RegimeRanging, models.StatusReady, 45},
		{models.RegimeRanging, models.StatusTriggered, 25},
		{models.RegimeUnknown, models.StatusForming, 30},
		{models.RegimeUnknown, models.StatusReady, 30},
	}
	for _, c := range cases {
		assert.Equal(t, time.Duration(c.minutes)*time.Minute, TTLFor(c.regime, c.status),
			"regime=%s status=%s", c.regime, c.status)
	}
}

func TestMalformedCreatedAtNeverExpires(t *testing.T) {
	now := time.Date(2026, 3, 23, 15, 0, 0, 0, time.UTC)
	s := baseSetup(models.StatusReady, now)
	s.CreatedAt = "garbage"

	got := Transition(s, Input{CurrentPrice: 4900, Now: now.Add(24 * time.Hour)})
	assert.Equal(t, models.StatusReady, got)
}
