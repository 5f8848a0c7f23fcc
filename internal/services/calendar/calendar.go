// Package calendar classifies Eastern-time session dates and derives the
// strategy restrictions active on them. All functions are pure.
package calendar

import (
	"math"
	"time"

	"SPXEngine/internal/domain/models"
	"SPXEngine/pkg/util"
)

// blockLiftMinutesET is when the FOMC announcement-day block lifts:
// 14:30 Eastern, expressed as minutes since midnight.
const blockLiftMinutesET = 14*60 + 30

// Overrides replaces the built-in FOMC calendar. Dates are YYYY-MM-DD in
// Eastern time.
type Overrides struct {
	FOMCMeetingDays      map[string]bool
	FOMCAnnouncementDays map[string]bool
}

// fomcMeetings lists scheduled FOMC meeting days (both days of each
// two-day meeting). The second day carries the rate announcement.
var fomcMeetings = [][2]string{
	{"2024-01-30", "2024-01-31"},
	{"2024-03-19", "2024-03-20"},
	{"2024-04-30", "2024-05-01"},
	{"2024-06-11", "2024-06-12"},
	{"2024-07-30", "2024-07-31"},
	{"2024-09-17", "2024-09-18"},
	{"2024-11-06", "2024-11-07"},
	{"2024-12-17", "2024-12-18"},
	{"2025-01-28", "2025-01-29"},
	{"2025-03-18", "2025-03-19"},
	{"2025-05-06", "2025-05-07"},
	{"2025-06-17", "2025-06-18"},
	{"2025-07-29", "2025-07-30"},
	{"2025-09-16", "2025-09-17"},
	{"2025-10-28", "2025-10-29"},
	{"2025-12-09", "2025-12-10"},
	{"2026-01-28", "2026-01-29"},
	{"2026-03-17", "2026-03-18"},
	{"2026-04-28", "2026-04-29"},
	{"2026-06-16", "2026-06-17"},
	{"2026-07-28", "2026-07-29"},
	{"2026-09-15", "2026-09-16"},
	{"2026-10-27", "2026-10-28"},
	{"2026-12-08", "2026-12-09"},
}

var (
	builtinMeetingDays      = buildMeetingDays()
	builtinAnnouncementDays = buildAnnouncementDays()
)

func buildMeetingDays() map[string]bool {
	m := make(map[string]bool, len(fomcMeetings)*2)
	for _, pair := range fomcMeetings {
		m[pair[0]] = true
		m[pair[1]] = true
	}
	return m
}

func buildAnnouncementDays() map[string]bool {
	m := make(map[string]bool, len(fomcMeetings))
	for _, pair := range fomcMeetings {
		m[pair[1]] = true
	}
	return m
}

// ContextFor classifies a session date. The date may be YYYY-MM-DD or a
// full timestamp; timestamps collapse to their Eastern date. A nil
// overrides argument selects the built-in FOMC calendar. Unparseable
// dates yield an empty, unrestricted context rather than an error.
func ContextFor(date string, overrides *Overrides) models.CalendarContext {
	day, ok := util.ParseSessionDate(date)
	if !ok {
		return models.CalendarContext{Date: date, Events: []models.CalendarEvent{}, StrategyRestrictions: []models.StrategyRestriction{}}
	}

	key := util.EasternDate(day)
	meetings, announcements := builtinMeetingDays, builtinAnnouncementDays
	if overrides != nil {
		if overrides.FOMCMeetingDays != nil {
			meetings = overrides.FOMCMeetingDays
		}
		if overrides.FOMCAnnouncementDays != nil {
			announcements = overrides.FOMCAnnouncementDays
		}
	}

	ctx := models.CalendarContext{
		Date:                 key,
		DayOfWeek:            day.Weekday(),
		Events:               []models.CalendarEvent{},
		IsFOMCMeeting:        meetings[key],
		IsFOMCAnnouncement:   announcements[key],
		StrategyRestrictions: []models.StrategyRestriction{},
	}

	opex := util.ThirdFriday(day.Year(), day.Month())
	ctx.IsOPEXFriday = day.Weekday() == time.Friday && day.Day() == opex.Day()

	if ctx.IsFOMCMeeting {
		ctx.Events = append(ctx.Events, models.CalendarEvent{Name: "FOMC meeting", Kind: "fomc_meeting"})
	}
	if ctx.IsFOMCAnnouncement {
		ctx.Events = append(ctx.Events, models.CalendarEvent{Name: "FOMC rate announcement", Kind: "fomc_announcement"})
		ctx.StrategyRestrictions = append(ctx.StrategyRestrictions, models.RestrictionBlockAllUntil230)
	}
	if ctx.IsOPEXFriday {
		ctx.Events = append(ctx.Events, models.CalendarEvent{Name: "Monthly OPEX", Kind: "opex"})
		ctx.StrategyRestrictions = append(ctx.StrategyRestrictions, models.RestrictionOpexFadeOnly)
	}

	return ctx
}

// BlockResult reports whether all strategies are currently blocked.
type BlockResult struct {
	Blocked bool   `json:"blocked"`
	Reason  string `json:"reason,omitempty"`
}

// ShouldBlockStrategies blocks everything before 14:30 ET on an FOMC
// announcement day.
func ShouldBlockStrategies(ctx models.CalendarContext, minutesSinceMidnightET int) BlockResult {
	if ctx.IsFOMCAnnouncement && minutesSinceMidnightET < blockLiftMinutesET {
		return BlockResult{Blocked: true, Reason: "FOMC announcement pending (blocked until 2:30pm ET)"}
	}
	return BlockResult{}
}

// IsSetupTypeAllowed applies the active restrictions to one setup type.
func IsSetupTypeAllowed(t models.SetupType, ctx models.CalendarContext, minutesSinceMidnightET int) bool {
	if ShouldBlockStrategies(ctx, minutesSinceMidnightET).Blocked {
		return false
	}
	if ctx.IsOPEXFriday {
		return t == models.SetupFadeAtWall || t == models.SetupMeanReversion
	}
	return true
}

// GEXAdaptiveStopMultiplier widens or tightens a setup's stop based on the
// dealer gamma profile. Positive net gamma dampens moves (tighter stop);
// negative net gamma amplifies them (wider stop, more so for mean
// reversion). Zero or non-finite input leaves the stop untouched.
func GEXAdaptiveStopMultiplier(netGex float64, setupType models.SetupType) float64 {
	if netGex == 0 || math.IsNaN(netGex) || math.IsInf(netGex, 0) {
		return 1.0
	}
	if netGex > 0 {
		return 0.9
	}
	if setupType == models.SetupMeanReversion {
		return 1.125
	}
	return 1.10
}
