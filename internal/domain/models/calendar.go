package models

import "time"

// StrategyRestriction is an active trading restriction derived from the
// session calendar.
type StrategyRestriction string

const (
	RestrictionBlockAllUntil230 StrategyRestriction = "block_all_until_2:30pm_et"
	RestrictionOpexFadeOnly     StrategyRestriction = "only_fade_at_wall_and_mean_reversion"
)

// CalendarEvent is a notable scheduled event on a session day.
type CalendarEvent struct {
	Name string `json:"name"`
	Kind string `json:"kind"` // "fomc_meeting", "fomc_announcement", "opex"
}

// CalendarContext classifies one Eastern-time session date.
type CalendarContext struct {
	Date                 string                `json:"date"` // YYYY-MM-DD, Eastern
	DayOfWeek            time.Weekday          `json:"dayOfWeek"`
	Events               []CalendarEvent       `json:"events"`
	IsFOMCMeeting        bool                  `json:"isFOMCMeeting"`
	IsFOMCAnnouncement   bool                  `json:"isFOMCAnnouncement"`
	IsOPEXFriday         bool                  `json:"isOPEXFriday"`
	StrategyRestrictions []StrategyRestriction `json:"strategyRestrictions"`
}
