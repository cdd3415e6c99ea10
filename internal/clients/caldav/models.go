package caldav

import "time"

// Calendar represents a calendar discovered on the CalDAV server
type Calendar struct {
	ID          string // Calendar path/URL
	DisplayName string
	URL         string
}

// Event represents one intake reminder pushed to the calendar
type Event struct {
	UID             string // schedule event id doubles as the CalDAV UID
	Summary         string // "💊 Amoxicillin — 1 tab"
	Description     string
	StartTime       time.Time
	EndTime         time.Time
	AlarmMinsBefore int // 0 = no VALARM
}
