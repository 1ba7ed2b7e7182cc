package model

import (
	"fmt"
	"time"
)

// EventType identifies what kind of event a Record describes.
type EventType string

const (
	EventPee         EventType = "pee"
	EventPoop        EventType = "poop"
	EventFeeding     EventType = "feeding"
	EventTemperature EventType = "temperature"
	EventVitaminD    EventType = "vitamin_d"
	EventVitaminK    EventType = "vitamin_k"
)

// EventTypes lists every known event type.
var EventTypes = []EventType{EventPee, EventPoop, EventFeeding, EventTemperature, EventVitaminD, EventVitaminK}

// Valid reports whether t is a known event type.
func (t EventType) Valid() bool {
	for _, known := range EventTypes {
		if t == known {
			return true
		}
	}
	return false
}

// IsVitamin reports whether t is one of the vitamin toggles.
func (t EventType) IsVitamin() bool {
	return t == EventVitaminD || t == EventVitaminK
}

// Side is the breast used for a feeding.
type Side string

const (
	SideNone  Side = ""
	SideLeft  Side = "left"
	SideRight Side = "right"
)

// ParseSide converts user input into a Side.
func ParseSide(s string) (Side, error) {
	switch s {
	case "left", "l", "L":
		return SideLeft, nil
	case "right", "r", "R":
		return SideRight, nil
	default:
		return SideNone, fmt.Errorf("unknown side %q (want left or right)", s)
	}
}

// Record is a single event stored in the record store.
// Only the fields relevant to Type are meaningful; the others stay zero.
type Record struct {
	ID        string // assigned by the store, immutable
	Type      EventType
	Timestamp time.Time

	// feeding
	Side            Side
	StartTime       time.Time
	DurationSeconds int64

	// temperature, in °C
	Temperature float64
}

// EndTime is the instant a feeding finished, which is its Timestamp.
func (r *Record) EndTime() time.Time {
	return r.Timestamp
}

// DailySummary holds the statistics derived from one day's records.
type DailySummary struct {
	FeedingCount   int
	FeedingMinutes int64
	LastFeeding    *time.Time // end time of the most recent feeding

	LastTemperature  *time.Time
	TemperatureC     float64
	PeeCount         int
	PoopCount        int
	VitaminDGiven    bool
	VitaminDRecordID string
	VitaminKGiven    bool
	VitaminKRecordID string
}

// Vitamin returns whether the given vitamin was recorded today and the id of that record.
func (s *DailySummary) Vitamin(t EventType) (bool, string) {
	switch t {
	case EventVitaminD:
		return s.VitaminDGiven, s.VitaminDRecordID
	case EventVitaminK:
		return s.VitaminKGiven, s.VitaminKRecordID
	default:
		return false, ""
	}
}

// DayGroup is a run of history records that share a local calendar day.
type DayGroup struct {
	Day     time.Time // local midnight
	Label   string
	Records []*Record
}
