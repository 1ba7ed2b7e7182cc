package babylog

import (
	"fmt"
	"math"
	"time"

	"babylog/internal/model"
)

const (
	MinTemperature = 34.0
	MaxTemperature = 42.0
)

// ValidateTemperature checks a reading entered by the user.
// Records read back from the store are never validated.
func ValidateTemperature(celsius float64) error {
	if math.IsNaN(celsius) || celsius < MinTemperature || celsius > MaxTemperature {
		return fmt.Errorf("%.1f°C is outside %.1f–%.1f°C: %w", celsius, MinTemperature, MaxTemperature, ErrTemperatureRange)
	}
	return nil
}

// Aggregate computes the daily summary from one day's records in a single pass.
// Counts and totals do not depend on input order; the "last" fields pick the
// greatest timestamp. Duplicate vitamin records resolve to the last one seen.
func Aggregate(records []*model.Record) *model.DailySummary {
	summary := &model.DailySummary{}
	var feedingSeconds int64

	for _, r := range records {
		switch r.Type {
		case model.EventFeeding:
			summary.FeedingCount++
			feedingSeconds += r.DurationSeconds
			if summary.LastFeeding == nil || r.EndTime().After(*summary.LastFeeding) {
				end := r.EndTime()
				summary.LastFeeding = &end
			}
		case model.EventTemperature:
			if summary.LastTemperature == nil || r.Timestamp.After(*summary.LastTemperature) {
				ts := r.Timestamp
				summary.LastTemperature = &ts
				summary.TemperatureC = r.Temperature
			}
		case model.EventPee:
			summary.PeeCount++
		case model.EventPoop:
			summary.PoopCount++
		case model.EventVitaminD:
			summary.VitaminDGiven = true
			summary.VitaminDRecordID = r.ID
		case model.EventVitaminK:
			summary.VitaminKGiven = true
			summary.VitaminKRecordID = r.ID
		}
	}

	summary.FeedingMinutes = int64(math.Round(float64(feedingSeconds) / 60))
	return summary
}

// DayBounds returns local midnight of now's day and the following midnight.
func DayBounds(now time.Time, loc *time.Location) (time.Time, time.Time) {
	local := now.In(loc)
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	end := time.Date(local.Year(), local.Month(), local.Day()+1, 0, 0, 0, 0, loc)
	return start, end
}

// DefaultDayLabelFormat is the time layout used for history day headings.
const DefaultDayLabelFormat = "Monday, January 2"

// GroupByDay partitions records into one group per local calendar day.
// Groups appear in order of their first record and records keep their input
// order, so records already sorted newest first produce groups newest first.
func GroupByDay(records []*model.Record, loc *time.Location, layout string) []model.DayGroup {
	if layout == "" {
		layout = DefaultDayLabelFormat
	}

	var groups []model.DayGroup
	index := make(map[string]int)
	for _, r := range records {
		day, _ := DayBounds(r.Timestamp, loc)
		key := day.Format("2006-01-02")
		if i, ok := index[key]; ok {
			groups[i].Records = append(groups[i].Records, r)
			continue
		}
		index[key] = len(groups)
		groups = append(groups, model.DayGroup{
			Day:     day,
			Label:   day.Format(layout),
			Records: []*model.Record{r},
		})
	}
	return groups
}
