package remote

import (
	"fmt"
	"strings"
	"time"

	"babylog/internal/babylog"
	"babylog/internal/model"
)

// Column names in the remote table.
const (
	fieldType        = "Type"
	fieldTimestamp   = "Timestamp"
	fieldSide        = "Side"
	fieldStartTime   = "StartTime"
	fieldDuration    = "Duration"
	fieldTemperature = "Temperature"
)

// apiRecord is a record as returned by the API.
type apiRecord struct {
	ID          string    `json:"id"`
	CreatedTime string    `json:"createdTime,omitempty"`
	Fields      apiFields `json:"fields"`
}

// apiFields holds the columns. Numbers arrive as JSON numbers of any shape.
type apiFields struct {
	Type        string   `json:"Type,omitempty"`
	Timestamp   string   `json:"Timestamp,omitempty"`
	Side        string   `json:"Side,omitempty"`
	StartTime   string   `json:"StartTime,omitempty"`
	Duration    *float64 `json:"Duration,omitempty"`
	Temperature *float64 `json:"Temperature,omitempty"`
}

type listResponse struct {
	Records []apiRecord `json:"records"`
	Offset  string      `json:"offset,omitempty"`
}

type createRequest struct {
	Fields   apiFields `json:"fields"`
	Typecast bool      `json:"typecast"`
}

// toFields writes only the columns relevant to the record's type.
func toFields(r *model.Record) apiFields {
	f := apiFields{
		Type:      string(r.Type),
		Timestamp: r.Timestamp.UTC().Format(time.RFC3339),
	}
	switch r.Type {
	case model.EventFeeding:
		duration := float64(r.DurationSeconds)
		f.Side = string(r.Side)
		f.StartTime = r.StartTime.UTC().Format(time.RFC3339)
		f.Duration = &duration
	case model.EventTemperature:
		temperature := r.Temperature
		f.Temperature = &temperature
	}
	return f
}

// fromAPI converts a stored record. Missing or unparseable columns stay zero.
func fromAPI(a apiRecord) *model.Record {
	r := &model.Record{
		ID:   a.ID,
		Type: model.EventType(strings.ToLower(strings.TrimSpace(a.Fields.Type))),
		Side: model.Side(strings.ToLower(strings.TrimSpace(a.Fields.Side))),
	}
	r.Timestamp = parseTime(a.Fields.Timestamp)
	if r.Timestamp.IsZero() {
		r.Timestamp = parseTime(a.CreatedTime)
	}
	r.StartTime = parseTime(a.Fields.StartTime)
	if a.Fields.Duration != nil && *a.Fields.Duration > 0 {
		r.DurationSeconds = int64(*a.Fields.Duration)
	}
	if a.Fields.Temperature != nil {
		r.Temperature = *a.Fields.Temperature
	}
	return r
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// filterFormula restricts Timestamp to [Since, Until). Returns "" for an open query.
func filterFormula(q babylog.ListQuery) string {
	var clauses []string
	if !q.Since.IsZero() {
		clauses = append(clauses, fmt.Sprintf("NOT(IS_BEFORE({%s}, '%s'))", fieldTimestamp, q.Since.UTC().Format(time.RFC3339)))
	}
	if !q.Until.IsZero() {
		clauses = append(clauses, fmt.Sprintf("IS_BEFORE({%s}, '%s')", fieldTimestamp, q.Until.UTC().Format(time.RFC3339)))
	}
	switch len(clauses) {
	case 0:
		return ""
	case 1:
		return clauses[0]
	default:
		return "AND(" + strings.Join(clauses, ", ") + ")"
	}
}
