// Package export writes the record history to a file or an S3 bucket.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"babylog/internal/model"
)

// Format is an export encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
)

// ParseFormat validates a user-supplied format name.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatJSON, FormatCSV:
		return Format(s), nil
	default:
		return "", fmt.Errorf("unknown export format %q (want json or csv)", s)
	}
}

// ContentType is the MIME type of the format.
func (f Format) ContentType() string {
	if f == FormatCSV {
		return "text/csv"
	}
	return "application/json"
}

var csvHeader = []string{"id", "type", "timestamp", "side", "start_time", "duration_seconds", "temperature_c"}

type jsonRecord struct {
	ID              string   `json:"id"`
	Type            string   `json:"type"`
	Timestamp       string   `json:"timestamp"`
	Side            string   `json:"side,omitempty"`
	StartTime       string   `json:"start_time,omitempty"`
	DurationSeconds int64    `json:"duration_seconds,omitempty"`
	TemperatureC    *float64 `json:"temperature_c,omitempty"`
}

// Encode writes records to w in the given format, in input order.
func Encode(w io.Writer, records []*model.Record, format Format) error {
	switch format {
	case FormatJSON:
		return encodeJSON(w, records)
	case FormatCSV:
		return encodeCSV(w, records)
	default:
		return fmt.Errorf("unknown export format %q", format)
	}
}

func encodeJSON(w io.Writer, records []*model.Record) error {
	out := make([]jsonRecord, 0, len(records))
	for _, r := range records {
		jr := jsonRecord{
			ID:        r.ID,
			Type:      string(r.Type),
			Timestamp: formatTime(r.Timestamp),
			Side:      string(r.Side),
		}
		if r.Type == model.EventFeeding {
			jr.StartTime = formatTime(r.StartTime)
			jr.DurationSeconds = r.DurationSeconds
		}
		if r.Type == model.EventTemperature {
			c := r.Temperature
			jr.TemperatureC = &c
		}
		out = append(out, jr)
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("encoding json export: %w", err)
	}
	return nil
}

func encodeCSV(w io.Writer, records []*model.Record) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("writing csv header: %w", err)
	}
	for _, r := range records {
		row := []string{r.ID, string(r.Type), formatTime(r.Timestamp), string(r.Side), "", "", ""}
		if r.Type == model.EventFeeding {
			row[4] = formatTime(r.StartTime)
			row[5] = strconv.FormatInt(r.DurationSeconds, 10)
		}
		if r.Type == model.EventTemperature {
			row[6] = strconv.FormatFloat(r.Temperature, 'f', 1, 64)
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("writing csv row: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flushing csv export: %w", err)
	}
	return nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
