package ledger

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"time"
)

const (
	// FullCSVHeader is the header row of the Full CSV export.
	FullCSVHeader = "Date,Name,Contact,SlotPreference,RecordedAt"
	// PublicCSVHeader is the header row of the Public CSV export.
	PublicCSVHeader = "Date,Name,SlotPreference"

	// recordedAtLayout matches JavaScript's Date.toISOString.
	recordedAtLayout = "2006-01-02T15:04:05.000Z07:00"
)

// SortedKeys returns the date keys of d in ascending order.
func (d Data) SortedKeys() []string {
	keys := make([]string, 0, len(d))
	for k := range d {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// ExportCSV renders d as CSV, one row per signup, every field quoted.
func ExportCSV(d Data, variant Variant) string {
	rows := make([]string, 0, 1+len(d))
	if variant == Full {
		rows = append(rows, FullCSVHeader)
	} else {
		rows = append(rows, PublicCSVHeader)
	}

	for _, key := range d.SortedKeys() {
		date := LongDate(key)
		for _, r := range d[key] {
			if variant == Full {
				rows = append(rows, csvRow(date, r.Name, r.Contact, r.SlotPreference, formatRecordedAt(r.RecordedAt)))
			} else {
				rows = append(rows, csvRow(date, r.Name, r.SlotPreference))
			}
		}
	}
	return strings.Join(rows, "\n")
}

// ExportJSON renders d (or its public projection) as indented JSON.
func ExportJSON(d Data, variant Variant) ([]byte, error) {
	if variant == Full {
		return Encode(d)
	}
	return json.MarshalIndent(d.Public(), "", "  ")
}

// ExportCSV renders the current ledger.
func (l *Ledger) ExportCSV(variant Variant) string {
	return ExportCSV(l.All(), variant)
}

// ExportJSON renders the current ledger.
func (l *Ledger) ExportJSON(variant Variant) ([]byte, error) {
	return ExportJSON(l.All(), variant)
}

// ExportFilename names an export generated on day, e.g.
// "thanksgiving-calendar-public-2025-11-02.csv".
func ExportFilename(prefix string, variant Variant, day time.Time, ext string) string {
	return fmt.Sprintf("%s-%s-%s.%s", prefix, variant, day.UTC().Format(DateLayout), ext)
}

func csvRow(fields ...string) string {
	quoted := make([]string, len(fields))
	for i, f := range fields {
		quoted[i] = `"` + strings.ReplaceAll(f, `"`, `""`) + `"`
	}
	return strings.Join(quoted, ",")
}

func formatRecordedAt(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(recordedAtLayout)
}
