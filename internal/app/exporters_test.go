package app

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/klabast/wb-services/signup-calendar/internal/ledger"
)

func TestWriteSubscriptionICS(t *testing.T) {
	data := ledger.PublicData{
		"2025-11-02": {
			{Name: "Ann", SlotPreference: "8:00 AM"},
			{Name: "Bea", SlotPreference: "6:00 PM"},
			{Name: "Cy", SlotPreference: "8:00 AM"},
		},
	}
	var buf bytes.Buffer

	err := writeSubscriptionICS(&buf, []string{"2025-11-02", "not-a-date", "2025-11-09"}, data, time.Sunday, testNow)
	if err != nil {
		t.Fatalf("writeSubscriptionICS() failed: %v", err)
	}
	body := buf.String()

	// Check for required ICS structure
	requiredFields := []string{
		"BEGIN:VCALENDAR\r\n",
		"PRODID:" + ICSProductID,
		"X-WR-CALNAME:Sunday Signups",
		"DTSTAMP:20251101T100000Z",
		"SUMMARY:3 signups",
		`DESCRIPTION:8:00 AM: 2\n6:00 PM: 1`,
		"UID:2025-11-09@signup-calendar",
		"DESCRIPTION:Open for signups",
		"END:VCALENDAR\r\n",
	}
	for _, field := range requiredFields {
		if !strings.Contains(body, field) {
			t.Errorf("ICS output missing required field: %s", field)
		}
	}

	// Invalid keys are skipped
	if got := strings.Count(body, "BEGIN:VEVENT"); got != 2 {
		t.Errorf("Expected 2 events, got %d", got)
	}

	// Names stay out of the feed
	if strings.Contains(body, "Ann") {
		t.Error("Feed should only carry counts, found an attendee name")
	}
}

func TestICSEscape(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"plain", "plain"},
		{"a,b;c", `a\,b\;c`},
		{`back\slash`, `back\\slash`},
		{"two\nlines", `two\nlines`},
	}
	for _, tt := range tests {
		if got := icsEscape(tt.in); got != tt.want {
			t.Errorf("icsEscape(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

type failingWriter struct{ writes int }

func (f *failingWriter) Write(p []byte) (int, error) {
	f.writes++
	return 0, errors.New("connection reset")
}

func TestWriteSubscriptionICSStopsOnError(t *testing.T) {
	w := &failingWriter{}
	err := writeSubscriptionICS(w, []string{"2025-11-02"}, nil, time.Sunday, testNow)
	if err == nil {
		t.Fatal("Expected write error")
	}
	if w.writes != 1 {
		t.Errorf("Expected writing to stop after the first failure, got %d writes", w.writes)
	}
}

func TestFoldLine(t *testing.T) {
	short := strings.Repeat("a", 75)
	if got := foldLine(short); got != short {
		t.Errorf("75 octets should not fold, got %q", got)
	}

	long := "DESCRIPTION:" + strings.Repeat("x", 200)
	folded := foldLine(long)
	for i, part := range strings.Split(folded, "\r\n") {
		if len(part) > 75 {
			t.Errorf("line %d has %d octets", i, len(part))
		}
		if i > 0 && !strings.HasPrefix(part, " ") {
			t.Errorf("continuation line %d must start with a space: %q", i, part)
		}
	}
	if unfolded := strings.ReplaceAll(folded, "\r\n ", ""); unfolded != long {
		t.Errorf("unfolding does not restore the line")
	}

	// multi-byte runes stay intact across folds
	umlauts := "SUMMARY:" + strings.Repeat("ü", 60)
	for i, part := range strings.Split(foldLine(umlauts), "\r\n") {
		if !utf8.ValidString(part) {
			t.Errorf("line %d splits a rune: %q", i, part)
		}
		if len(part) > 75 {
			t.Errorf("line %d has %d octets", i, len(part))
		}
	}
}

func TestWriteSubscriptionICSFoldsLongTally(t *testing.T) {
	var records []ledger.PublicRecord
	for i := range 12 {
		records = append(records, ledger.PublicRecord{
			Name:           "x",
			SlotPreference: "Early Vigil Service " + string(rune('A'+i)),
		})
	}
	var buf bytes.Buffer
	err := writeSubscriptionICS(&buf, []string{"2025-11-02"}, ledger.PublicData{"2025-11-02": records}, time.Sunday, testNow)
	if err != nil {
		t.Fatalf("writeSubscriptionICS() failed: %v", err)
	}
	for _, line := range strings.Split(strings.TrimSuffix(buf.String(), "\r\n"), "\r\n") {
		if len(line) > 75 {
			t.Errorf("unfolded content line (%d octets): %q", len(line), line)
		}
	}
	if !strings.Contains(buf.String(), "\r\n ") {
		t.Error("expected a folded DESCRIPTION")
	}
}
