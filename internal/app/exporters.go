package app

import (
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/klabast/wb-services/signup-calendar/internal/ledger"
)

const (
	ICSProductID = "-//Signup Calendar//Weekly Signups//EN"
	ICSTimezone  = "UTC"
	icsUIDDomain = "signup-calendar"
)

// writeAttachment sends body as a downloadable file.
func (s *Server) writeAttachment(w http.ResponseWriter, contentType, filename string, body []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		s.log.Warn("error writing attachment", zap.String("file", filename), zap.Error(err))
	}
}

// writeSubscriptionICS renders one all-day event per upcoming slot date with
// the public signup tally. The feed is served inline for calendar
// subscriptions, so it carries METHOD:PUBLISH and no alarms.
func writeSubscriptionICS(w io.Writer, dates []string, data ledger.PublicData, weekday time.Weekday, now time.Time) error {
	ew := &errWriter{w: w}

	ew.line("BEGIN:VCALENDAR")
	ew.line("VERSION:2.0")
	ew.printf("PRODID:%s", ICSProductID)
	ew.line("METHOD:PUBLISH")
	ew.printf("X-WR-CALNAME:%s Signups", weekday)
	ew.printf("X-WR-TIMEZONE:%s", ICSTimezone)
	ew.line("CALSCALE:GREGORIAN")
	ew.line("X-PUBLISHED-TTL:PT1H")

	stamp := now.UTC().Format("20060102T150405Z")
	for _, key := range dates {
		day, err := ledger.ParseDateKey(key)
		if err != nil {
			continue
		}
		records := data[key]

		// UID must stay stable across refreshes so clients update in place
		ew.line("BEGIN:VEVENT")
		ew.printf("UID:%s@%s", key, icsUIDDomain)
		ew.printf("DTSTAMP:%s", stamp)
		ew.printf("DTSTART;VALUE=DATE:%s", day.Format("20060102"))
		ew.printf("DTEND;VALUE=DATE:%s", day.AddDate(0, 0, 1).Format("20060102"))
		ew.printf("SUMMARY:%s", icsEscape(signupSummary(len(records))))
		ew.printf("DESCRIPTION:%s", icsEscape(slotTally(records)))
		ew.line("END:VEVENT")
	}

	ew.line("END:VCALENDAR")
	return ew.err
}

func signupSummary(n int) string {
	switch n {
	case 0:
		return "No signups yet"
	case 1:
		return "1 signup"
	default:
		return fmt.Sprintf("%d signups", n)
	}
}

// slotTally lists the number of signups per slot preference in first-seen order.
func slotTally(records []ledger.PublicRecord) string {
	if len(records) == 0 {
		return "Open for signups"
	}
	var order []string
	counts := make(map[string]int)
	for _, r := range records {
		if _, ok := counts[r.SlotPreference]; !ok {
			order = append(order, r.SlotPreference)
		}
		counts[r.SlotPreference]++
	}
	parts := make([]string, 0, len(order))
	for _, slot := range order {
		parts = append(parts, fmt.Sprintf("%s: %d", slot, counts[slot]))
	}
	return strings.Join(parts, "\n")
}

var icsEscaper = strings.NewReplacer(`\`, `\\`, ";", `\;`, ",", `\,`, "\n", `\n`)

func icsEscape(s string) string {
	return icsEscaper.Replace(s)
}

// icsLineOctets is the longest content line allowed before folding.
const icsLineOctets = 75

// foldLine splits s into lines of at most 75 octets, continuing each with
// CRLF and a space. Multi-byte runes are never split.
func foldLine(s string) string {
	if len(s) <= icsLineOctets {
		return s
	}
	var b strings.Builder
	limit := icsLineOctets
	for len(s) > limit {
		cut := limit
		for cut > 0 && !utf8.RuneStart(s[cut]) {
			cut--
		}
		b.WriteString(s[:cut])
		b.WriteString("\r\n ")
		s = s[cut:]
		// the leading space counts toward the next line
		limit = icsLineOctets - 1
	}
	b.WriteString(s)
	return b.String()
}

// errWriter remembers the first write error and skips later writes.
type errWriter struct {
	w   io.Writer
	err error
}

func (ew *errWriter) line(s string) {
	if ew.err != nil {
		return
	}
	_, ew.err = io.WriteString(ew.w, foldLine(s)+"\r\n")
}

func (ew *errWriter) printf(format string, args ...any) {
	ew.line(fmt.Sprintf(format, args...))
}
