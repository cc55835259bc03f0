package ledger

import "time"

// Record is one person's signup for a date. The JSON field names are the
// persisted layout and must not change.
type Record struct {
	Name           string    `json:"name"`
	Contact        string    `json:"phone"`
	SlotPreference string    `json:"mass"`
	RecordedAt     time.Time `json:"addedAt"`
}

// PublicRecord is a Record without contact details.
type PublicRecord struct {
	Name           string `json:"name"`
	SlotPreference string `json:"mass"`
}

// Data maps a date key (YYYY-MM-DD) to its signups in signup order.
type Data map[string][]Record

// PublicData is the public projection of Data.
type PublicData map[string][]PublicRecord

// Variant selects which fields an export carries.
type Variant string

const (
	// Full includes contact numbers and signup timestamps.
	Full Variant = "backend"
	// Public carries names and slot preferences only.
	Public Variant = "public"
)

// ParseVariant accepts the URL/CLI spellings of a variant.
func ParseVariant(s string) (Variant, bool) {
	switch s {
	case "backend", "full":
		return Full, true
	case "public":
		return Public, true
	}
	return "", false
}

// Clone returns a deep copy of d.
func (d Data) Clone() Data {
	out := make(Data, len(d))
	for key, records := range d {
		cp := make([]Record, len(records))
		copy(cp, records)
		out[key] = cp
	}
	return out
}

// Public projects away contact and timestamp fields.
func (d Data) Public() PublicData {
	out := make(PublicData, len(d))
	for key, records := range d {
		pub := make([]PublicRecord, len(records))
		for i, r := range records {
			pub[i] = PublicRecord{Name: r.Name, SlotPreference: r.SlotPreference}
		}
		out[key] = pub
	}
	return out
}
