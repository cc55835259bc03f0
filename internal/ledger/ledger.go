package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/klabast/wb-services/signup-calendar/internal/storage"
)

// maxSaveAttempts bounds the reload-and-retry loop on revision conflicts.
const maxSaveAttempts = 3

// DefaultSlotPreferences are the slot labels offered by the signup form.
var DefaultSlotPreferences = []string{"6:00 AM", "8:00 AM", "10:00 AM", "6:00 PM"}

// Backend durably stores the serialized ledger.
type Backend interface {
	Load(ctx context.Context) (storage.Snapshot, error)
	Save(ctx context.Context, data []byte, expectedRevision string) (string, error)
}

// Options configures a Ledger. The zero value is the permissive default.
type Options struct {
	Calendar Calendar
	// StrictDates rejects date keys outside the current slot sequence.
	StrictDates bool
	// StrictSlots rejects slot preferences not listed in SlotPreferences.
	StrictSlots     bool
	SlotPreferences []string
	// FallbackEmpty starts with an empty ledger when the backend cannot be
	// read instead of failing Load.
	FallbackEmpty bool
	// Timeout bounds every backend call. Zero means no extra bound.
	Timeout time.Duration
	Clock   func() time.Time
	Logger  *zap.Logger
}

// Ledger is the authoritative date -> signups mapping. All writes go through
// Add, which persists the complete ledger before the change becomes visible.
//
// writeMu serializes everything that talks to the backend; mu only guards the
// in-memory state and is never held across backend I/O.
type Ledger struct {
	backend Backend
	opts    Options
	log     *zap.Logger

	writeMu  sync.Mutex
	mu       sync.RWMutex
	data     Data
	revision string
	hooks    []func()
}

// New creates an empty ledger bound to backend. Call Load to read state.
func New(backend Backend, opts Options) *Ledger {
	if len(opts.SlotPreferences) == 0 {
		opts.SlotPreferences = DefaultSlotPreferences
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Ledger{
		backend: backend,
		opts:    opts,
		log:     log,
		data:    Data{},
	}
}

// Calendar returns the slot calendar the ledger validates against.
func (l *Ledger) Calendar() Calendar {
	return l.opts.Calendar
}

// SlotPreferences returns the offered slot labels.
func (l *Ledger) SlotPreferences() []string {
	return slices.Clone(l.opts.SlotPreferences)
}

// OnChange registers fn to run after every successful Add. Hooks run on the
// caller's goroutine and must not block; read the new state with All.
func (l *Ledger) OnChange(fn func()) {
	l.mu.Lock()
	l.hooks = append(l.hooks, fn)
	l.mu.Unlock()
}

// Load replaces the in-memory ledger with the persisted state. Missing state
// yields an empty ledger.
func (l *Ledger) Load(ctx context.Context) error {
	l.writeMu.Lock()
	defer l.writeMu.Unlock()

	err := l.reloadLocked(ctx)
	if err != nil && l.opts.FallbackEmpty {
		l.log.Warn("persisted ledger unreadable, starting empty", zap.Error(err))
		l.install(Data{}, storage.Unconditional)
		return nil
	}
	return err
}

// Reload re-reads the backend, e.g. after the data file changed on disk.
func (l *Ledger) Reload(ctx context.Context) error {
	l.writeMu.Lock()
	defer l.writeMu.Unlock()

	before := l.revision
	if err := l.reloadLocked(ctx); err != nil {
		return err
	}
	if l.revision != before {
		l.log.Info("ledger reloaded", zap.String("revision", l.revision), zap.Int("dates", len(l.data)))
	}
	return nil
}

// reloadLocked reads the backend and installs the result. Caller holds
// writeMu.
func (l *Ledger) reloadLocked(ctx context.Context) error {
	ctx, cancel := l.withTimeout(ctx)
	defer cancel()

	snap, err := l.backend.Load(ctx)
	if errors.Is(err, storage.ErrNotFound) {
		l.install(Data{}, "")
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: load: %v", ErrStorageUnavailable, err)
	}

	data, err := Decode(snap.Data)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	l.install(data, snap.Revision)
	return nil
}

// install swaps in new state. Caller holds writeMu.
func (l *Ledger) install(data Data, revision string) {
	l.mu.Lock()
	l.data = data
	l.revision = revision
	l.mu.Unlock()
}

// All returns a copy of the full ledger, contact numbers included.
func (l *Ledger) All() Data {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.data.Clone()
}

// Public returns the ledger without contact numbers or timestamps.
func (l *Ledger) Public() PublicData {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.data.Public()
}

// ByDate returns the signups for key, or an empty slice.
func (l *Ledger) ByDate(key string) []Record {
	l.mu.RLock()
	defer l.mu.RUnlock()

	records := l.data[key]
	out := make([]Record, len(records))
	copy(out, records)
	return out
}

// Revision returns the backend revision of the in-memory state.
func (l *Ledger) Revision() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.revision
}

// Add signs name up for key and persists the whole ledger. It fails with
// ErrValidation, ErrConflict or ErrStorageUnavailable; on any failure the
// ledger is unchanged.
func (l *Ledger) Add(ctx context.Context, key, name, contact, slotPreference string) (Record, error) {
	key = strings.TrimSpace(key)
	name = strings.TrimSpace(name)
	contact = strings.TrimSpace(contact)
	slotPreference = strings.TrimSpace(slotPreference)

	if err := l.validate(key, name, contact, slotPreference); err != nil {
		return Record{}, err
	}

	rec := Record{
		Name:           name,
		Contact:        contact,
		SlotPreference: slotPreference,
		RecordedAt:     l.opts.Clock().UTC().Truncate(time.Millisecond),
	}

	l.writeMu.Lock()
	for attempt := 1; ; attempt++ {
		err := l.appendLocked(ctx, key, rec)
		if err == nil {
			break
		}
		if !errors.Is(err, storage.ErrRevisionMismatch) {
			l.writeMu.Unlock()
			return Record{}, err
		}
		if attempt == maxSaveAttempts {
			l.writeMu.Unlock()
			return Record{}, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
		}
		l.log.Warn("ledger changed underneath, reloading", zap.Int("attempt", attempt))
		if err := l.reloadLocked(ctx); err != nil {
			l.writeMu.Unlock()
			return Record{}, err
		}
	}
	l.mu.RLock()
	count := len(l.data[key])
	hooks := slices.Clone(l.hooks)
	l.mu.RUnlock()
	l.writeMu.Unlock()

	l.log.Info("attendee added",
		zap.String("date", key),
		zap.String("slot", slotPreference),
		zap.Int("count", count))

	for _, fn := range hooks {
		fn()
	}
	return rec, nil
}

func (l *Ledger) validate(key, name, contact, slotPreference string) error {
	var missing []string
	if key == "" {
		missing = append(missing, "dateKey")
	}
	if name == "" {
		missing = append(missing, "name")
	}
	if contact == "" {
		missing = append(missing, "phone")
	}
	if slotPreference == "" {
		missing = append(missing, "mass")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing required fields: %s", ErrValidation, strings.Join(missing, ", "))
	}

	if l.opts.StrictDates && !l.opts.Calendar.Contains(l.opts.Clock(), key) {
		return fmt.Errorf("%w: %s is not an open signup date", ErrValidation, key)
	}
	if l.opts.StrictSlots && !slices.Contains(l.opts.SlotPreferences, slotPreference) {
		return fmt.Errorf("%w: unknown slot preference %q", ErrValidation, slotPreference)
	}
	return nil
}

// appendLocked checks uniqueness, persists the ledger with rec appended and
// only then swaps it in. Caller holds writeMu, so l.data and l.revision are
// stable without mu; readers keep going while Save is in flight.
func (l *Ledger) appendLocked(ctx context.Context, key string, rec Record) error {
	for _, existing := range l.data[key] {
		if SameName(existing.Name, rec.Name) {
			return fmt.Errorf("%w: %q on %s", ErrConflict, rec.Name, key)
		}
	}

	next := make(Data, len(l.data)+1)
	for k, v := range l.data {
		next[k] = v
	}
	next[key] = append(slices.Clip(l.data[key]), rec)

	payload, err := Encode(next)
	if err != nil {
		return fmt.Errorf("%w: encode: %v", ErrStorageUnavailable, err)
	}

	ctx, cancel := l.withTimeout(ctx)
	defer cancel()

	revision, err := l.backend.Save(ctx, payload, l.revision)
	if errors.Is(err, storage.ErrRevisionMismatch) {
		return err
	}
	if err != nil {
		return fmt.Errorf("%w: save: %v", ErrStorageUnavailable, err)
	}

	l.install(next, revision)
	return nil
}

func (l *Ledger) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if l.opts.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, l.opts.Timeout)
}

// SameName compares names the way the uniqueness check does.
func SameName(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

// Encode serializes d in the persisted layout.
func Encode(d Data) ([]byte, error) {
	if d == nil {
		d = Data{}
	}
	return json.MarshalIndent(d, "", "  ")
}

// Decode parses the persisted layout. Empty input is an empty ledger.
func Decode(raw []byte) (Data, error) {
	data := Data{}
	if len(bytes.TrimSpace(raw)) == 0 {
		return data, nil
	}
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("decode ledger: %w", err)
	}
	if data == nil {
		data = Data{}
	}
	for key, records := range data {
		if records == nil {
			data[key] = []Record{}
		}
	}
	return data, nil
}
