// Package mirror publishes CSV exports of the ledger after every change.
// Publication is best effort: failures are logged and never reach the
// request that triggered them.
package mirror

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/klabast/wb-services/signup-calendar/internal/ledger"
)

// DefaultPrefix is the file name prefix of published exports.
const DefaultPrefix = "thanksgiving-calendar"

// Sink receives CSV artifacts.
type Sink interface {
	PutArtifact(ctx context.Context, name string, data []byte) error
}

// Target is a named Sink, the name is only used in logs.
type Target struct {
	Name string
	Sink Sink
}

// Options configures a Mirror.
type Options struct {
	Prefix  string
	Timeout time.Duration
	Clock   func() time.Time
	Logger  *zap.Logger
}

// Mirror writes the Full and Public CSV exports to every target whenever
// Notify is called. Notifications arriving while a publish is running are
// coalesced into one follow-up publish of the then-current ledger.
type Mirror struct {
	source  func() ledger.Data
	targets []Target
	opts    Options
	log     *zap.Logger

	trigger chan struct{}
	stopCh  chan struct{}
	doneCh  chan struct{}

	mu      sync.Mutex
	started bool
	stopped bool
}

// New creates a Mirror reading the ledger through source.
func New(source func() ledger.Data, targets []Target, opts Options) *Mirror {
	if opts.Prefix == "" {
		opts.Prefix = DefaultPrefix
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Mirror{
		source:  source,
		targets: targets,
		opts:    opts,
		log:     log,
		trigger: make(chan struct{}, 1),
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
}

// Start launches the background worker.
func (m *Mirror) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started || m.stopped {
		return
	}
	m.started = true
	go m.run()
}

// Notify schedules a publish. It never blocks.
func (m *Mirror) Notify() {
	select {
	case m.trigger <- struct{}{}:
	default:
	}
}

// Stop publishes any pending notification and waits for the worker.
func (m *Mirror) Stop() {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return
	}
	m.stopped = true
	started := m.started
	m.mu.Unlock()

	close(m.stopCh)
	if started {
		<-m.doneCh
	}
}

func (m *Mirror) run() {
	defer close(m.doneCh)
	for {
		select {
		case <-m.trigger:
			m.publishLogged()
		case <-m.stopCh:
			select {
			case <-m.trigger:
				m.publishLogged()
			default:
			}
			return
		}
	}
}

func (m *Mirror) publishLogged() {
	ctx, cancel := context.WithTimeout(context.Background(), m.opts.Timeout)
	defer cancel()
	if err := m.Publish(ctx); err != nil {
		m.log.Warn("csv mirror incomplete", zap.Error(err))
	}
}

// Publish writes both variants to every target concurrently. The returned
// error wraps ledger.ErrRemoteSyncFailed.
func (m *Mirror) Publish(ctx context.Context) error {
	data := m.source()
	now := m.opts.Clock()

	var g errgroup.Group
	for _, target := range m.targets {
		for _, variant := range []ledger.Variant{ledger.Full, ledger.Public} {
			g.Go(func() error {
				name, err := Write(ctx, target.Sink, data, variant, m.opts.Prefix, now)
				if err != nil {
					m.log.Warn("remote sync failed",
						zap.String("target", target.Name),
						zap.String("file", name),
						zap.Error(err))
					return fmt.Errorf("%w: %s: %v", ledger.ErrRemoteSyncFailed, target.Name, err)
				}
				m.log.Debug("csv published", zap.String("target", target.Name), zap.String("file", name))
				return nil
			})
		}
	}
	return g.Wait()
}

// Write renders data as a CSV export and stores it in sink under the
// dated export file name, which it returns.
func Write(ctx context.Context, sink Sink, data ledger.Data, variant ledger.Variant, prefix string, now time.Time) (string, error) {
	name := ledger.ExportFilename(prefix, variant, now, "csv")
	content := ledger.ExportCSV(data, variant)
	if err := sink.PutArtifact(ctx, name, []byte(content)); err != nil {
		return name, err
	}
	return name, nil
}
