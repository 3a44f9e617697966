package poller

import (
	"context"
	"log"
	"runtime/debug"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"fleetwatch-backend/internal/models"
	"fleetwatch-backend/internal/monitor"
)

// Fetcher produces one snapshot per fleet; failures come back as fallback snapshots
type Fetcher interface {
	Fetch(ctx context.Context, fleet models.Fleet) models.Snapshot
}

// Notifier delivers alert notices raised during a cycle
type Notifier interface {
	Notify(ctx context.Context, notice models.AlertNotice) error
}

// Broadcaster pushes fresh dashboards to the viewers of a fleet
type Broadcaster interface {
	BroadcastFleet(ctx context.Context, fleetID string)
}

type Options struct {
	Notifier    Notifier
	Broadcaster Broadcaster
	// Parallel caps the number of fleets refreshed at once
	Parallel      int
	NotifyTimeout time.Duration
	Now           func() time.Time
}

// Poller drives the refresh cycle for every enabled fleet
type Poller struct {
	engine      *monitor.Engine
	fetcher     Fetcher
	notifier    Notifier
	broadcaster Broadcaster
	parallel    int
	timeout     time.Duration
	now         func() time.Time

	trigger chan string
	pending sync.WaitGroup

	mu     sync.Mutex
	cycles int64
	last   time.Time
}

func New(engine *monitor.Engine, fetcher Fetcher, opts Options) *Poller {
	if opts.Parallel <= 0 {
		opts.Parallel = 4
	}
	if opts.NotifyTimeout <= 0 {
		opts.NotifyTimeout = 30 * time.Second
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Poller{
		engine:      engine,
		fetcher:     fetcher,
		notifier:    opts.Notifier,
		broadcaster: opts.Broadcaster,
		parallel:    opts.Parallel,
		timeout:     opts.NotifyTimeout,
		now:         opts.Now,
		trigger:     make(chan string, 16),
	}
}

// Run refreshes every enabled fleet on the configured interval until ctx is
// cancelled. The interval is re-read from settings after every cycle.
func (p *Poller) Run(ctx context.Context) error {
	interval := p.engine.Settings().Get().RefreshInterval()
	log.Printf("🔄 Poller started (every %s, %d fleets)", interval, len(p.engine.Fleets()))

	p.RunCycle(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.pending.Wait()
			log.Println("🛑 Poller stopped")
			return ctx.Err()

		case <-ticker.C:
			p.RunCycle(ctx)

		case fleetID := <-p.trigger:
			if fleetID == "" {
				p.RunCycle(ctx)
			} else if fleet, ok := p.engine.Fleet(fleetID); ok {
				p.runFleet(ctx, fleet)
			}
		}

		if next := p.engine.Settings().Get().RefreshInterval(); next != interval {
			log.Printf("⏱️  Refresh interval changed: %s -> %s", interval, next)
			interval = next
			ticker.Reset(interval)
		}
	}
}

// Trigger requests an immediate refresh of one fleet, or of all fleets when
// fleetID is empty. It never blocks; a full queue drops the request.
func (p *Poller) Trigger(fleetID string) {
	select {
	case p.trigger <- fleetID:
	default:
		log.Printf("⚠️  Refresh trigger dropped for %q (queue full)", fleetID)
	}
}

// RunCycle refreshes every enabled fleet once
func (p *Poller) RunCycle(ctx context.Context) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.parallel)

	for _, fleet := range p.engine.Fleets() {
		if !fleet.Enabled {
			continue
		}
		fleet := fleet
		g.Go(func() error {
			p.runFleet(gctx, fleet)
			return nil
		})
	}
	g.Wait()

	p.mu.Lock()
	p.cycles++
	p.last = p.now()
	p.mu.Unlock()
}

// runFleet never lets a failure escape the loop
func (p *Poller) runFleet(ctx context.Context, fleet models.Fleet) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("❌ [%s] Refresh cycle panicked: %v\n%s", fleet.ID, r, debug.Stack())
		}
	}()

	snap := p.fetcher.Fetch(ctx, fleet)
	report, err := p.engine.Process(ctx, fleet.ID, snap, p.now())
	if err != nil {
		log.Printf("❌ [%s] Refresh cycle failed: %v", fleet.ID, err)
		return
	}

	if report.Result.Fallback {
		log.Printf("⚠️  [%s] Fallback snapshot: %s", fleet.ID, report.Result.Cause)
	}

	p.dispatch(fleet.ID, report.Notices)

	if p.broadcaster != nil {
		p.broadcaster.BroadcastFleet(ctx, fleet.ID)
	}
}

// dispatch sends notices in the background so slow channels never delay a cycle
func (p *Poller) dispatch(fleetID string, notices []models.AlertNotice) {
	if p.notifier == nil || len(notices) == 0 {
		return
	}

	p.pending.Add(1)
	go func() {
		defer p.pending.Done()
		ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
		defer cancel()

		for _, n := range notices {
			if err := p.notifier.Notify(ctx, n); err != nil {
				log.Printf("⚠️  [%s] Failed to deliver %s alert for %s: %v", fleetID, n.Kind, n.UnitName, err)
			}
		}
	}()
}

// Wait blocks until in-flight notifications finish
func (p *Poller) Wait() {
	p.pending.Wait()
}

// Stats reports loop counters for the stats endpoint
func (p *Poller) Stats() map[string]interface{} {
	p.mu.Lock()
	defer p.mu.Unlock()

	last := ""
	if !p.last.IsZero() {
		last = p.last.Format(time.RFC3339)
	}
	return map[string]interface{}{
		"cycles":       p.cycles,
		"last_cycle":   last,
		"refresh_secs": p.engine.Settings().Get().RefreshSeconds,
		"fleets":       len(p.engine.Fleets()),
	}
}
