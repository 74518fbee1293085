/*
scheduler.go - Background dispatch and settlement scheduler

PURPOSE:
  Periodically runs the time-driven parts of the engine for every org:
  scheduled auto-assignment of OPEN loads, and generation of settlements
  for pay periods that have closed.

DESIGN:
  - Runs a background goroutine with a configurable tick
  - Each tick visits every org that has drivers, carriers or auto-assign
    settings
  - Auto-assignment is throttled per org by ScheduleIntervalMinutes;
    the tick only decides how often that throttle is checked
  - Settlement generation is idempotent: a period already generated is
    reused, and a DRAFT is refreshed

CONFIGURATION:
  - Interval: How often to tick (SCHEDULER_INTERVAL, default 1 minute)
  - Enabled:  Whether the scheduler runs (SCHEDULER_ENABLED)

USAGE:
  scheduler := NewDispatchScheduler(handler, logger)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - dispatch/autoassign.go: AutoAssigner.Sweep
  - settlement/service.go: Service.GenerateDue
*/
package api

import (
	"context"
	"log"
	"sort"
	"sync"
	"time"
)

// DispatchScheduler runs scheduled auto-assignment and settlement generation.
type DispatchScheduler struct {
	Handler  *Handler
	Interval time.Duration
	Enabled  bool

	// Now is the clock; nil means time.Now.
	Now func() time.Time

	logger *log.Logger
	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// TickSummary reports one scheduler pass.
type TickSummary struct {
	Orgs                 int
	LoadsAssigned        int
	SettlementsGenerated int
	Errors               int
}

// NewDispatchScheduler creates a new scheduler.
func NewDispatchScheduler(handler *Handler, logger *log.Logger) *DispatchScheduler {
	if logger == nil {
		logger = log.Default()
	}
	return &DispatchScheduler{
		Handler:  handler,
		Interval: time.Minute,
		Enabled:  true,
		logger:   logger,
	}
}

// Start begins the scheduler.
func (ds *DispatchScheduler) Start() {
	ds.mu.Lock()
	defer ds.mu.Unlock()

	if !ds.Enabled {
		ds.logger.Println("[Scheduler] Disabled, not starting")
		return
	}
	if ds.ticker != nil {
		return
	}

	ds.ticker = time.NewTicker(ds.Interval)
	ds.stop = make(chan struct{})
	ds.wg.Add(1)

	go ds.run()

	ds.logger.Printf("[Scheduler] Started with interval: %v", ds.Interval)
}

// Stop stops the scheduler and waits for the running pass to finish.
func (ds *DispatchScheduler) Stop() {
	ds.mu.Lock()
	defer ds.mu.Unlock()

	if ds.ticker != nil {
		ds.ticker.Stop()
		close(ds.stop)
		ds.wg.Wait()
		ds.ticker = nil
		ds.logger.Println("[Scheduler] Stopped")
	}
}

func (ds *DispatchScheduler) run() {
	defer ds.wg.Done()

	// Run immediately on start
	ds.RunNow(context.Background())

	for {
		select {
		case <-ds.ticker.C:
			ds.RunNow(context.Background())
		case <-ds.stop:
			return
		}
	}
}

// RunNow performs one pass over every org.
func (ds *DispatchScheduler) RunNow(ctx context.Context) TickSummary {
	var summary TickSummary
	now := ds.now()

	orgs, err := ds.orgIDs(ctx)
	if err != nil {
		ds.logger.Printf("[Scheduler] Error listing orgs: %v", err)
		summary.Errors++
		return summary
	}
	summary.Orgs = len(orgs)

	for _, orgID := range orgs {
		sweep, err := ds.Handler.AutoAssign.Sweep(ctx, orgID, now)
		if err != nil {
			ds.logger.Printf("[Scheduler] Auto-assign for org %s: %v", orgID, err)
			summary.Errors++
		}
		summary.LoadsAssigned += sweep.Assigned

		generated, err := ds.Handler.Settlements.GenerateDue(ctx, orgID, now)
		if err != nil {
			ds.logger.Printf("[Scheduler] Settlements for org %s: %v", orgID, err)
			summary.Errors++
		}
		summary.SettlementsGenerated += generated
	}

	if summary.LoadsAssigned > 0 || summary.SettlementsGenerated > 0 {
		ds.logger.Printf("[Scheduler] Completed: %d loads assigned, %d settlements generated across %d orgs",
			summary.LoadsAssigned, summary.SettlementsGenerated, summary.Orgs)
	}
	return summary
}

// GetNextRunTime returns when the next scheduled pass will occur.
func (ds *DispatchScheduler) GetNextRunTime() time.Time {
	return ds.now().Add(ds.Interval)
}

// orgIDs collects every org known to the store.
func (ds *DispatchScheduler) orgIDs(ctx context.Context) ([]string, error) {
	store := ds.Handler.Store
	seen := map[string]bool{}

	drivers, err := store.ListDrivers(ctx, "")
	if err != nil {
		return nil, err
	}
	for _, d := range drivers {
		seen[d.OrgID] = true
	}
	carriers, err := store.ListCarriers(ctx, "")
	if err != nil {
		return nil, err
	}
	for _, c := range carriers {
		seen[c.OrgID] = true
	}
	settings, err := store.ListAutoAssignSettings(ctx)
	if err != nil {
		return nil, err
	}
	for _, s := range settings {
		seen[s.OrgID] = true
	}

	out := make([]string, 0, len(seen))
	for id := range seen {
		if id != "" {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (ds *DispatchScheduler) now() time.Time {
	if ds.Now != nil {
		return ds.Now()
	}
	return time.Now().UTC()
}
