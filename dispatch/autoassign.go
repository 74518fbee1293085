/*
autoassign.go - Route-based auto-assignment

PURPOSE:
  Recurring routes (HCR contracts) run the same trips week after week.
  A RouteAssignment maps HCR (+ trip number) to a default driver or
  carrier, and the AutoAssigner applies it either when a load is created
  or on a scheduled sweep over OPEN loads.

MATCHING (MatchRoute):
  - Only active assignments for the load's HCR are considered
  - TripNumber "" or "*" matches any trip; otherwise it must be equal
  - Lowest Priority wins; an exact trip beats a wildcard on equal priority

SCHEDULING:
  Sweep runs only when the org has ScheduledEnabled and the interval gate
  (generic.IntervalElapsed) has opened since LastRunAt. LastRunAt is
  stamped after every run, including runs that assigned nothing.

  Assignments go through Manager.AssignDriverInternal (no conflict check)
  or Manager.AssignCarrier, each in its own transaction, so one bad load
  never blocks the rest of a sweep.

SEE ALSO:
  - api/scheduler.go: Calls Sweep on a ticker
*/
package dispatch

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/warp/freight-engine/freight"
	"github.com/warp/freight-engine/generic"
	"github.com/warp/freight-engine/metrics"
)

// AutoAssigner applies route assignments to loads.
type AutoAssigner struct {
	store   freight.Store
	manager *Manager
	logger  *log.Logger
}

// NewAutoAssigner creates an auto-assigner.
func NewAutoAssigner(store freight.Store, manager *Manager, logger *log.Logger) *AutoAssigner {
	if logger == nil {
		logger = log.Default()
	}
	return &AutoAssigner{store: store, manager: manager, logger: logger}
}

// SweepSummary reports one scheduled sweep.
type SweepSummary struct {
	OrgID    string
	Ran      bool
	Checked  int
	Assigned int
	Failed   int
}

// MatchRoute picks the route assignment for an HCR and trip, or nil.
func MatchRoute(routes []freight.RouteAssignment, hcr, trip string) *freight.RouteAssignment {
	hcr = strings.TrimSpace(hcr)
	trip = strings.TrimSpace(trip)
	if hcr == "" {
		return nil
	}

	var best *freight.RouteAssignment
	bestExact := false
	for i := range routes {
		r := &routes[i]
		if !r.IsActive || !strings.EqualFold(strings.TrimSpace(r.HCR), hcr) {
			continue
		}
		if r.DriverID == "" && r.CarrierPartnershipID == "" {
			continue
		}
		wildcard := r.TripNumber == "" || r.TripNumber == freight.TripWildcard
		if !wildcard && !strings.EqualFold(strings.TrimSpace(r.TripNumber), trip) {
			continue
		}
		exact := !wildcard
		switch {
		case best == nil,
			r.Priority < best.Priority,
			r.Priority == best.Priority && exact && !bestExact:
			best, bestExact = r, exact
		}
	}
	return best
}

// AssignLoad applies the matching route assignment to a load. The bool is
// false when no route matched.
func (a *AutoAssigner) AssignLoad(ctx context.Context, load freight.Load, routes []freight.RouteAssignment) (Result, bool, error) {
	route := MatchRoute(routes, load.HCR, load.TripNumber)
	if route == nil {
		return Result{}, false, nil
	}

	var (
		res Result
		err error
	)
	if route.DriverID != "" {
		res, err = a.manager.AssignDriverInternal(ctx, load.ID, route.DriverID, generic.SystemActor)
	} else {
		res, err = a.manager.AssignCarrier(ctx, AssignCarrierInput{
			LoadID:        load.ID,
			PartnershipID: route.CarrierPartnershipID,
			Actor:         generic.SystemActor,
		})
	}
	if err != nil {
		return Result{}, true, err
	}

	if res.OK() {
		generic.Record(ctx, a.store, a.logger, generic.AuditEntry{
			OrgID:       load.OrgID,
			EntityType:  "load",
			EntityID:    load.ID,
			Action:      generic.AuditAutoAssigned,
			Description: "Auto-assigned from route " + route.HCR + "/" + route.TripNumber,
			After:       map[string]any{"route_assignment_id": route.ID},
		}.WithActor(generic.SystemActor))
	}
	return res, true, nil
}

// OnLoadCreated auto-assigns a new load when the org triggers on create.
// Returns nil when nothing was attempted.
func (a *AutoAssigner) OnLoadCreated(ctx context.Context, loadID string) (*Result, error) {
	load, err := a.store.GetLoad(ctx, loadID)
	if err != nil {
		return nil, err
	}
	if load == nil {
		return nil, generic.NewNotFound("load", loadID)
	}
	if load.HCR == "" || load.Status != freight.LoadOpen {
		return nil, nil
	}

	settings, err := a.store.GetAutoAssignSettings(ctx, load.OrgID)
	if err != nil {
		return nil, err
	}
	if settings == nil || !settings.TriggerOnCreate {
		return nil, nil
	}

	routes, err := a.store.ListRouteAssignments(ctx, load.OrgID, load.HCR)
	if err != nil {
		return nil, err
	}
	res, matched, err := a.AssignLoad(ctx, *load, routes)
	if err != nil || !matched {
		return nil, err
	}
	return &res, nil
}

// Sweep auto-assigns the org's OPEN loads when the schedule allows.
func (a *AutoAssigner) Sweep(ctx context.Context, orgID string, now time.Time) (SweepSummary, error) {
	summary := SweepSummary{OrgID: orgID}

	settings, err := a.store.GetAutoAssignSettings(ctx, orgID)
	if err != nil {
		return summary, err
	}
	if settings == nil || !settings.ScheduledEnabled {
		metrics.AutoAssignSweeps.WithLabelValues("disabled").Inc()
		return summary, nil
	}
	interval := time.Duration(settings.ScheduleIntervalMinutes) * time.Minute
	if !generic.IntervalElapsed(settings.LastRunAt, interval, now) {
		metrics.AutoAssignSweeps.WithLabelValues("throttled").Inc()
		return summary, nil
	}
	return a.RunNow(ctx, orgID, now)
}

// RunNow sweeps the org's OPEN loads regardless of schedule and stamps LastRunAt.
func (a *AutoAssigner) RunNow(ctx context.Context, orgID string, now time.Time) (SweepSummary, error) {
	summary := SweepSummary{OrgID: orgID, Ran: true}

	loads, err := a.store.ListLoads(ctx, orgID, freight.LoadOpen)
	if err != nil {
		return summary, err
	}
	routes, err := a.store.ListRouteAssignments(ctx, orgID, "")
	if err != nil {
		return summary, err
	}

	for _, load := range loads {
		if load.HCR == "" {
			continue
		}
		summary.Checked++
		res, matched, err := a.AssignLoad(ctx, load, routes)
		switch {
		case err != nil:
			summary.Failed++
			a.logger.Printf("[AutoAssign] load %s: %v", load.ID, err)
		case !matched:
		case res.OK():
			summary.Assigned++
		default:
			summary.Failed++
			a.logger.Printf("[AutoAssign] load %s: %s %s", load.ID, res.Status, res.Message)
		}
	}

	settings, err := a.store.GetAutoAssignSettings(ctx, orgID)
	if err != nil {
		return summary, err
	}
	if settings == nil {
		settings = &freight.AutoAssignSettings{OrgID: orgID}
	}
	stamped := now.UTC()
	settings.LastRunAt = &stamped
	if err := a.store.SaveAutoAssignSettings(ctx, *settings); err != nil {
		return summary, err
	}

	metrics.AutoAssignSweeps.WithLabelValues("ran").Inc()
	if summary.Checked > 0 {
		a.logger.Printf("[AutoAssign] org %s: checked %d, assigned %d, failed %d",
			orgID, summary.Checked, summary.Assigned, summary.Failed)
	}
	return summary, nil
}
