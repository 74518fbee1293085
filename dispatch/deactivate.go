/*
deactivate.go - Cascade-safe deactivation of drivers and carrier organizations

PURPOSE:
  Deactivating a driver, or a whole carrier organization, must release
  every in-flight assignment that entity holds. A partial cascade (driver
  inactive but still holding legs, or legs cleared but stale pay left
  behind) is never observable.

SAGA SHAPE:
  1. Gather: resolve the affected partnerships, drivers and open legs
  2. Release: clear each leg's resource, drop its unlocked SYSTEM payables
  3. Repair: rebuild the cached primary driver/carrier of every touched
     load; ASSIGNED loads left with no resource go back to OPEN
  4. Deactivate: mark the entities INACTIVE
  5. Audit: one entry per deactivated entity

  All five steps run inside one transaction. Any failure rolls back the
  whole cascade.

SEE ALSO:
  - manager.go: rebuildLoadCache
*/
package dispatch

import (
	"context"
	"fmt"
	"sort"

	"github.com/warp/freight-engine/freight"
	"github.com/warp/freight-engine/generic"
)

// DeactivationSummary reports what a deactivation touched.
type DeactivationSummary struct {
	DriverIDs      []string
	PartnershipIDs []string
	LegsReleased   int
	LoadsReopened  int
}

// deactivationArena is everything a cascade will mutate, gathered up front.
type deactivationArena struct {
	drivers      []freight.Driver
	partnerships []freight.CarrierPartnership
	legs         map[string]freight.Leg
}

func (a *deactivationArena) addLegs(legs []freight.Leg) {
	for _, l := range legs {
		a.legs[l.ID] = l
	}
}

// DeactivateDriver marks a driver INACTIVE and releases the driver's open legs.
func (m *Manager) DeactivateDriver(ctx context.Context, driverID string, actor generic.Actor) (*DeactivationSummary, error) {
	var summary *DeactivationSummary
	err := m.store.WithTx(ctx, func(tx freight.Store) error {
		driver, err := tx.GetDriver(ctx, driverID)
		if err != nil {
			return err
		}
		if driver == nil {
			return generic.NewNotFound("driver", driverID)
		}

		arena := &deactivationArena{drivers: []freight.Driver{*driver}, legs: make(map[string]freight.Leg)}
		legs, err := tx.ListOpenLegsByDriver(ctx, driver.ID)
		if err != nil {
			return err
		}
		arena.addLegs(legs)

		summary, err = m.applyDeactivation(ctx, tx, arena, actor)
		return err
	})
	return summary, err
}

// DeactivateCarrierOrganization marks every partnership with the carrier
// organization and every driver it employs INACTIVE, releasing their open legs.
func (m *Manager) DeactivateCarrierOrganization(ctx context.Context, carrierOrgID string, actor generic.Actor) (*DeactivationSummary, error) {
	var summary *DeactivationSummary
	err := m.store.WithTx(ctx, func(tx freight.Store) error {
		partnerships, err := tx.ListCarriersByCarrierOrg(ctx, carrierOrgID)
		if err != nil {
			return err
		}
		drivers, err := tx.ListDriversByCarrierOrg(ctx, carrierOrgID)
		if err != nil {
			return err
		}
		if len(partnerships) == 0 && len(drivers) == 0 {
			return generic.NewNotFound("carrier organization", carrierOrgID)
		}

		arena := &deactivationArena{drivers: drivers, partnerships: partnerships, legs: make(map[string]freight.Leg)}
		for _, p := range partnerships {
			legs, err := tx.ListOpenLegsByCarrier(ctx, p.ID)
			if err != nil {
				return err
			}
			arena.addLegs(legs)
		}
		for _, d := range drivers {
			legs, err := tx.ListOpenLegsByDriver(ctx, d.ID)
			if err != nil {
				return err
			}
			arena.addLegs(legs)
		}

		summary, err = m.applyDeactivation(ctx, tx, arena, actor)
		return err
	})
	return summary, err
}

func (m *Manager) applyDeactivation(ctx context.Context, tx freight.Store, arena *deactivationArena, actor generic.Actor) (*DeactivationSummary, error) {
	now := m.now()
	summary := &DeactivationSummary{}

	ids := make([]string, 0, len(arena.legs))
	for id := range arena.legs {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	loads := make(map[string]bool)
	for _, id := range ids {
		leg := arena.legs[id]
		leg.DriverID = ""
		leg.CarrierPartnershipID = ""
		leg.TruckID = ""
		leg.UpdatedAt = now
		if err := tx.SaveLeg(ctx, leg); err != nil {
			return nil, err
		}
		if _, err := m.engine.RecalculateLeg(ctx, tx, leg.ID); err != nil {
			return nil, fmt.Errorf("release leg %s: %w", leg.ID, err)
		}
		loads[leg.LoadID] = true
		summary.LegsReleased++
	}

	loadIDs := make([]string, 0, len(loads))
	for id := range loads {
		loadIDs = append(loadIDs, id)
	}
	sort.Strings(loadIDs)
	for _, id := range loadIDs {
		reopened, err := m.rebuildLoadCache(ctx, tx, id, true)
		if err != nil {
			return nil, err
		}
		if reopened {
			summary.LoadsReopened++
		}
	}

	for _, d := range arena.drivers {
		if d.Status != freight.PartyInactive {
			d.Status = freight.PartyInactive
			d.UpdatedAt = now
			if err := tx.SaveDriver(ctx, d); err != nil {
				return nil, err
			}
		}
		summary.DriverIDs = append(summary.DriverIDs, d.ID)
		generic.Record(ctx, tx, m.logger, generic.AuditEntry{
			OrgID:       d.OrgID,
			EntityType:  "driver",
			EntityID:    d.ID,
			Action:      generic.AuditDriverDeactivated,
			Description: fmt.Sprintf("Deactivated driver %s", d.Name),
		}.WithActor(actor))
	}

	for _, p := range arena.partnerships {
		if p.Status != freight.PartyInactive {
			p.Status = freight.PartyInactive
			p.UpdatedAt = now
			if err := tx.SaveCarrier(ctx, p); err != nil {
				return nil, err
			}
		}
		summary.PartnershipIDs = append(summary.PartnershipIDs, p.ID)
		generic.Record(ctx, tx, m.logger, generic.AuditEntry{
			OrgID:       p.OrgID,
			EntityType:  "carrier",
			EntityID:    p.ID,
			Action:      generic.AuditCarrierDeactivated,
			Description: fmt.Sprintf("Deactivated carrier %s", p.CarrierName),
		}.WithActor(actor))
	}

	m.logger.Printf("[Dispatch] deactivated %d drivers, %d partnerships; released %d legs, reopened %d loads",
		len(summary.DriverIDs), len(summary.PartnershipIDs), summary.LegsReleased, summary.LoadsReopened)
	return summary, nil
}
