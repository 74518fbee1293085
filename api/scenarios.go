/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the database with realistic
	dispatch and payroll data. Each scenario goes through the same engine
	services the API uses, so loading one also exercises assignment, pay
	calculation and settlement generation end to end.

AVAILABLE SCENARIOS:

	company-driver:   Mileage-paid driver, one assigned two-stop load
	relay-split:      Three-stop load split between two drivers
	power-only:       Carrier paid a share of revenue, broker trailer kept
	weekly-payroll:   Weekly pay plan with a delivered load and a DRAFT settlement
	dedicated-routes: HCR route assignments with create-time auto-assign

HOW SCENARIOS WORK:
 1. Reset database (clear all data)
 2. Create rate profiles via the profile factory
 3. Create drivers, carriers and pay plans
 4. Create loads with stops
 5. Assign, split or auto-assign through the dispatch manager
 6. Optionally generate settlements

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "relay-split"}

ADDING NEW SCENARIOS:
 1. Add to 'scenarios' slice with ID, name, description
 2. Create loader function: loadXxxScenario(ctx, h)
 3. Add the loader to scenarioLoaders

NOTE:

	Scenarios reset the database. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: LoadScenario, ListScenarios handlers
  - factory/profile.go: Rate profile JSON presets
*/
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/freight-engine/dispatch"
	"github.com/warp/freight-engine/factory"
	"github.com/warp/freight-engine/freight"
	"github.com/warp/freight-engine/generic"
	"github.com/warp/freight-engine/pay"
)

// DemoOrgID is the tenant used when a request names none.
const DemoOrgID = "org-demo"

var scenarioActor = generic.Actor{ID: "scenario-loader", Name: "Demo Loader"}

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "company-driver",
		Name:        "Company Driver",
		Description: "Mileage-paid company driver with one assigned two-stop load",
		Category:    "dispatch",
	},
	{
		ID:          "relay-split",
		Name:        "Relay Split",
		Description: "Three-stop load split at the middle stop between two drivers",
		Category:    "dispatch",
	},
	{
		ID:          "power-only",
		Name:        "Power-Only Carrier",
		Description: "Carrier paid 85% of revenue hauling the broker's trailer",
		Category:    "dispatch",
	},
	{
		ID:          "weekly-payroll",
		Name:        "Weekly Payroll",
		Description: "Weekly pay plan, delivered load and a DRAFT settlement for last week",
		Category:    "settlement",
	},
	{
		ID:          "dedicated-routes",
		Name:        "Dedicated Routes",
		Description: "HCR route assignments auto-assigning loads on create",
		Category:    "dispatch",
	},
}

var scenarioLoaders = map[string]func(h *Handler, ctx context.Context) error{
	"company-driver":   (*Handler).loadCompanyDriverScenario,
	"relay-split":      (*Handler).loadRelaySplitScenario,
	"power-only":       (*Handler).loadPowerOnlyScenario,
	"weekly-payroll":   (*Handler).loadWeeklyPayrollScenario,
	"dedicated-routes": (*Handler).loadDedicatedRoutesScenario,
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	current := h.currentScenario
	h.mu.Unlock()

	if current == "" {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	for _, s := range scenarios {
		if s.ID == current {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}
	writeJSON(w, http.StatusOK, ScenarioDTO{
		ID:          current,
		Name:        current,
		Description: "Currently loaded scenario",
	})
}

// LoadScenario resets the database and loads a predefined scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}
	if _, ok := scenarioLoaders[req.ScenarioID]; !ok {
		writeError(w, http.StatusBadRequest, "Unknown scenario", nil)
		return
	}

	if err := h.LoadScenarioByID(r.Context(), req.ScenarioID); err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to load scenario: %v", err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "loaded", "scenario": req.ScenarioID})
}

// LoadScenarioByID resets the store and runs one loader. Also used to seed
// the demo database on startup.
func (h *Handler) LoadScenarioByID(ctx context.Context, id string) error {
	load, ok := scenarioLoaders[id]
	if !ok {
		return generic.NewValidation("scenario_id", "unknown scenario %q", id)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.Store.Reset(ctx); err != nil {
		return fmt.Errorf("failed to reset database: %w", err)
	}
	h.currentScenario = ""

	if err := load(h, ctx); err != nil {
		return err
	}
	h.currentScenario = id
	return nil
}

// ResetDatabase clears all data.
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.Store.Reset(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	h.currentScenario = ""
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

func (h *Handler) loadCompanyDriverScenario(ctx context.Context) error {
	if _, err := h.createProfileFromJSON(ctx, "otr-mileage", factory.MileageProfileJSON("OTR Mileage", "0.62", "0.40"), true); err != nil {
		return err
	}
	if err := h.createDriver(ctx, "drv-001", "Maria Lopez", "T-101", "Dallas", "TX", ""); err != nil {
		return err
	}

	day := demoDay(1)
	if err := h.createLoad(ctx, freight.Load{
		ID:             "load-1001",
		OrderNumber:    "ORD-1001",
		EffectiveMiles: decimal.NewFromInt(412),
		IsHazmat:       true,
	}, []freight.Stop{
		demoStop("load-1001", 1, freight.StopPickup, "Dallas", "TX", day, "08:00", "10:00"),
		demoStop("load-1001", 2, freight.StopDelivery, "Houston", "TX", day, "15:00", "17:00"),
	}); err != nil {
		return err
	}

	return expectSuccess(h.Dispatch.AssignDriver(ctx, dispatch.AssignDriverInput{
		LoadID: "load-1001", DriverID: "drv-001", Actor: scenarioActor,
	}))
}

func (h *Handler) loadRelaySplitScenario(ctx context.Context) error {
	if _, err := h.createProfileFromJSON(ctx, "relay-mileage", factory.MileageProfileJSON("Relay Mileage", "0.58", "0.35"), true); err != nil {
		return err
	}
	if err := h.createDriver(ctx, "drv-101", "Ken Adams", "T-201", "Chicago", "IL", ""); err != nil {
		return err
	}
	if err := h.createDriver(ctx, "drv-102", "Ana Reyes", "T-202", "Memphis", "TN", ""); err != nil {
		return err
	}

	day := demoDay(2)
	next := demoDay(3)
	if err := h.createLoad(ctx, freight.Load{
		ID:             "load-2001",
		OrderNumber:    "ORD-2001",
		EffectiveMiles: decimal.NewFromInt(1040),
	}, []freight.Stop{
		demoStop("load-2001", 1, freight.StopPickup, "Chicago", "IL", day, "06:00", "08:00"),
		demoStop("load-2001", 2, freight.StopDelivery, "Memphis", "TN", day, "18:00", "19:00"),
		demoStop("load-2001", 3, freight.StopDelivery, "Atlanta", "GA", next, "09:00", "11:00"),
	}); err != nil {
		return err
	}

	if err := expectSuccess(h.Dispatch.AssignDriver(ctx, dispatch.AssignDriverInput{
		LoadID: "load-2001", DriverID: "drv-101", Actor: scenarioActor,
	})); err != nil {
		return err
	}
	return expectSuccess(h.Dispatch.SplitAtStop(ctx, dispatch.SplitInput{
		LoadID:      "load-2001",
		SplitStopID: "load-2001-s2",
		NewDriverID: "drv-102",
		Actor:       scenarioActor,
	}))
}

func (h *Handler) loadPowerOnlyScenario(ctx context.Context) error {
	if _, err := h.createProfileFromJSON(ctx, "carrier-85", factory.CarrierPercentProfileJSON("Carrier 85%", "85"), true); err != nil {
		return err
	}
	now := time.Now().UTC()
	carrier := freight.CarrierPartnership{
		ID:           "car-001",
		OrgID:        DemoOrgID,
		CarrierOrgID: "carrier-org-roadrunner",
		CarrierName:  "Roadrunner Logistics",
		Status:       freight.PartyActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := h.Store.SaveCarrier(ctx, carrier); err != nil {
		return err
	}

	day := demoDay(1)
	revenue := decimal.NewFromInt(2400)
	if err := h.createLoad(ctx, freight.Load{
		ID:             "load-3001",
		OrderNumber:    "ORD-3001",
		EffectiveMiles: decimal.NewFromInt(780),
		RequiresTarp:   true,
		Revenue:        &revenue,
	}, []freight.Stop{
		demoStop("load-3001", 1, freight.StopPickup, "Denver", "CO", day, "07:00", "09:00"),
		demoStop("load-3001", 2, freight.StopDelivery, "Salt Lake City", "UT", day, "20:00", "22:00"),
	}); err != nil {
		return err
	}

	return expectSuccess(h.Dispatch.AssignCarrier(ctx, dispatch.AssignCarrierInput{
		LoadID:        "load-3001",
		PartnershipID: "car-001",
		TrailerID:     "TRL-BROKER-7",
		Actor:         scenarioActor,
	}))
}

func (h *Handler) loadWeeklyPayrollScenario(ctx context.Context) error {
	if _, err := h.createProfileFromJSON(ctx, "weekly-mileage", factory.MileageProfileJSON("Weekly Mileage", "0.60", "0.40"), true); err != nil {
		return err
	}

	now := time.Now().UTC()
	plan := freight.PayPlan{
		ID:             "plan-weekly",
		OrgID:          DemoOrgID,
		Name:           "Weekly (Mon-Sun)",
		Frequency:      generic.FrequencyWeekly,
		AnchorDay:      int(time.Monday),
		PaymentLagDays: 5,
		PayableTrigger: freight.TriggerDeliveryDate,
		AutoCarryover:  true,
		IsActive:       true,
		CreatedAt:      now,
	}
	if err := h.Store.SavePayPlan(ctx, plan); err != nil {
		return err
	}
	if err := h.createDriver(ctx, "drv-201", "Sam Carter", "T-301", "Phoenix", "AZ", plan.ID); err != nil {
		return err
	}

	pc, err := plan.PeriodConfig()
	if err != nil {
		return err
	}
	last := pc.LastClosed(now)
	pickup := last.Start.AddDate(0, 0, 2)
	delivered := pickup.Add(10 * time.Hour)

	if err := h.createLoad(ctx, freight.Load{
		ID:             "load-4001",
		OrderNumber:    "ORD-4001",
		EffectiveMiles: decimal.NewFromInt(372),
		DeliveredAt:    &delivered,
	}, []freight.Stop{
		demoStop("load-4001", 1, freight.StopPickup, "Phoenix", "AZ", pickup.Format("2006-01-02"), "06:00", "07:00"),
		demoStop("load-4001", 2, freight.StopDelivery, "Los Angeles", "CA", pickup.Format("2006-01-02"), "15:00", "16:00"),
	}); err != nil {
		return err
	}
	if err := expectSuccess(h.Dispatch.AssignDriver(ctx, dispatch.AssignDriverInput{
		LoadID: "load-4001", DriverID: "drv-201", Actor: scenarioActor,
	})); err != nil {
		return err
	}

	legs, err := h.Store.ListLegsByLoad(ctx, "load-4001")
	if err != nil {
		return err
	}
	for _, leg := range legs {
		if _, err := h.Dispatch.TransitionLeg(ctx, leg.ID, freight.LegActive, scenarioActor); err != nil {
			return err
		}
		if _, err := h.Dispatch.TransitionLeg(ctx, leg.ID, freight.LegCompleted, scenarioActor); err != nil {
			return err
		}
	}

	if _, err := h.Ledger.CreateManual(ctx, manualLumper("load-4001", "drv-201"), scenarioActor); err != nil {
		return err
	}

	_, err = h.Settlements.GenerateForPlan(ctx, freight.PayeeDriver, "drv-201", now, scenarioActor)
	return err
}

func (h *Handler) loadDedicatedRoutesScenario(ctx context.Context) error {
	if _, err := h.createProfileFromJSON(ctx, "dedicated-mileage", factory.MileageProfileJSON("Dedicated Mileage", "0.65", "0.45"), true); err != nil {
		return err
	}
	if err := h.createDriver(ctx, "drv-301", "Lee Park", "T-401", "Reno", "NV", ""); err != nil {
		return err
	}
	if err := h.createDriver(ctx, "drv-302", "Jo Banks", "T-402", "Reno", "NV", ""); err != nil {
		return err
	}

	now := time.Now().UTC()
	routes := []freight.RouteAssignment{
		{ID: "route-1", HCR: "89510", TripNumber: freight.TripWildcard, DriverID: "drv-301", Priority: 10},
		{ID: "route-2", HCR: "89510", TripNumber: "204", DriverID: "drv-302", Priority: 10},
	}
	for _, ra := range routes {
		ra.OrgID = DemoOrgID
		ra.IsActive = true
		ra.CreatedAt = now
		if err := h.Store.SaveRouteAssignment(ctx, ra); err != nil {
			return err
		}
	}
	if err := h.Store.SaveAutoAssignSettings(ctx, freight.AutoAssignSettings{
		OrgID:                   DemoOrgID,
		TriggerOnCreate:         true,
		ScheduledEnabled:        true,
		ScheduleIntervalMinutes: 30,
	}); err != nil {
		return err
	}

	for i, trip := range []string{"101", "204"} {
		id := fmt.Sprintf("load-50%02d", i+1)
		day := demoDay(i + 1)
		if err := h.createLoad(ctx, freight.Load{
			ID:             id,
			OrderNumber:    fmt.Sprintf("USPS-89510-%s", trip),
			HCR:            "89510",
			TripNumber:     trip,
			EffectiveMiles: decimal.NewFromInt(220),
		}, []freight.Stop{
			demoStop(id, 1, freight.StopPickup, "Reno", "NV", day, "04:00", "05:00"),
			demoStop(id, 2, freight.StopDelivery, "Sacramento", "CA", day, "09:00", "10:00"),
		}); err != nil {
			return err
		}
		res, err := h.AutoAssign.OnLoadCreated(ctx, id)
		if err != nil {
			return err
		}
		if res == nil {
			return fmt.Errorf("load %s was not auto-assigned", id)
		}
		if !res.OK() {
			return fmt.Errorf("auto-assign %s: %s", id, res.Message)
		}
	}
	return nil
}

// =============================================================================
// SCENARIO HELPERS
// =============================================================================

func (h *Handler) createProfileFromJSON(ctx context.Context, id, jsonStr string, isDefault bool) (*freight.RateProfile, error) {
	profile, err := h.ProfileFactory.ParseProfile(jsonStr)
	if err != nil {
		return nil, err
	}
	profile.ID = id
	profile.OrgID = DemoOrgID
	profile.IsDefault = isDefault
	return h.Rates.SaveProfile(ctx, *profile, scenarioActor)
}

func (h *Handler) createDriver(ctx context.Context, id, name, truck, city, state, planID string) error {
	now := time.Now().UTC()
	return h.Store.SaveDriver(ctx, freight.Driver{
		ID:             id,
		OrgID:          DemoOrgID,
		Name:           name,
		Status:         freight.PartyActive,
		PayPlanID:      planID,
		CurrentTruckID: truck,
		CurrentCity:    city,
		CurrentState:   state,
		CreatedAt:      now,
		UpdatedAt:      now,
	})
}

func (h *Handler) createLoad(ctx context.Context, load freight.Load, stops []freight.Stop) error {
	now := time.Now().UTC()
	load.OrgID = DemoOrgID
	load.Status = freight.LoadOpen
	load.CreatedAt = now
	load.UpdatedAt = now
	for i := range stops {
		stops[i].OrgID = DemoOrgID
	}
	return h.saveLoadWithStops(ctx, load, stops)
}

// saveLoadWithStops writes a load and its stops in one transaction.
func (h *Handler) saveLoadWithStops(ctx context.Context, load freight.Load, stops []freight.Stop) error {
	return h.Store.WithTx(ctx, func(tx freight.Store) error {
		if err := tx.SaveLoad(ctx, load); err != nil {
			return err
		}
		for _, s := range stops {
			if err := tx.SaveStop(ctx, s); err != nil {
				return err
			}
		}
		return nil
	})
}

func demoStop(loadID string, seq int, kind freight.StopType, city, state, date, begin, end string) freight.Stop {
	return freight.Stop{
		ID:              fmt.Sprintf("%s-s%d", loadID, seq),
		LoadID:          loadID,
		SequenceNumber:  seq,
		StopType:        kind,
		City:            city,
		State:           state,
		WindowBeginDate: date,
		WindowBeginTime: begin,
		WindowEndDate:   date,
		WindowEndTime:   end,
	}
}

// demoDay returns an ISO date offsetDays from today.
func demoDay(offsetDays int) string {
	return time.Now().UTC().AddDate(0, 0, offsetDays).Format("2006-01-02")
}

func manualLumper(loadID, driverID string) pay.ManualPayableInput {
	return pay.ManualPayableInput{
		OrgID:        DemoOrgID,
		PayeeType:    freight.PayeeDriver,
		PayeeID:      driverID,
		LoadID:       loadID,
		Description:  "Lumper reimbursement",
		Quantity:     decimal.NewFromInt(1),
		Rate:         decimal.NewFromInt(85),
		Category:     freight.CategoryAccessorial,
		IsRebillable: true,
	}
}

func expectSuccess(res dispatch.Result, err error) error {
	if err != nil {
		return err
	}
	if !res.OK() {
		return fmt.Errorf("%s: %s", res.Status, res.Message)
	}
	return nil
}
