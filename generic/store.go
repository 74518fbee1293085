/*
store.go - Audit sink interface

PURPOSE:
  Every state-changing operation (assignment, split, approval, void, ...)
  emits one audit entry describing who did what to which record. The audit
  log is a write-only side channel: the engine never reads it back to make
  decisions, and a failed audit write never fails the mutation.

KEY INTERFACES:
  AuditLog: Append + Query

FIRE-AND-FORGET:
  Use Record() instead of calling Append directly. Record logs and
  swallows append failures so a broken audit table cannot block payroll.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: audit_log table

EXAMPLE:
  generic.Record(ctx, store, logger, generic.AuditEntry{
      OrgID:       load.OrgID,
      EntityType:  "load",
      EntityID:    load.ID,
      Action:      generic.AuditDriverAssigned,
      PerformedBy: actor.ID,
      Description: "Assigned driver Jane Doe",
  })

SEE ALSO:
  - freight/store.go: Domain persistence interface (embeds AuditLog)
*/
package generic

import (
	"context"
	"log"
	"time"
)

// =============================================================================
// AUDIT LOG - Tracks who did what when
// =============================================================================

// AuditEntry records who did what when.
type AuditEntry struct {
	ID              string
	OrgID           string
	EntityType      string
	EntityID        string
	Action          AuditAction
	PerformedBy     string
	PerformedByName string
	Description     string
	Before          map[string]any
	After           map[string]any
	Timestamp       time.Time
}

type AuditAction string

const (
	AuditDriverAssigned      AuditAction = "driver_assigned"
	AuditCarrierAssigned     AuditAction = "carrier_assigned"
	AuditResourceUnassigned  AuditAction = "resource_unassigned"
	AuditLegSplit            AuditAction = "leg_split"
	AuditDriverRemoved       AuditAction = "driver_removed"
	AuditLegStatusChanged    AuditAction = "leg_status_changed"
	AuditPayRecalculated     AuditAction = "pay_recalculated"
	AuditDriverDeactivated   AuditAction = "driver_deactivated"
	AuditCarrierDeactivated  AuditAction = "carrier_deactivated"
	AuditProfileChanged      AuditAction = "rate_profile_changed"
	AuditProfileAssigned     AuditAction = "rate_profile_assigned"
	AuditPayableCreated      AuditAction = "payable_created"
	AuditPayableUpdated      AuditAction = "payable_updated"
	AuditPayableDeleted      AuditAction = "payable_deleted"
	AuditPayableLocked       AuditAction = "payable_lock_changed"
	AuditSettlementGenerated AuditAction = "settlement_generated"
	AuditSettlementRefreshed AuditAction = "settlement_refreshed"
	AuditSettlementHold      AuditAction = "settlement_load_held"
	AuditSettlementRelease   AuditAction = "settlement_load_released"
	AuditSettlementSubmitted AuditAction = "settlement_submitted"
	AuditSettlementApproved  AuditAction = "settlement_approved"
	AuditSettlementPaid      AuditAction = "settlement_paid"
	AuditSettlementVoided    AuditAction = "settlement_voided"
	AuditSettlementDeleted   AuditAction = "settlement_deleted"
	AuditAdjustmentChanged   AuditAction = "settlement_adjustment_changed"
	AuditAutoAssigned        AuditAction = "auto_assigned"
)

// AuditLog stores audit entries. Append-only.
type AuditLog interface {
	AppendAudit(ctx context.Context, entry AuditEntry) error
	QueryAudit(ctx context.Context, filter AuditFilter) ([]AuditEntry, error)
}

type AuditFilter struct {
	OrgID      string
	EntityType string
	EntityID   string
	Actions    []AuditAction
	From       *time.Time
	To         *time.Time
	Limit      int
}

// Record appends entry and only logs on failure.
func Record(ctx context.Context, sink AuditLog, logger *log.Logger, entry AuditEntry) {
	if sink == nil {
		return
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	if err := sink.AppendAudit(ctx, entry); err != nil {
		if logger == nil {
			logger = log.Default()
		}
		logger.Printf("audit write failed for %s %s (%s): %v", entry.EntityType, entry.EntityID, entry.Action, err)
	}
}

// WithActor stamps the actor fields on an entry.
func (e AuditEntry) WithActor(a Actor) AuditEntry {
	e.PerformedBy = a.ID
	e.PerformedByName = a.Name
	return e
}
