/*
ledger.go - Payable ledger: manual rows and lock management

PURPOSE:
  SYSTEM rows belong to the engine (see engine.go). This file covers the
  user side of the ledger: manual pay lines, edits, deletes and the
  isLocked flag that shields a row from the engine.

INVARIANTS:
  (a) A locked payable is never deleted or rewritten by the engine.
  (b) SettlementID "" means the row is available to a future settlement.
  (c) SYSTEM rows cannot be edited or deleted here.
  (d) Rows attached to a settlement that is no longer DRAFT are read-only.

ERRORS:
  ErrSystemPayableReadOnly: edit/delete of a SYSTEM row
  ErrPayableLocked:         edit/delete of a locked row
  ErrSettlementLocked:      the owning settlement is past DRAFT

SEE ALSO:
  - settlement/service.go: Adjustments reuse NewManualPayable + CheckEditable
*/
package pay

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/warp/freight-engine/freight"
	"github.com/warp/freight-engine/generic"
)

// Ledger manages manual payables and row locks.
type Ledger struct {
	store  freight.Store
	logger *log.Logger
	Now    func() time.Time
}

// NewLedger creates a ledger service.
func NewLedger(store freight.Store, logger *log.Logger) *Ledger {
	if logger == nil {
		logger = log.Default()
	}
	return &Ledger{store: store, logger: logger}
}

// ManualPayableInput describes a user-entered pay line.
type ManualPayableInput struct {
	OrgID            string
	PayeeType        freight.PayeeType
	PayeeID          string
	LoadID           string
	LegID            string
	SettlementID     string
	Description      string
	Quantity         decimal.Decimal
	Rate             decimal.Decimal
	Category         freight.RuleCategory
	IsRebillable     bool
	RebillCustomerID string
	ReceiptURL       string
}

// PayableUpdate carries the editable fields of a manual payable. Nil fields
// are left unchanged.
type PayableUpdate struct {
	Description      *string
	Quantity         *decimal.Decimal
	Rate             *decimal.Decimal
	Category         *freight.RuleCategory
	IsRebillable     *bool
	RebillCustomerID *string
	ReceiptURL       *string
}

// NewManualPayable validates the input and builds the row.
// TotalAmount = Quantity x Rate (negative for deductions).
func NewManualPayable(in ManualPayableInput, actor generic.Actor, now time.Time) (freight.Payable, error) {
	if !in.PayeeType.Valid() {
		return freight.Payable{}, generic.NewValidation("payee_type", "unknown payee type %q", in.PayeeType)
	}
	if in.PayeeID == "" {
		return freight.Payable{}, generic.NewValidation("payee_id", "is required")
	}
	if strings.TrimSpace(in.Description) == "" {
		return freight.Payable{}, generic.NewValidation("description", "is required")
	}
	if in.Category == "" {
		in.Category = freight.CategoryAccessorial
	}
	if err := validateManualCategory(in.Category); err != nil {
		return freight.Payable{}, err
	}

	return freight.Payable{
		ID:               uuid.NewString(),
		OrgID:            in.OrgID,
		PayeeType:        in.PayeeType,
		PayeeID:          in.PayeeID,
		LoadID:           in.LoadID,
		LegID:            in.LegID,
		SettlementID:     in.SettlementID,
		Description:      in.Description,
		Quantity:         in.Quantity,
		Rate:             in.Rate,
		TotalAmount:      freight.LineTotal(in.Quantity, in.Rate, in.Category),
		SourceType:       freight.SourceManual,
		Category:         in.Category,
		IsRebillable:     in.IsRebillable,
		RebillCustomerID: in.RebillCustomerID,
		ReceiptURL:       in.ReceiptURL,
		CreatedBy:        actor.ID,
		CreatedAt:        now,
		UpdatedAt:        now,
	}, nil
}

// ApplyUpdate patches a manual payable and recomputes its total.
func ApplyUpdate(p *freight.Payable, u PayableUpdate) error {
	if u.Description != nil {
		if strings.TrimSpace(*u.Description) == "" {
			return generic.NewValidation("description", "is required")
		}
		p.Description = *u.Description
	}
	if u.Quantity != nil {
		p.Quantity = *u.Quantity
	}
	if u.Rate != nil {
		p.Rate = *u.Rate
	}
	if u.Category != nil {
		if err := validateManualCategory(*u.Category); err != nil {
			return err
		}
		p.Category = *u.Category
	}
	if u.IsRebillable != nil {
		p.IsRebillable = *u.IsRebillable
	}
	if u.RebillCustomerID != nil {
		p.RebillCustomerID = *u.RebillCustomerID
	}
	if u.ReceiptURL != nil {
		p.ReceiptURL = *u.ReceiptURL
	}
	p.TotalAmount = freight.LineTotal(p.Quantity, p.Rate, p.Category)
	return nil
}

// CheckEditable rejects user edits to SYSTEM rows, locked rows and rows of
// a settlement past DRAFT.
func CheckEditable(ctx context.Context, tx freight.Store, p freight.Payable) error {
	if p.SourceType == freight.SourceSystem {
		return generic.ErrSystemPayableReadOnly
	}
	if p.IsLocked {
		return generic.ErrPayableLocked
	}
	return checkSettlementDraft(ctx, tx, p.SettlementID)
}

// CreateManual records a manual payable.
func (l *Ledger) CreateManual(ctx context.Context, in ManualPayableInput, actor generic.Actor) (*freight.Payable, error) {
	var out freight.Payable
	err := l.store.WithTx(ctx, func(tx freight.Store) error {
		if in.LegID != "" {
			leg, err := tx.GetLeg(ctx, in.LegID)
			if err != nil {
				return err
			}
			if leg == nil {
				return generic.NewNotFound("leg", in.LegID)
			}
			if in.LoadID == "" {
				in.LoadID = leg.LoadID
			}
			if in.LoadID != leg.LoadID {
				return generic.NewValidation("leg_id", "leg %s does not belong to load %s", in.LegID, in.LoadID)
			}
		}
		if in.SettlementID != "" {
			s, err := tx.GetSettlement(ctx, in.SettlementID)
			if err != nil {
				return err
			}
			if s == nil {
				return generic.NewNotFound("settlement", in.SettlementID)
			}
			if s.Status != freight.SettlementDraft {
				return generic.ErrSettlementLocked
			}
			if s.PayeeType != in.PayeeType || s.PayeeID != in.PayeeID {
				return generic.NewValidation("settlement_id", "settlement belongs to another payee")
			}
		}

		p, err := NewManualPayable(in, actor, l.now())
		if err != nil {
			return err
		}
		if err := tx.SavePayable(ctx, p); err != nil {
			return err
		}
		l.audit(ctx, tx, p, generic.AuditPayableCreated, actor,
			fmt.Sprintf("Created manual payable %q for %s", p.Description, p.TotalAmount.StringFixed(2)))
		out = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateManual edits a manual payable.
func (l *Ledger) UpdateManual(ctx context.Context, id string, u PayableUpdate, actor generic.Actor) (*freight.Payable, error) {
	var out freight.Payable
	err := l.store.WithTx(ctx, func(tx freight.Store) error {
		p, err := getPayable(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := CheckEditable(ctx, tx, *p); err != nil {
			return err
		}
		before := p.TotalAmount
		if err := ApplyUpdate(p, u); err != nil {
			return err
		}
		p.UpdatedAt = l.now()
		if err := tx.SavePayable(ctx, *p); err != nil {
			return err
		}
		entry := l.entry(*p, generic.AuditPayableUpdated, actor,
			fmt.Sprintf("Updated manual payable %q", p.Description))
		entry.Before = map[string]any{"total_amount": before.StringFixed(2)}
		entry.After = map[string]any{"total_amount": p.TotalAmount.StringFixed(2)}
		generic.Record(ctx, tx, l.logger, entry)
		out = *p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteManual removes a manual payable.
func (l *Ledger) DeleteManual(ctx context.Context, id string, actor generic.Actor) error {
	return l.store.WithTx(ctx, func(tx freight.Store) error {
		p, err := getPayable(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := CheckEditable(ctx, tx, *p); err != nil {
			return err
		}
		if err := tx.DeletePayable(ctx, p.ID); err != nil {
			return err
		}
		l.audit(ctx, tx, *p, generic.AuditPayableDeleted, actor,
			fmt.Sprintf("Deleted manual payable %q", p.Description))
		return nil
	})
}

// SetLocked locks or unlocks a payable. Rows locked by an approved or paid
// settlement stay locked until the settlement is voided and deleted.
func (l *Ledger) SetLocked(ctx context.Context, id string, locked bool, actor generic.Actor) (*freight.Payable, error) {
	var out freight.Payable
	err := l.store.WithTx(ctx, func(tx freight.Store) error {
		p, err := getPayable(ctx, tx, id)
		if err != nil {
			return err
		}
		if p.IsLocked == locked {
			out = *p
			return nil
		}
		if !locked && p.LockedBySettlement {
			return generic.ErrSettlementLocked
		}
		if err := checkSettlementDraft(ctx, tx, p.SettlementID); err != nil {
			return err
		}

		p.IsLocked = locked
		p.UpdatedAt = l.now()
		if err := tx.SavePayable(ctx, *p); err != nil {
			return err
		}
		verb := "Unlocked"
		if locked {
			verb = "Locked"
		}
		l.audit(ctx, tx, *p, generic.AuditPayableLocked, actor, fmt.Sprintf("%s payable %q", verb, p.Description))
		out = *p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// ListForLoad returns every payable of a load.
func (l *Ledger) ListForLoad(ctx context.Context, loadID string) ([]freight.Payable, error) {
	return l.store.ListPayablesByLoad(ctx, loadID)
}

// ListUnassigned returns a payee's payables not owned by any settlement.
func (l *Ledger) ListUnassigned(ctx context.Context, payeeType freight.PayeeType, payeeID string) ([]freight.Payable, error) {
	all, err := l.store.ListPayablesByPayee(ctx, payeeType, payeeID)
	if err != nil {
		return nil, err
	}
	var out []freight.Payable
	for _, p := range all {
		if p.SettlementID == "" {
			out = append(out, p)
		}
	}
	return out, nil
}

// =============================================================================
// HELPERS
// =============================================================================

func getPayable(ctx context.Context, tx freight.Store, id string) (*freight.Payable, error) {
	p, err := tx.GetPayable(ctx, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, generic.NewNotFound("payable", id)
	}
	return p, nil
}

func checkSettlementDraft(ctx context.Context, tx freight.Store, settlementID string) error {
	if settlementID == "" {
		return nil
	}
	s, err := tx.GetSettlement(ctx, settlementID)
	if err != nil {
		return err
	}
	if s != nil && s.Status != freight.SettlementDraft {
		return generic.ErrSettlementLocked
	}
	return nil
}

func validateManualCategory(c freight.RuleCategory) error {
	switch c {
	case freight.CategoryBase, freight.CategoryAccessorial, freight.CategoryDeduction:
		return nil
	}
	return generic.NewValidation("category", "unknown category %q", c)
}

func (l *Ledger) entry(p freight.Payable, action generic.AuditAction, actor generic.Actor, desc string) generic.AuditEntry {
	return generic.AuditEntry{
		OrgID:       p.OrgID,
		EntityType:  "payable",
		EntityID:    p.ID,
		Action:      action,
		Description: desc,
	}.WithActor(actor)
}

func (l *Ledger) audit(ctx context.Context, tx freight.Store, p freight.Payable, action generic.AuditAction, actor generic.Actor, desc string) {
	generic.Record(ctx, tx, l.logger, l.entry(p, action, actor, desc))
}

func (l *Ledger) now() time.Time {
	if l.Now != nil {
		return l.Now().UTC()
	}
	return time.Now().UTC()
}
