package pay

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/warp/freight-engine/freight"
	"github.com/warp/freight-engine/generic"
)

// =============================================================================
// CONFIG SERVICE - Rate profiles and profile assignments
// =============================================================================

// ConfigService writes pay configuration. Both single-default rules (one
// default profile per org and type, one default assignment per subject) are
// enforced here by demoting the previous default in the same transaction.
type ConfigService struct {
	store  freight.Store
	logger *log.Logger
	Now    func() time.Time
}

// NewConfigService creates a config service.
func NewConfigService(store freight.Store, logger *log.Logger) *ConfigService {
	if logger == nil {
		logger = log.Default()
	}
	return &ConfigService{store: store, logger: logger}
}

// SaveProfile validates and upserts a profile with its rules.
func (s *ConfigService) SaveProfile(ctx context.Context, p freight.RateProfile, actor generic.Actor) (*freight.RateProfile, error) {
	if err := ValidateProfile(p); err != nil {
		return nil, err
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = s.now()
	}
	for i := range p.Rules {
		if p.Rules[i].ID == "" {
			p.Rules[i].ID = uuid.NewString()
		}
		p.Rules[i].ProfileID = p.ID
	}

	if p.IsDefault && !p.IsActive {
		return nil, generic.NewValidation("is_default", "an inactive profile cannot be the default")
	}

	err := s.store.WithTx(ctx, func(tx freight.Store) error {
		if err := tx.SaveRateProfile(ctx, p); err != nil {
			return err
		}
		generic.Record(ctx, tx, s.logger, generic.AuditEntry{
			OrgID:       p.OrgID,
			EntityType:  "rate_profile",
			EntityID:    p.ID,
			Action:      generic.AuditProfileChanged,
			Description: fmt.Sprintf("Saved %s rate profile %q with %d rules", strings.ToLower(string(p.ProfileType)), p.Name, len(p.Rules)),
			After:       map[string]any{"is_default": p.IsDefault, "is_active": p.IsActive},
		}.WithActor(actor))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// SetDefaultProfile makes profileID the org default for its type.
func (s *ConfigService) SetDefaultProfile(ctx context.Context, profileID string, actor generic.Actor) (*freight.RateProfile, error) {
	var out *freight.RateProfile
	err := s.store.WithTx(ctx, func(tx freight.Store) error {
		p, err := tx.GetRateProfile(ctx, profileID)
		if err != nil {
			return err
		}
		if p == nil {
			return generic.NewNotFound("rate profile", profileID)
		}
		if !p.IsActive {
			return generic.NewValidation("is_default", "an inactive profile cannot be the default")
		}
		if p.IsDefault {
			out = p
			return nil
		}

		p.IsDefault = true
		if err := tx.SaveRateProfile(ctx, *p); err != nil {
			return err
		}
		generic.Record(ctx, tx, s.logger, generic.AuditEntry{
			OrgID:       p.OrgID,
			EntityType:  "rate_profile",
			EntityID:    p.ID,
			Action:      generic.AuditProfileChanged,
			Description: fmt.Sprintf("Set %q as default %s profile", p.Name, strings.ToLower(string(p.ProfileType))),
		}.WithActor(actor))
		out = p
		return nil
	})
	return out, err
}

// AssignProfile links a driver or carrier partnership to a profile.
func (s *ConfigService) AssignProfile(ctx context.Context, a freight.ProfileAssignment, actor generic.Actor) (*freight.ProfileAssignment, error) {
	if err := a.Validate(); err != nil {
		return nil, err
	}
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = s.now()
	}

	err := s.store.WithTx(ctx, func(tx freight.Store) error {
		p, err := tx.GetRateProfile(ctx, a.ProfileID)
		if err != nil {
			return err
		}
		if p == nil {
			return generic.NewNotFound("rate profile", a.ProfileID)
		}
		if p.ProfileType != a.SubjectType {
			return generic.NewValidation("profile_id", "%s profile cannot be assigned to a %s",
				strings.ToLower(string(p.ProfileType)), strings.ToLower(string(a.SubjectType)))
		}

		orgID, err := subjectOrg(ctx, tx, a.SubjectType, a.SubjectID)
		if err != nil {
			return err
		}
		if a.OrgID == "" {
			a.OrgID = orgID
		}

		if err := tx.SaveProfileAssignment(ctx, a); err != nil {
			return err
		}
		generic.Record(ctx, tx, s.logger, generic.AuditEntry{
			OrgID:       a.OrgID,
			EntityType:  strings.ToLower(string(a.SubjectType)),
			EntityID:    a.SubjectID,
			Action:      generic.AuditProfileAssigned,
			Description: fmt.Sprintf("Assigned rate profile %q (%s)", p.Name, a.Strategy),
			After:       map[string]any{"profile_id": a.ProfileID, "strategy": string(a.Strategy), "is_default": a.IsDefault},
		}.WithActor(actor))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// GetProfile returns a profile with its rules.
func (s *ConfigService) GetProfile(ctx context.Context, id string) (*freight.RateProfile, error) {
	p, err := s.store.GetRateProfile(ctx, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, generic.NewNotFound("rate profile", id)
	}
	return p, nil
}

// ListProfiles returns an org's profiles.
func (s *ConfigService) ListProfiles(ctx context.Context, orgID string) ([]freight.RateProfile, error) {
	return s.store.ListRateProfiles(ctx, orgID)
}

// ListAssignments returns a subject's profile assignments.
func (s *ConfigService) ListAssignments(ctx context.Context, subjectType freight.PayeeType, subjectID string) ([]freight.ProfileAssignment, error) {
	return s.store.ListProfileAssignments(ctx, subjectType, subjectID)
}

// ValidateProfile checks a profile and each of its rules.
func ValidateProfile(p freight.RateProfile) error {
	if strings.TrimSpace(p.Name) == "" {
		return generic.NewValidation("name", "is required")
	}
	if p.OrgID == "" {
		return generic.NewValidation("org_id", "is required")
	}
	if !p.ProfileType.Valid() {
		return generic.NewValidation("profile_type", "unknown profile type %q", p.ProfileType)
	}
	switch p.PayBasis {
	case freight.BasisMileage, freight.BasisHourly, freight.BasisPercentage, freight.BasisFlat:
	default:
		return generic.NewValidation("pay_basis", "unknown pay basis %q", p.PayBasis)
	}
	for i, r := range p.Rules {
		if strings.TrimSpace(r.Name) == "" {
			return generic.NewValidation(fmt.Sprintf("rules[%d].name", i), "is required")
		}
		if err := r.Validate(); err != nil {
			return fmt.Errorf("rules[%d]: %w", i, err)
		}
	}
	return nil
}

func subjectOrg(ctx context.Context, tx freight.Store, subjectType freight.PayeeType, id string) (string, error) {
	if subjectType == freight.PayeeDriver {
		d, err := tx.GetDriver(ctx, id)
		if err != nil {
			return "", err
		}
		if d == nil {
			return "", generic.NewNotFound("driver", id)
		}
		return d.OrgID, nil
	}
	c, err := tx.GetCarrier(ctx, id)
	if err != nil {
		return "", err
	}
	if c == nil {
		return "", generic.NewNotFound("carrier partnership", id)
	}
	return c.OrgID, nil
}

func (s *ConfigService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}
