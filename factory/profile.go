/*
Package factory provides JSON to Go rate profile conversion.

PURPOSE:
  Converts JSON rate profile documents into freight.RateProfile values.
  Payroll admins keep pay packages as JSON (admin UI, seed files, version
  control) and the factory builds the Go structs the pay engine reads.

JSON SCHEMA:
  {
    "id": "otr-mileage",
    "name": "OTR Mileage",
    "profile_type": "DRIVER",
    "pay_basis": "MILEAGE",
    "is_default": true,
    "rules": [
      {"name": "Loaded miles", "category": "BASE", "trigger": "MILE_LOADED", "rate": "0.62"},
      {"name": "Detention", "category": "ACCESSORIAL", "trigger": "TIME_WAITING",
       "rate": "25", "min_threshold": "2", "max_cap": "200"},
      {"name": "Escrow", "category": "DEDUCTION", "trigger": "FLAT_LOAD", "rate": "15"}
    ]
  }

  Numbers may be JSON strings or numbers. Strings are preferred because
  they keep rates exact.

DEFAULTS:
  - profile is_active: true
  - rule is_active: true
  - rule category: BASE
  - pay_basis: MILEAGE

USAGE:
  f := factory.NewProfileFactory()
  profile, err := f.ParseProfile(jsonStr)
  profile.OrgID = orgID
  saved, err := configService.SaveProfile(ctx, *profile, actor)

SEE ALSO:
  - freight/rates.go: RateProfile / RateRule
  - pay/config.go: Persists profiles and enforces the single default
*/
package factory

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/warp/freight-engine/freight"
	"github.com/warp/freight-engine/generic"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// ProfileJSON is the JSON representation of a rate profile.
type ProfileJSON struct {
	ID          string     `json:"id,omitempty"`
	OrgID       string     `json:"org_id,omitempty"`
	Name        string     `json:"name"`
	ProfileType string     `json:"profile_type"`
	PayBasis    string     `json:"pay_basis,omitempty"`
	IsActive    *bool      `json:"is_active,omitempty"`
	IsDefault   bool       `json:"is_default,omitempty"`
	Rules       []RuleJSON `json:"rules"`
}

// RuleJSON is the JSON representation of a rate rule.
type RuleJSON struct {
	ID           string           `json:"id,omitempty"`
	Name         string           `json:"name"`
	Category     string           `json:"category,omitempty"`
	Trigger      string           `json:"trigger"`
	Rate         decimal.Decimal  `json:"rate"`
	MinThreshold *decimal.Decimal `json:"min_threshold,omitempty"`
	MaxCap       *decimal.Decimal `json:"max_cap,omitempty"`
	IsActive     *bool            `json:"is_active,omitempty"`
}

// =============================================================================
// PROFILE FACTORY
// =============================================================================

// ProfileFactory converts JSON rate profiles to Go structs.
type ProfileFactory struct{}

// NewProfileFactory creates a new profile factory.
func NewProfileFactory() *ProfileFactory {
	return &ProfileFactory{}
}

// ParseProfile parses a JSON string into a RateProfile.
func (f *ProfileFactory) ParseProfile(jsonStr string) (*freight.RateProfile, error) {
	var pj ProfileJSON
	if err := json.Unmarshal([]byte(jsonStr), &pj); err != nil {
		return nil, fmt.Errorf("failed to parse rate profile JSON: %w", err)
	}
	return f.FromJSON(pj)
}

// FromJSON converts ProfileJSON to a RateProfile. Enums are validated; the
// org is left to the caller when the document does not name one.
func (f *ProfileFactory) FromJSON(pj ProfileJSON) (*freight.RateProfile, error) {
	if strings.TrimSpace(pj.Name) == "" {
		return nil, generic.NewValidation("name", "is required")
	}
	profileType := freight.PayeeType(strings.ToUpper(pj.ProfileType))
	if !profileType.Valid() {
		return nil, generic.NewValidation("profile_type", "unknown profile type %q", pj.ProfileType)
	}

	profile := &freight.RateProfile{
		ID:          pj.ID,
		OrgID:       pj.OrgID,
		Name:        pj.Name,
		ProfileType: profileType,
		PayBasis:    parsePayBasis(pj.PayBasis),
		IsActive:    boolOr(pj.IsActive, true),
		IsDefault:   pj.IsDefault,
	}

	for i, rj := range pj.Rules {
		rule := parseRule(rj)
		if strings.TrimSpace(rule.Name) == "" {
			return nil, generic.NewValidation(fmt.Sprintf("rules[%d].name", i), "is required")
		}
		if err := rule.Validate(); err != nil {
			return nil, fmt.Errorf("rules[%d]: %w", i, err)
		}
		profile.Rules = append(profile.Rules, rule)
	}

	return profile, nil
}

// ToJSON converts a RateProfile to ProfileJSON.
func (f *ProfileFactory) ToJSON(p freight.RateProfile) ProfileJSON {
	active := p.IsActive
	pj := ProfileJSON{
		ID:          p.ID,
		OrgID:       p.OrgID,
		Name:        p.Name,
		ProfileType: string(p.ProfileType),
		PayBasis:    string(p.PayBasis),
		IsActive:    &active,
		IsDefault:   p.IsDefault,
	}
	for _, r := range p.Rules {
		ruleActive := r.IsActive
		pj.Rules = append(pj.Rules, RuleJSON{
			ID:           r.ID,
			Name:         r.Name,
			Category:     string(r.Category),
			Trigger:      string(r.Trigger),
			Rate:         r.Rate,
			MinThreshold: r.MinThreshold,
			MaxCap:       r.MaxCap,
			IsActive:     &ruleActive,
		})
	}
	return pj
}

// =============================================================================
// PARSING HELPERS
// =============================================================================

func parseRule(rj RuleJSON) freight.RateRule {
	category := freight.RuleCategory(strings.ToUpper(rj.Category))
	if category == "" {
		category = freight.CategoryBase
	}
	return freight.RateRule{
		ID:           rj.ID,
		Name:         rj.Name,
		Category:     category,
		Trigger:      freight.Trigger(strings.ToUpper(rj.Trigger)),
		Rate:         rj.Rate,
		MinThreshold: rj.MinThreshold,
		MaxCap:       rj.MaxCap,
		IsActive:     boolOr(rj.IsActive, true),
	}
}

func parsePayBasis(s string) freight.PayBasis {
	switch strings.ToUpper(s) {
	case "HOURLY":
		return freight.BasisHourly
	case "PERCENTAGE":
		return freight.BasisPercentage
	case "FLAT":
		return freight.BasisFlat
	default:
		return freight.BasisMileage
	}
}

func boolOr(b *bool, def bool) bool {
	if b == nil {
		return def
	}
	return *b
}

// =============================================================================
// PRESET PROFILES
// =============================================================================

// MileageProfileJSON returns a driver profile paying loaded and empty miles.
func MileageProfileJSON(name, loadedRate, emptyRate string) string {
	return fmt.Sprintf(`{
		"name": %q,
		"profile_type": "DRIVER",
		"pay_basis": "MILEAGE",
		"rules": [
			{"name": "Loaded miles", "category": "BASE", "trigger": "MILE_LOADED", "rate": %q},
			{"name": "Empty miles", "category": "BASE", "trigger": "MILE_EMPTY", "rate": %q},
			{"name": "Detention", "category": "ACCESSORIAL", "trigger": "TIME_WAITING", "rate": "20", "min_threshold": "2", "max_cap": "200"},
			{"name": "Stop pay", "category": "ACCESSORIAL", "trigger": "COUNT_STOPS", "rate": "25", "min_threshold": "2"},
			{"name": "Hazmat", "category": "ACCESSORIAL", "trigger": "ATTR_HAZMAT", "rate": "50"}
		]
	}`, name, loadedRate, emptyRate)
}

// CarrierPercentProfileJSON returns a carrier profile paying a percent of revenue.
func CarrierPercentProfileJSON(name, percent string) string {
	return fmt.Sprintf(`{
		"name": %q,
		"profile_type": "CARRIER",
		"pay_basis": "PERCENTAGE",
		"rules": [
			{"name": "Linehaul share", "category": "BASE", "trigger": "PCT_OF_LOAD", "rate": %q},
			{"name": "Tarp", "category": "ACCESSORIAL", "trigger": "ATTR_TARP", "rate": "75"}
		]
	}`, name, percent)
}
