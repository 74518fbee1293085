package factory_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/freight-engine/factory"
	"github.com/warp/freight-engine/freight"
	"github.com/warp/freight-engine/generic"
)

func TestParseProfile_AppliesDefaults(t *testing.T) {
	doc := `{
		"name": "Regional",
		"profile_type": "driver",
		"rules": [
			{"name": "Loaded miles", "trigger": "mile_loaded", "rate": "0.58"},
			{"name": "Detention", "category": "accessorial", "trigger": "TIME_WAITING",
			 "rate": 25, "min_threshold": "2", "max_cap": "150", "is_active": false}
		]
	}`

	p, err := factory.NewProfileFactory().ParseProfile(doc)

	require.NoError(t, err)
	assert.Equal(t, freight.PayeeDriver, p.ProfileType)
	assert.Equal(t, freight.BasisMileage, p.PayBasis)
	assert.True(t, p.IsActive)
	assert.False(t, p.IsDefault)
	require.Len(t, p.Rules, 2)

	loaded := p.Rules[0]
	assert.Equal(t, freight.CategoryBase, loaded.Category)
	assert.Equal(t, freight.TriggerMileLoaded, loaded.Trigger)
	assert.Equal(t, "0.58", loaded.Rate.String())
	assert.True(t, loaded.IsActive)

	detention := p.Rules[1]
	assert.Equal(t, freight.CategoryAccessorial, detention.Category)
	assert.Equal(t, "25", detention.Rate.String(), "numbers are accepted too")
	require.NotNil(t, detention.MinThreshold)
	assert.Equal(t, "2", detention.MinThreshold.String())
	assert.Equal(t, "150", detention.MaxCap.String())
	assert.False(t, detention.IsActive)
}

func TestParseProfile_Rejects(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"missing name", `{"profile_type": "DRIVER", "rules": []}`},
		{"unknown profile type", `{"name": "X", "profile_type": "BROKER", "rules": []}`},
		{"unnamed rule", `{"name": "X", "profile_type": "DRIVER", "rules": [{"trigger": "MILE_LOADED", "rate": "1"}]}`},
		{"unknown trigger", `{"name": "X", "profile_type": "DRIVER", "rules": [{"name": "r", "trigger": "MILE_FLOWN", "rate": "1"}]}`},
		{"unknown category", `{"name": "X", "profile_type": "DRIVER", "rules": [{"name": "r", "category": "BONUS", "trigger": "MILE_LOADED", "rate": "1"}]}`},
		{"negative rate", `{"name": "X", "profile_type": "DRIVER", "rules": [{"name": "r", "trigger": "MILE_LOADED", "rate": "-1"}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := factory.NewProfileFactory().ParseProfile(tt.doc)
			require.Error(t, err)
			assert.True(t, generic.IsClientError(err))
		})
	}

	_, err := factory.NewProfileFactory().ParseProfile(`{not json`)
	assert.Error(t, err)
}

func TestToJSON_RoundTripsThroughFactory(t *testing.T) {
	f := factory.NewProfileFactory()
	original, err := f.ParseProfile(factory.CarrierPercentProfileJSON("Partner 88", "88"))
	require.NoError(t, err)
	original.ID = "prof-88"
	original.IsActive = false

	raw, err := json.Marshal(f.ToJSON(*original))
	require.NoError(t, err)
	again, err := f.ParseProfile(string(raw))
	require.NoError(t, err)

	assert.Equal(t, "prof-88", again.ID)
	assert.Equal(t, freight.PayeeCarrier, again.ProfileType)
	assert.Equal(t, freight.BasisPercentage, again.PayBasis)
	assert.False(t, again.IsActive, "explicit false survives")
	require.Len(t, again.Rules, len(original.Rules))
	for i := range original.Rules {
		assert.Equal(t, original.Rules[i].Trigger, again.Rules[i].Trigger)
		assert.True(t, original.Rules[i].Rate.Equal(again.Rules[i].Rate))
	}
}

func TestPresetProfilesParse(t *testing.T) {
	f := factory.NewProfileFactory()

	mileage, err := f.ParseProfile(factory.MileageProfileJSON("OTR", "0.62", "0.31"))
	require.NoError(t, err)
	assert.Len(t, mileage.Rules, 5)

	carrier, err := f.ParseProfile(factory.CarrierPercentProfileJSON("Partner", "85"))
	require.NoError(t, err)
	assert.Equal(t, freight.TriggerPctOfLoad, carrier.Rules[0].Trigger)
}
