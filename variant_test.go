package debias

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVariantString(t *testing.T) {
	assert.Equal(t, "demographic_parity", DemographicParity.String())
	assert.Equal(t, "equalized_odds", EqualizedOdds.String())
	assert.Equal(t, "Variant(0)", Variant(0).String())
}

func TestVariantInputs(t *testing.T) {
	assert.Equal(t, 1, DemographicParity.inputs())
	assert.Equal(t, 3, EqualizedOdds.inputs())
}

func TestVariantText(t *testing.T) {
	var v Variant
	require.NoError(t, v.UnmarshalText([]byte("equalized_odds")))
	assert.Equal(t, EqualizedOdds, v)

	err := v.UnmarshalText([]byte("parity"))
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = Variant(9).MarshalText()
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestVariantJSON(t *testing.T) {
	type wrapper struct {
		V Variant `json:"v"`
	}
	data, err := json.Marshal(wrapper{V: DemographicParity})
	require.NoError(t, err)
	assert.JSONEq(t, `{"v":"demographic_parity"}`, string(data))

	var w wrapper
	require.NoError(t, json.Unmarshal([]byte(`{"v":"equalized_odds"}`), &w))
	assert.Equal(t, EqualizedOdds, w.V)

	assert.ErrorIs(t, json.Unmarshal([]byte(`{"v":2}`), &w), ErrInvalidConfig)
}
