package ledger

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToStroops(t *testing.T) {
	assert.Equal(t, "30000000000", ToStroops(decimal.NewFromInt(3000)))
	assert.Equal(t, "15000000", ToStroops(decimal.RequireFromString("1.5")))
	// digits beyond 1e-7 are dropped
	assert.Equal(t, "3333333333", ToStroops(decimal.RequireFromString("333.33333333333")))
	assert.Equal(t, "0", ToStroops(decimal.Zero))
}

func TestToImpactUnits(t *testing.T) {
	assert.Equal(t, "150000", ToImpactUnits(decimal.NewFromInt(1500)))
	assert.Equal(t, "1234", ToImpactUnits(decimal.RequireFromString("12.345")))
}

func TestFromStroops(t *testing.T) {
	d, err := FromStroops("125000000")
	require.NoError(t, err)
	assert.True(t, d.Equal(decimal.RequireFromString("12.5")))

	_, err = FromStroops("twelve")
	assert.Error(t, err)
}
