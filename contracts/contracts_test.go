package contracts

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	all, err := Load()
	require.NoError(t, err)
	require.Len(t, all, 2)

	insurance := all[0]
	assert.Equal(t, InsuranceContractAddress, insurance.Address)
	for _, name := range []string{"registerInsurance", "validateInsurance", "reportAccident", "getInsurancePolicy", "getAccidentReport"} {
		_, ok := insurance.Function(name)
		assert.True(t, ok, name)
	}

	validate, _ := insurance.Function("validateInsurance")
	assert.Equal(t, "view", validate.StateMutability)
	require.Len(t, validate.Outputs, 3)
	assert.Equal(t, "isValid", validate.Outputs[0].Name)

	registry := all[1]
	_, ok := registry.Function("registerVehicle")
	assert.True(t, ok)
	_, ok = registry.Function("getVehicle")
	assert.True(t, ok)
	_, ok = registry.Function("burn")
	assert.False(t, ok)
}
