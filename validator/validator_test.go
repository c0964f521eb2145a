package validator

import (
	"context"
	"testing"
	"time"

	"github.com/ahmadzakiakmal/insurance-ledger/chain"
	"github.com/ahmadzakiakmal/insurance-ledger/repository"
	"github.com/ahmadzakiakmal/insurance-ledger/repository/models"
	cmtlog "github.com/cometbft/cometbft/libs/log"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type signer struct{ ok bool }

func (s *signer) SignerAddress() (string, bool) {
	if !s.ok {
		return "", false
	}
	return "0x00000000000000000000000000000000000000aa", true
}

type fixture struct {
	repo      *repository.Repository
	validator *Validator
	signer    *signer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	journal, err := repository.OpenMemoryJournal(cmtlog.NewNopLogger())
	require.NoError(t, err)
	t.Cleanup(func() { journal.Close() })

	store, err := repository.OpenMemoryStore(cmtlog.NewNopLogger())
	require.NoError(t, err)
	t.Cleanup(func() { repository.CloseStore(store) })

	s := &signer{ok: true}
	sim := chain.NewFixedSimulator(time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), time.Second)
	repo := repository.NewRepository(store, journal, chain.NewFactory(sim), s, cmtlog.NewNopLogger())
	return &fixture{
		repo:      repo,
		validator: NewValidator(repo, s, sim, cmtlog.NewNopLogger()),
		signer:    s,
	}
}

func (f *fixture) addVehicle(t *testing.T, id string) {
	_, rerr := f.repo.AddVehicle(context.Background(), models.Vehicle{ID: id, VIN: "1HGC1234567890", OwnerID: "owner_1"})
	require.Nil(t, rerr)
}

func (f *fixture) addPolicy(t *testing.T, id, vehicleID, number string, status models.PolicyStatus) {
	_, rerr := f.repo.AddInsurancePolicy(context.Background(), models.InsurancePolicy{
		ID:             id,
		VehicleID:      vehicleID,
		OwnerID:        "owner_1",
		InsurerID:      "demo_insurer",
		PolicyNumber:   number,
		StartDate:      "2024-06-01",
		EndDate:        "2025-06-01",
		CoverageAmount: decimal.NewFromInt(50000),
		Premium:        decimal.NewFromInt(900),
		Status:         status,
		CoverageType:   []string{"Liability"},
	})
	require.Nil(t, rerr)
}

func TestValidateWithoutPolicy(t *testing.T) {
	f := newFixture(t)
	f.addVehicle(t, "vehicle_a")

	result := f.validator.Validate("vehicle_a")
	assert.False(t, result.Valid)
	assert.Equal(t, ErrNoValidPolicy, result.Error)
}

func TestValidateActivePolicy(t *testing.T) {
	f := newFixture(t)
	f.addVehicle(t, "vehicle_b")
	f.addPolicy(t, "policy_b", "vehicle_b", "POL-2024-0001", models.PolicyActive)

	result := f.validator.Validate("vehicle_b")
	assert.Equal(t, Result{Valid: true, PolicyNumber: "POL-2024-0001", CoverageAmount: "50000"}, result)

	// pure lookup
	assert.Equal(t, result, f.validator.Validate("vehicle_b"))
	assert.Len(t, f.repo.Policies(), 1)
}

func TestValidateIgnoresInactivePolicies(t *testing.T) {
	f := newFixture(t)
	f.addVehicle(t, "vehicle_c")
	f.addPolicy(t, "policy_c1", "vehicle_c", "POL-2023-0001", models.PolicyExpired)
	f.addPolicy(t, "policy_c2", "vehicle_c", "POL-2023-0002", models.PolicyCancelled)

	assert.False(t, f.validator.Validate("vehicle_c").Valid)

	info := f.validator.Lookup("vehicle_c")
	assert.True(t, info.Found)
	assert.False(t, info.IsActive)
	assert.Equal(t, "POL-2023-0001", info.PolicyNumber)
	assert.Equal(t, "2025-06-01", info.ExpiryDate)

	assert.False(t, f.validator.Lookup("vehicle_none").Found)
}

func TestValidateFirstMatchWins(t *testing.T) {
	f := newFixture(t)
	f.addVehicle(t, "vehicle_e")
	f.addPolicy(t, "policy_e1", "vehicle_e", "POL-2024-1111", models.PolicyActive)
	f.addPolicy(t, "policy_e2", "vehicle_e", "POL-2024-2222", models.PolicyActive)

	result := f.validator.Validate("vehicle_e")
	assert.True(t, result.Valid)
	assert.Equal(t, "POL-2024-1111", result.PolicyNumber)
}

func TestValidateWithoutSigner(t *testing.T) {
	f := newFixture(t)
	f.addVehicle(t, "vehicle_s")
	f.addPolicy(t, "policy_s", "vehicle_s", "POL-2024-3333", models.PolicyActive)
	f.signer.ok = false

	assert.Equal(t, Result{Valid: false, Error: ErrServiceUnavailable}, f.validator.Validate("vehicle_s"))
}
