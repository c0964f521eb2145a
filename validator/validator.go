package validator

import (
	"github.com/ahmadzakiakmal/insurance-ledger/chain"
	"github.com/ahmadzakiakmal/insurance-ledger/repository"
	"github.com/ahmadzakiakmal/insurance-ledger/repository/models"
	cmtlog "github.com/cometbft/cometbft/libs/log"
)

const (
	ErrServiceUnavailable = "service unavailable"
	ErrNoValidPolicy      = "no valid policy found"
)

// PolicySource lists policies in insertion order
type PolicySource interface {
	Policies() []models.InsurancePolicy
}

// Result is the outcome of an insurance validation
type Result struct {
	Valid          bool   `json:"valid"`
	PolicyNumber   string `json:"policy_number,omitempty"`
	CoverageAmount string `json:"coverage_amount,omitempty"`
	Error          string `json:"error,omitempty"`
}

// PolicyInfo mirrors the contract's getInsurancePolicy view
type PolicyInfo struct {
	Found          bool   `json:"found"`
	PolicyNumber   string `json:"policy_number,omitempty"`
	CoverageAmount string `json:"coverage_amount,omitempty"`
	IsActive       bool   `json:"is_active"`
	ExpiryDate     string `json:"expiry_date,omitempty"`
}

// Validator answers whether a vehicle is currently insured
type Validator struct {
	policies PolicySource
	signer   repository.SigningContext
	sim      chain.Simulator
	logger   cmtlog.Logger
}

func NewValidator(policies PolicySource, signer repository.SigningContext, sim chain.Simulator, logger cmtlog.Logger) *Validator {
	return &Validator{
		policies: policies,
		signer:   signer,
		sim:      sim,
		logger:   logger.With("module", "validator"),
	}
}

// Validate returns the first Active policy of the vehicle in insertion order.
// It never mutates state.
func (v *Validator) Validate(vehicleID string) Result {
	if _, ok := v.signer.SignerAddress(); !ok {
		return Result{Valid: false, Error: ErrServiceUnavailable}
	}

	for _, p := range v.policies.Policies() {
		if p.VehicleID == vehicleID && p.Status == models.PolicyActive {
			v.logger.Info("Insurance validated", "vehicle_id", vehicleID, "policy", p.PolicyNumber, "gas", v.sim.GasCost(chain.OpValidateInsurance).String())
			return Result{
				Valid:          true,
				PolicyNumber:   p.PolicyNumber,
				CoverageAmount: p.CoverageAmount.String(),
			}
		}
	}

	v.logger.Info("No valid policy", "vehicle_id", vehicleID)
	return Result{Valid: false, Error: ErrNoValidPolicy}
}

// Lookup returns the first policy recorded for the vehicle regardless of status
func (v *Validator) Lookup(vehicleID string) PolicyInfo {
	for _, p := range v.policies.Policies() {
		if p.VehicleID == vehicleID {
			return PolicyInfo{
				Found:          true,
				PolicyNumber:   p.PolicyNumber,
				CoverageAmount: p.CoverageAmount.String(),
				IsActive:       p.Status == models.PolicyActive,
				ExpiryDate:     p.EndDate,
			}
		}
	}
	return PolicyInfo{}
}
