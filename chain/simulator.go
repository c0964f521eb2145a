package chain

import (
	"encoding/hex"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/sha3"
)

// Operation identifies an on-chain write for gas estimation
type Operation string

const (
	OpRegisterVehicle   Operation = "register_vehicle"
	OpRegisterInsurance Operation = "register_insurance"
	OpReportAccident    Operation = "report_accident"
	OpRepairVehicle     Operation = "repair_vehicle"
	OpApproveClaim      Operation = "approve_claim"
	OpValidateInsurance Operation = "validate_insurance"
)

// GasRange is a uniform range of simulated gas costs in ETH
type GasRange struct {
	Min decimal.Decimal
	Max decimal.Decimal
}

// DefaultGasRanges holds the simulated cost of every operation
var DefaultGasRanges = map[Operation]GasRange{
	OpRegisterVehicle:   {decimal.RequireFromString("0.0005"), decimal.RequireFromString("0.0015")},
	OpRegisterInsurance: {decimal.RequireFromString("0.001"), decimal.RequireFromString("0.003")},
	OpReportAccident:    {decimal.RequireFromString("0.001"), decimal.RequireFromString("0.004")},
	OpRepairVehicle:     {decimal.RequireFromString("0.0008"), decimal.RequireFromString("0.0025")},
	OpApproveClaim:      {decimal.RequireFromString("0.0003"), decimal.RequireFromString("0.0009")},
	OpValidateInsurance: {decimal.RequireFromString("0.0002"), decimal.RequireFromString("0.0007")},
}

// GasPrecision is the number of decimal places gas costs are reported with
const GasPrecision = 6

// Simulator produces every placeholder value of the simulated ledger.
// Swapping the implementation is how tests get deterministic numbers.
type Simulator interface {
	Now() time.Time
	BlockNumber() int64
	GasCost(op Operation) decimal.Decimal
	ReceiptHash() string
	ConfirmationDelay() time.Duration
	// Finalize reports whether a pending submission lands on chain.
	Finalize() bool
	PolicyNumber(at time.Time) string
}

// SimulatorConfig configures a RandomSimulator
type SimulatorConfig struct {
	MinConfirmDelay time.Duration
	MaxConfirmDelay time.Duration
	FailureRate     float64
	Seed            int64
}

// DefaultSimulatorConfig returns the delays of a typical demo chain
func DefaultSimulatorConfig() SimulatorConfig {
	return SimulatorConfig{
		MinConfirmDelay: 3 * time.Second,
		MaxConfirmDelay: 5 * time.Second,
		FailureRate:     0,
		Seed:            time.Now().UnixNano(),
	}
}

// RandomSimulator draws all values from a seeded pseudo-random source
type RandomSimulator struct {
	mu     sync.Mutex
	rnd    *rand.Rand
	config SimulatorConfig
	ranges map[Operation]GasRange
}

// NewRandomSimulator creates a simulator from config
func NewRandomSimulator(config SimulatorConfig) *RandomSimulator {
	if config.MaxConfirmDelay < config.MinConfirmDelay {
		config.MaxConfirmDelay = config.MinConfirmDelay
	}
	return &RandomSimulator{
		rnd:    rand.New(rand.NewSource(config.Seed)),
		config: config,
		ranges: DefaultGasRanges,
	}
}

func (s *RandomSimulator) Now() time.Time {
	return time.Now().UTC()
}

// BlockNumber returns a block number in [1, 1000]
func (s *RandomSimulator) BlockNumber() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rnd.Int63n(1000) + 1
}

// GasCost returns a cost drawn uniformly from the operation's range
func (s *RandomSimulator) GasCost(op Operation) decimal.Decimal {
	r, ok := s.ranges[op]
	if !ok {
		return decimal.Zero
	}
	s.mu.Lock()
	f := s.rnd.Float64()
	s.mu.Unlock()

	span := r.Max.Sub(r.Min)
	return r.Min.Add(span.Mul(decimal.NewFromFloat(f))).Round(GasPrecision)
}

// ReceiptHash returns an Ethereum shaped transaction hash (0x + 64 hex)
func (s *RandomSimulator) ReceiptHash() string {
	s.mu.Lock()
	nonce := s.rnd.Int63()
	s.mu.Unlock()

	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(uuid.New().String()))
	h.Write([]byte(fmt.Sprintf("%d", nonce)))
	return "0x" + hex.EncodeToString(h.Sum(nil))
}

// ConfirmationDelay returns a delay in [MinConfirmDelay, MaxConfirmDelay)
func (s *RandomSimulator) ConfirmationDelay() time.Duration {
	span := s.config.MaxConfirmDelay - s.config.MinConfirmDelay
	if span <= 0 {
		return s.config.MinConfirmDelay
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.config.MinConfirmDelay + time.Duration(s.rnd.Int63n(int64(span)))
}

func (s *RandomSimulator) Finalize() bool {
	if s.config.FailureRate <= 0 {
		return true
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rnd.Float64() >= s.config.FailureRate
}

// PolicyNumber returns a number in the form POL-<year>-<NNNN>
func (s *RandomSimulator) PolicyNumber(at time.Time) string {
	s.mu.Lock()
	n := s.rnd.Intn(10000)
	s.mu.Unlock()
	return fmt.Sprintf("POL-%d-%04d", at.Year(), n)
}

var policyGasBase = decimal.RequireFromString("0.002")
var policyGasPerUnit = decimal.RequireFromString("0.001")
var policyGasUnit = decimal.NewFromInt(100000)

// EstimatePolicyGas returns the quoted gas for a policy of the given coverage:
// 0.002 + coverage/100000 * 0.001, reported with six decimals.
func EstimatePolicyGas(coverage decimal.Decimal) decimal.Decimal {
	return policyGasBase.Add(coverage.Div(policyGasUnit).Mul(policyGasPerUnit)).Round(GasPrecision)
}
