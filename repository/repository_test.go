package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ahmadzakiakmal/insurance-ledger/chain"
	"github.com/ahmadzakiakmal/insurance-ledger/repository/models"
	cmtlog "github.com/cometbft/cometbft/libs/log"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSigner struct {
	address string
}

func (s *stubSigner) SignerAddress() (string, bool) {
	return s.address, s.address != ""
}

type recordingScheduler struct {
	mu  sync.Mutex
	ids []string
}

func (s *recordingScheduler) Schedule(txID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ids = append(s.ids, txID)
}

func newTestRepository(t *testing.T, signer *stubSigner) *Repository {
	t.Helper()
	journal, err := OpenMemoryJournal(cmtlog.NewNopLogger())
	require.NoError(t, err)
	t.Cleanup(func() { journal.Close() })

	store, err := OpenMemoryStore(cmtlog.NewNopLogger())
	require.NoError(t, err)
	t.Cleanup(func() { CloseStore(store) })

	sim := chain.NewFixedSimulator(time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC), time.Second)
	return NewRepository(store, journal, chain.NewFactory(sim), signer, cmtlog.NewNopLogger())
}

func connected() *stubSigner {
	return &stubSigner{address: "0x1234567890abcdef1234567890abcdef12345678"}
}

func testVehicle(id, owner string) models.Vehicle {
	return models.Vehicle{ID: id, VIN: "VIN-" + id, Make: "Toyota", Model: "Corolla", Year: 2020, OwnerID: owner, RegistrationNumber: "B 1234 XY"}
}

func testPolicy(id, vehicleID string, status models.PolicyStatus) models.InsurancePolicy {
	return models.InsurancePolicy{
		ID:             id,
		VehicleID:      vehicleID,
		OwnerID:        "owner_1",
		InsurerID:      "demo_insurer",
		PolicyNumber:   "POL-2024-" + id,
		StartDate:      "2024-05-01",
		EndDate:        "2025-05-01",
		CoverageAmount: decimal.NewFromInt(50000),
		Premium:        decimal.NewFromInt(1200),
		Status:         status,
		CoverageType:   []string{"Liability"},
	}
}

func TestSeedAndParticipantDedup(t *testing.T) {
	repo := newTestRepository(t, connected())
	repo.Seed()
	repo.Seed()

	participants := repo.Participants()
	require.Len(t, participants, 3)
	assert.Equal(t, models.RoleAdmin, participants[0].Role)
	assert.Equal(t, "Demo Insurance Company", participants[1].Name)
	assert.Equal(t, models.RoleClaimChecker, participants[2].Role)

	existing, added := repo.AddParticipant(models.Participant{ID: "other", PublicKey: "admin_key"})
	assert.False(t, added)
	assert.Equal(t, "admin", existing.ID)
}

func TestAddVehicleRequiresSigner(t *testing.T) {
	repo := newTestRepository(t, &stubSigner{})

	receipt, rerr := repo.AddVehicle(context.Background(), testVehicle("vehicle_1", "owner_1"))
	require.NotNil(t, rerr)
	assert.Nil(t, receipt)
	assert.Equal(t, CodeSignerUnavailable, rerr.Code)
	assert.Equal(t, "Blockchain service not available", rerr.Message)
	assert.Empty(t, repo.Vehicles())
}

func TestAddVehicleReceipt(t *testing.T) {
	repo := newTestRepository(t, connected())

	receipt, rerr := repo.AddVehicle(context.Background(), testVehicle("vehicle_1", "owner_1"))
	require.Nil(t, rerr)
	assert.Regexp(t, `^0x[0-9a-f]{64}$`, receipt.TransactionHash)
	assert.Equal(t, "0.001", receipt.GasCost.String())
	assert.Len(t, repo.Vehicles(), 1)

	_, rerr = repo.AddVehicle(context.Background(), testVehicle("vehicle_1", "owner_2"))
	require.NotNil(t, rerr)
	assert.Equal(t, CodeDuplicateID, rerr.Code)
	assert.Len(t, repo.Vehicles(), 1)
}

func TestAddVehicleCancelledContext(t *testing.T) {
	repo := newTestRepository(t, connected())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, rerr := repo.AddVehicle(ctx, testVehicle("vehicle_1", "owner_1"))
	require.NotNil(t, rerr)
	assert.Equal(t, CodeCancelled, rerr.Code)
}

func TestAddInsurancePolicyLinksVehicle(t *testing.T) {
	repo := newTestRepository(t, connected())
	ctx := context.Background()

	_, rerr := repo.AddInsurancePolicy(ctx, testPolicy("policy_0", "missing", models.PolicyActive))
	require.NotNil(t, rerr)
	assert.Equal(t, CodeNotFound, rerr.Code)

	_, rerr = repo.AddVehicle(ctx, testVehicle("vehicle_1", "owner_1"))
	require.Nil(t, rerr)

	_, rerr = repo.AddInsurancePolicy(ctx, testPolicy("policy_x", "vehicle_1", models.PolicyExpired))
	require.Nil(t, rerr)
	v, _ := repo.GetVehicle("vehicle_1")
	assert.Empty(t, v.CurrentInsurancePolicyID)

	_, rerr = repo.AddInsurancePolicy(ctx, testPolicy("policy_1", "vehicle_1", models.PolicyActive))
	require.Nil(t, rerr)
	_, rerr = repo.AddInsurancePolicy(ctx, testPolicy("policy_2", "vehicle_1", models.PolicyActive))
	require.Nil(t, rerr)

	v, _ = repo.GetVehicle("vehicle_1")
	assert.Equal(t, "policy_1", v.CurrentInsurancePolicyID)
	assert.Len(t, repo.Policies(), 3)
}

func TestAddInsurancePolicyDuplicateKeepsVehicle(t *testing.T) {
	repo := newTestRepository(t, connected())
	ctx := context.Background()

	_, rerr := repo.AddVehicle(ctx, testVehicle("vehicle_1", "owner_1"))
	require.Nil(t, rerr)
	_, rerr = repo.AddInsurancePolicy(ctx, testPolicy("policy_1", "vehicle_1", models.PolicyExpired))
	require.Nil(t, rerr)

	_, rerr = repo.AddInsurancePolicy(ctx, testPolicy("policy_1", "vehicle_1", models.PolicyActive))
	require.NotNil(t, rerr)
	assert.Equal(t, CodeDuplicateID, rerr.Code)

	v, ok := repo.GetVehicle("vehicle_1")
	require.True(t, ok)
	assert.Empty(t, v.CurrentInsurancePolicyID)

	policies := repo.Policies()
	require.Len(t, policies, 1)
	assert.Equal(t, models.PolicyExpired, policies[0].Status)
	assert.True(t, decimal.NewFromInt(50000).Equal(policies[0].CoverageAmount))
	assert.Equal(t, []string{"Liability"}, policies[0].CoverageType)
}

func TestStoreIsolatedPerRepository(t *testing.T) {
	first := newTestRepository(t, connected())
	second := newTestRepository(t, connected())

	_, rerr := first.AddVehicle(context.Background(), testVehicle("vehicle_1", "owner_1"))
	require.Nil(t, rerr)
	assert.Len(t, first.Vehicles(), 1)
	assert.Empty(t, second.Vehicles())
}

func TestAddAccidentReportValidation(t *testing.T) {
	repo := newTestRepository(t, connected())

	_, rerr := repo.AddAccidentReport(context.Background(), models.AccidentReport{ID: "accident_1"})
	require.NotNil(t, rerr)
	assert.Equal(t, CodeValidationFailed, rerr.Code)
	assert.Empty(t, repo.AccidentReports())

	_, rerr = repo.AddAccidentReport(context.Background(), models.AccidentReport{
		ID:         "accident_1",
		VehicleID:  "vehicle_1",
		ReporterID: "police_1",
		Severity:   models.SeverityMinor,
		Witnesses:  []string{"w1"},
		Status:     models.AccidentReported,
	})
	require.Nil(t, rerr)

	reports := repo.AccidentReports()
	require.Len(t, reports, 1)
	reports[0].Witnesses[0] = "mutated"
	stored, _ := repo.GetAccidentReport("accident_1")
	assert.Equal(t, "w1", stored.Witnesses[0])
}

func TestRepairApprovalFlow(t *testing.T) {
	repo := newTestRepository(t, connected())
	ctx := context.Background()

	_, rerr := repo.AddRepairRecord(ctx, models.RepairRecord{ID: "repair_1", AccidentReportID: "accident_1"})
	require.NotNil(t, rerr)
	assert.Equal(t, CodeNotFound, rerr.Code)

	_, rerr = repo.AddAccidentReport(ctx, models.AccidentReport{ID: "accident_1", VehicleID: "vehicle_1", ReporterID: "police_1"})
	require.Nil(t, rerr)

	shopApproval := models.Approval{ApproverID: "shop_1", ApproverRole: models.RoleRepairShop, Status: models.ApprovalApproved, Signature: chain.GenerateSignature("repair_1", "shop_key")}
	_, rerr = repo.AddRepairRecord(ctx, models.RepairRecord{
		ID:               "repair_1",
		VehicleID:        "vehicle_1",
		AccidentReportID: "accident_1",
		RepairShopID:     "shop_1",
		EstimatedCost:    decimal.NewFromInt(2500),
		Status:           models.RepairEstimated,
		Approvals:        []models.Approval{shopApproval},
	})
	require.Nil(t, rerr)

	_, _, rerr = repo.ApproveRepair(ctx, "repair_1", shopApproval, 2)
	require.NotNil(t, rerr)
	assert.Equal(t, CodeDuplicateID, rerr.Code)

	rejection := models.Approval{ApproverID: "owner_1", ApproverRole: models.RoleVehicleOwner, Status: models.ApprovalRejected, Signature: chain.GenerateSignature("repair_1reject", "owner_key")}
	rec, _, rerr := repo.ApproveRepair(ctx, "repair_1", rejection, 2)
	require.Nil(t, rerr)
	assert.Equal(t, models.RepairEstimated, rec.Status)

	// a second decision by the same approver is refused either way
	_, _, rerr = repo.ApproveRepair(ctx, "repair_1", rejection, 2)
	require.NotNil(t, rerr)
	assert.Equal(t, CodeDuplicateID, rerr.Code)
	changedMind := rejection
	changedMind.Status = models.ApprovalApproved
	_, _, rerr = repo.ApproveRepair(ctx, "repair_1", changedMind, 2)
	require.NotNil(t, rerr)
	assert.Equal(t, CodeDuplicateID, rerr.Code)

	stored, ok := repo.GetRepairRecord("repair_1")
	require.True(t, ok)
	assert.Len(t, stored.Approvals, 2)

	rec, receipt, rerr := repo.ApproveRepair(ctx, "repair_1", models.Approval{
		ApproverID:   "demo_insurer",
		ApproverRole: models.RoleInsurer,
		Status:       models.ApprovalApproved,
		Signature:    chain.GenerateSignature("repair_1", "demo_insurer_key"),
	}, 2)
	require.Nil(t, rerr)
	require.NotNil(t, receipt)
	assert.Equal(t, models.RepairApproved, rec.Status)
	assert.Len(t, rec.Approvals, 3)
	assert.Equal(t, "2500", rec.EstimatedCost.String())

	_, _, rerr = repo.ApproveRepair(ctx, "repair_missing", shopApproval, 2)
	require.NotNil(t, rerr)
	assert.Equal(t, CodeNotFound, rerr.Code)
}

func TestTransactionLifecycle(t *testing.T) {
	repo := newTestRepository(t, connected())
	scheduler := &recordingScheduler{}
	repo.SetupScheduler(scheduler)

	events, cancel := repo.Subscribe()
	defer cancel()

	tx := repo.Factory().NewTransaction(models.TxRegisterVehicle, "owner_1", map[string]string{"vin": "V1"})
	require.Nil(t, repo.AddTransaction(tx))
	assert.Equal(t, []string{tx.ID}, scheduler.ids)

	event := <-events
	assert.Equal(t, tx.ID, event.TransactionID)
	assert.Equal(t, models.TxPending, event.Status)

	rerr := repo.AddTransaction(tx)
	require.NotNil(t, rerr)
	assert.Equal(t, CodeDuplicateID, rerr.Code)

	rerr = repo.UpdateTransactionStatus(tx.ID, models.TxPending)
	require.NotNil(t, rerr)
	assert.Equal(t, CodeInvalidTransition, rerr.Code)

	require.Nil(t, repo.UpdateTransactionStatus(tx.ID, models.TxConfirmed))
	event = <-events
	assert.Equal(t, models.TxConfirmed, event.Status)

	rerr = repo.UpdateTransactionStatus(tx.ID, models.TxFailed)
	require.NotNil(t, rerr)
	assert.Equal(t, CodeInvalidTransition, rerr.Code)

	stored, rerr := repo.GetTransaction(tx.ID)
	require.Nil(t, rerr)
	assert.Equal(t, models.TxConfirmed, stored.Status)

	rerr = repo.UpdateTransactionStatus("tx_missing", models.TxConfirmed)
	require.NotNil(t, rerr)
	assert.Equal(t, CodeNotFound, rerr.Code)
}

func TestTransactionsForNewestFirst(t *testing.T) {
	repo := newTestRepository(t, connected())
	factory := repo.Factory()

	first := factory.NewTransaction(models.TxRegisterVehicle, "owner_1", "a")
	second := factory.NewTransaction(models.TxReportAccident, "police_1", "b", "owner_1")
	third := factory.NewTransaction(models.TxRegisterInsurance, "demo_insurer", "c")
	for _, tx := range []models.Transaction{first, second, third} {
		require.Nil(t, repo.AddTransaction(tx))
	}

	txs, rerr := repo.TransactionsFor("owner_1")
	require.Nil(t, rerr)
	require.Len(t, txs, 2)
	assert.Equal(t, second.ID, txs[0].ID)
	assert.Equal(t, first.ID, txs[1].ID)

	all, rerr := repo.Transactions()
	require.Nil(t, rerr)
	assert.Len(t, all, 3)
	assert.Equal(t, first.ID, all[0].ID)
}

func TestScopedViewsAndOverview(t *testing.T) {
	repo := newTestRepository(t, connected())
	ctx := context.Background()

	_, _ = repo.AddVehicle(ctx, testVehicle("vehicle_1", "owner_1"))
	_, _ = repo.AddVehicle(ctx, testVehicle("vehicle_2", "owner_2"))
	p := testPolicy("policy_1", "vehicle_1", models.PolicyActive)
	_, _ = repo.AddInsurancePolicy(ctx, p)
	_, _ = repo.AddAccidentReport(ctx, models.AccidentReport{ID: "accident_1", VehicleID: "vehicle_1", ReporterID: "police_1"})
	_, _ = repo.AddAccidentReport(ctx, models.AccidentReport{ID: "accident_2", VehicleID: "vehicle_2", ReporterID: "police_2"})
	_, _ = repo.AddRepairRecord(ctx, models.RepairRecord{ID: "repair_1", VehicleID: "vehicle_1", AccidentReportID: "accident_1", RepairShopID: "shop_1"})
	tx := repo.Factory().NewTransaction(models.TxRegisterVehicle, "owner_1", "v")
	require.Nil(t, repo.AddTransaction(tx))

	assert.Len(t, repo.PoliciesFor(PolicyScopeOwned, "owner_1"), 1)
	assert.Len(t, repo.PoliciesFor(PolicyScopeOwned, "owner_2"), 0)
	assert.Len(t, repo.PoliciesFor(PolicyScopeInsured, "demo_insurer"), 1)
	assert.Len(t, repo.PoliciesFor(PolicyScopeAll, "anyone"), 1)

	assert.Len(t, repo.AccidentReportsFor(AccidentScopeReported, "police_1"), 1)
	assert.Len(t, repo.AccidentReportsFor(AccidentScopeOwnedVehicles, "owner_2"), 1)
	assert.Len(t, repo.AccidentReportsFor(AccidentScopeAll, "anyone"), 2)

	assert.Len(t, repo.RepairRecordsFor(RepairScopeServiced, "shop_1"), 1)
	assert.Len(t, repo.RepairRecordsFor(RepairScopeOwnedVehicles, "owner_2"), 0)
	assert.Len(t, repo.RepairRecordsFor(RepairScopeOwnedVehicles, "owner_1"), 1)

	overview, rerr := repo.Overview("owner_1")
	require.Nil(t, rerr)
	assert.Equal(t, models.Overview{Vehicles: 1, Policies: 1, AccidentReports: 0, RepairRecords: 0, Transactions: 1}, overview)

	overview, rerr = repo.Overview("shop_1")
	require.Nil(t, rerr)
	assert.Equal(t, 1, overview.RepairRecords)
}
