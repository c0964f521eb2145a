package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/ahmadzakiakmal/insurance-ledger/chain"
	"github.com/ahmadzakiakmal/insurance-ledger/repository/models"
	cmtlog "github.com/cometbft/cometbft/libs/log"
	"gorm.io/gorm"
)

// Error codes returned in RepositoryError.Code
const (
	CodeSignerUnavailable = "SIGNER_UNAVAILABLE"
	CodeNotFound          = "NOT_FOUND"
	CodeDuplicateID       = "DUPLICATE_ID"
	CodeValidationFailed  = "VALIDATION_FAILED"
	CodeInvalidTransition = "INVALID_TRANSITION"
	CodeJournalError      = "JOURNAL_ERROR"
	CodeCancelled         = "CANCELLED"
	CodeDatabaseError     = "DATABASE_ERROR"
)

// RepositoryError represents repository layer errors
type RepositoryError struct {
	Code    string
	Message string
	Detail  string
}

func (e *RepositoryError) Error() string {
	return fmt.Sprintf("%s: %s - %s", e.Code, e.Message, e.Detail)
}

// SigningContext is the connected wallet. Writes that reach the chain are
// refused while no signer is available.
type SigningContext interface {
	SignerAddress() (string, bool)
}

// Scheduler arranges for a pending transaction to be finalized later
type Scheduler interface {
	Schedule(txID string)
}

// Repository is the ledger store. Entities live in a gorm database and
// transactions in the badger journal.
type Repository struct {
	db        *gorm.DB
	journal   *Journal
	factory   *chain.Factory
	signer    SigningContext
	scheduler Scheduler
	logger    cmtlog.Logger

	subMu       sync.Mutex
	subscribers map[int]chan models.TransactionEvent
	nextSub     int
}

// NewRepository creates a new repository instance
func NewRepository(db *gorm.DB, journal *Journal, factory *chain.Factory, signer SigningContext, logger cmtlog.Logger) *Repository {
	return &Repository{
		db:          db,
		journal:     journal,
		factory:     factory,
		signer:      signer,
		logger:      logger.With("module", "repository"),
		subscribers: make(map[int]chan models.TransactionEvent),
	}
}

// SetupScheduler sets the component that confirms pending transactions
func (r *Repository) SetupScheduler(scheduler Scheduler) {
	r.scheduler = scheduler
}

// Factory returns the transaction factory used by the store
func (r *Repository) Factory() *chain.Factory {
	return r.factory
}

// Seed registers the demo participants
func (r *Repository) Seed() {
	seed := []models.Participant{
		{ID: "admin", Name: "System Administrator", Role: models.RoleAdmin, Organization: "System", PublicKey: "admin_key", IsActive: true},
		{ID: "demo_insurer", Name: "Demo Insurance Company", Role: models.RoleInsurer, Organization: "Demo Insurance Ltd", PublicKey: "demo_insurer_key", IsActive: true},
		{ID: "demo_checker", Name: "Demo Claim Checker", Role: models.RoleClaimChecker, Organization: "Demo Insurance Ltd", PublicKey: "demo_checker_key", IsActive: true},
	}
	for _, p := range seed {
		r.AddParticipant(p)
	}
	r.logger.Info("Seeded participants", "count", len(seed))
}

// AddParticipant registers a participant. A participant with the same public
// key is returned unchanged instead of being added twice.
func (r *Repository) AddParticipant(p models.Participant) (models.Participant, bool) {
	stored := p
	added := false
	err := r.db.Transaction(func(tx *gorm.DB) error {
		var existing models.Participant
		err := tx.Where("public_key = ?", p.PublicKey).First(&existing).Error
		if err == nil {
			stored = existing
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if err := tx.Create(&p).Error; err != nil {
			return err
		}
		added = true
		return nil
	})
	if err != nil {
		r.logger.Error("Failed to store participant", "participant_id", p.ID, "err", err)
		return p, false
	}
	return stored, added
}

// receipt checks for a signer and draws a receipt for op
func (r *Repository) receipt(ctx context.Context, op chain.Operation) (*models.Receipt, *RepositoryError) {
	if err := ctx.Err(); err != nil {
		return nil, &RepositoryError{
			Code:    CodeCancelled,
			Message: "Request cancelled",
			Detail:  err.Error(),
		}
	}
	if _, ok := r.signer.SignerAddress(); !ok {
		return nil, &RepositoryError{
			Code:    CodeSignerUnavailable,
			Message: "Blockchain service not available",
			Detail:  "connect a wallet to submit transactions",
		}
	}

	sim := r.factory.Simulator()
	return &models.Receipt{
		TransactionHash: sim.ReceiptHash(),
		GasCost:         sim.GasCost(op),
	}, nil
}

func requireID(kind, id string) *RepositoryError {
	if id == "" {
		return &RepositoryError{
			Code:    CodeValidationFailed,
			Message: fmt.Sprintf("Invalid %s", kind),
			Detail:  fmt.Sprintf("%s id is required", kind),
		}
	}
	return nil
}

func duplicate(kind, id string) *RepositoryError {
	return &RepositoryError{
		Code:    CodeDuplicateID,
		Message: fmt.Sprintf("Duplicate %s", kind),
		Detail:  fmt.Sprintf("%s %s already exists", kind, id),
	}
}

func notFound(kind, id string) *RepositoryError {
	return &RepositoryError{
		Code:    CodeNotFound,
		Message: fmt.Sprintf("%s not found", kind),
		Detail:  fmt.Sprintf("%s %s does not exist", kind, id),
	}
}

// storeError keeps a RepositoryError raised inside a transaction and wraps
// anything else as a database failure
func storeError(err error, message string) *RepositoryError {
	if err == nil {
		return nil
	}
	var rerr *RepositoryError
	if errors.As(err, &rerr) {
		return rerr
	}
	return &RepositoryError{
		Code:    CodeDatabaseError,
		Message: message,
		Detail:  err.Error(),
	}
}

// insertNew creates record unless a row with the same id exists
func insertNew(tx *gorm.DB, kind, id string, record interface{}) error {
	var count int64
	if err := tx.Model(record).Where("id = ?", id).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return duplicate(kind, id)
	}
	return tx.Create(record).Error
}

// firstByID loads one row, mapping a missing row to CodeNotFound
func firstByID(tx *gorm.DB, kind, id string, dest interface{}) error {
	if err := tx.Where("id = ?", id).First(dest).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return notFound(kind, id)
		}
		return err
	}
	return nil
}

// AddVehicle registers a vehicle on the simulated chain
func (r *Repository) AddVehicle(ctx context.Context, v models.Vehicle) (*models.Receipt, *RepositoryError) {
	if err := requireID("Vehicle", v.ID); err != nil {
		return nil, err
	}
	receipt, rerr := r.receipt(ctx, chain.OpRegisterVehicle)
	if rerr != nil {
		return nil, rerr
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return insertNew(tx, "Vehicle", v.ID, &v)
	})
	if rerr := storeError(err, "Failed to register vehicle"); rerr != nil {
		return nil, rerr
	}

	r.logger.Info("Vehicle registered", "vehicle_id", v.ID, "tx_hash", receipt.TransactionHash, "gas", receipt.GasCost.String())
	return receipt, nil
}

// AddInsurancePolicy issues a policy. The insured vehicle must exist and an
// Active policy is linked to the vehicle when it has none yet. Both rows
// change in one database transaction.
func (r *Repository) AddInsurancePolicy(ctx context.Context, p models.InsurancePolicy) (*models.Receipt, *RepositoryError) {
	if err := requireID("Policy", p.ID); err != nil {
		return nil, err
	}
	receipt, rerr := r.receipt(ctx, chain.OpRegisterInsurance)
	if rerr != nil {
		return nil, rerr
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var vehicle models.Vehicle
		if err := firstByID(tx, "Vehicle", p.VehicleID, &vehicle); err != nil {
			return err
		}
		if err := insertNew(tx, "Policy", p.ID, &p); err != nil {
			return err
		}
		if p.Status != models.PolicyActive || vehicle.CurrentInsurancePolicyID != "" {
			return nil
		}
		return tx.Model(&models.Vehicle{}).
			Where("id = ?", vehicle.ID).
			Update("current_insurance_policy_id", p.ID).Error
	})
	if rerr := storeError(err, "Failed to register insurance policy"); rerr != nil {
		return nil, rerr
	}

	r.logger.Info("Insurance policy registered", "policy_id", p.ID, "vehicle_id", p.VehicleID, "tx_hash", receipt.TransactionHash, "gas", receipt.GasCost.String())
	return receipt, nil
}

// AddAccidentReport records an accident
func (r *Repository) AddAccidentReport(ctx context.Context, a models.AccidentReport) (*models.Receipt, *RepositoryError) {
	if err := requireID("Accident report", a.ID); err != nil {
		return nil, err
	}
	if err := requireID("Vehicle", a.VehicleID); err != nil {
		return nil, err
	}
	receipt, rerr := r.receipt(ctx, chain.OpReportAccident)
	if rerr != nil {
		return nil, rerr
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return insertNew(tx, "Accident report", a.ID, &a)
	})
	if rerr := storeError(err, "Failed to register accident report"); rerr != nil {
		return nil, rerr
	}

	r.logger.Info("Accident report registered", "report_id", a.ID, "vehicle_id", a.VehicleID, "tx_hash", receipt.TransactionHash, "gas", receipt.GasCost.String())
	return receipt, nil
}

// AddRepairRecord records a repair estimate for a reported accident
func (r *Repository) AddRepairRecord(ctx context.Context, rec models.RepairRecord) (*models.Receipt, *RepositoryError) {
	if err := requireID("Repair record", rec.ID); err != nil {
		return nil, err
	}
	receipt, rerr := r.receipt(ctx, chain.OpRepairVehicle)
	if rerr != nil {
		return nil, rerr
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var accident models.AccidentReport
		if err := firstByID(tx, "Accident report", rec.AccidentReportID, &accident); err != nil {
			return err
		}
		return insertNew(tx, "Repair record", rec.ID, &rec)
	})
	if rerr := storeError(err, "Failed to register repair record"); rerr != nil {
		return nil, rerr
	}

	r.logger.Info("Repair record registered", "repair_id", rec.ID, "accident_id", rec.AccidentReportID, "tx_hash", receipt.TransactionHash, "gas", receipt.GasCost.String())
	return receipt, nil
}

// ApproveRepair appends an approval to a repair record. Each approver decides
// once, approve or reject. The record moves from Estimated to Approved once
// required signed approvals are present.
func (r *Repository) ApproveRepair(ctx context.Context, repairID string, approval models.Approval, required int) (*models.RepairRecord, *models.Receipt, *RepositoryError) {
	receipt, rerr := r.receipt(ctx, chain.OpApproveClaim)
	if rerr != nil {
		return nil, nil, rerr
	}

	var rec models.RepairRecord
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := firstByID(tx, "Repair record", repairID, &rec); err != nil {
			return err
		}
		for _, existing := range rec.Approvals {
			if existing.ApproverID == approval.ApproverID {
				return &RepositoryError{
					Code:    CodeDuplicateID,
					Message: "Decision already recorded",
					Detail:  fmt.Sprintf("%s already %s %s", approval.ApproverID, strings.ToLower(string(existing.Status)), repairID),
				}
			}
		}

		rec.Approvals = append(rec.Approvals, approval)
		if rec.Status == models.RepairEstimated && chain.ValidateMultiSignature(required, rec.Approvals) {
			rec.Status = models.RepairApproved
		}
		return tx.Save(&rec).Error
	})
	if rerr := storeError(err, "Failed to record approval"); rerr != nil {
		return nil, nil, rerr
	}

	r.logger.Info("Repair approval recorded", "repair_id", repairID, "approver", approval.ApproverID, "decision", approval.Status, "status", rec.Status)
	return &rec, receipt, nil
}

// AddTransaction appends a transaction to the journal and schedules its confirmation
func (r *Repository) AddTransaction(tx models.Transaction) *RepositoryError {
	if err := r.journal.Append(tx); err != nil {
		if errors.Is(err, ErrDuplicateTransaction) {
			return duplicate("Transaction", tx.ID)
		}
		return &RepositoryError{
			Code:    CodeJournalError,
			Message: "Failed to store transaction",
			Detail:  err.Error(),
		}
	}

	r.logger.Info("Transaction submitted", "tx_id", tx.ID, "type", tx.Type, "block", tx.BlockNumber)
	r.publish(models.TransactionEvent{TransactionID: tx.ID, Type: tx.Type, Status: tx.Status, Timestamp: tx.Timestamp})

	if r.scheduler != nil {
		r.scheduler.Schedule(tx.ID)
	}
	return nil
}

// UpdateTransactionStatus performs the single Pending -> Confirmed|Failed transition
func (r *Repository) UpdateTransactionStatus(id string, status models.TransactionStatus) *RepositoryError {
	if status != models.TxConfirmed && status != models.TxFailed {
		return &RepositoryError{
			Code:    CodeInvalidTransition,
			Message: "Invalid status transition",
			Detail:  fmt.Sprintf("cannot move %s to %s", id, status),
		}
	}

	tx, err := r.journal.SetStatus(id, status)
	if err != nil {
		switch {
		case errors.Is(err, ErrTransactionNotFound):
			return notFound("Transaction", id)
		case errors.Is(err, ErrInvalidTransition):
			return &RepositoryError{
				Code:    CodeInvalidTransition,
				Message: "Invalid status transition",
				Detail:  err.Error(),
			}
		}
		return &RepositoryError{
			Code:    CodeJournalError,
			Message: "Failed to update transaction",
			Detail:  err.Error(),
		}
	}

	r.logger.Info("Transaction finalized", "tx_id", id, "status", status)
	r.publish(models.TransactionEvent{
		TransactionID: id,
		Type:          tx.Type,
		Status:        status,
		Timestamp:     chain.FormatTimestamp(r.factory.Simulator().Now()),
	})
	return nil
}

// Subscribe returns a channel of transaction events. Slow subscribers miss
// events rather than block the store.
func (r *Repository) Subscribe() (<-chan models.TransactionEvent, func()) {
	ch := make(chan models.TransactionEvent, 64)

	r.subMu.Lock()
	id := r.nextSub
	r.nextSub++
	r.subscribers[id] = ch
	r.subMu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			r.subMu.Lock()
			delete(r.subscribers, id)
			r.subMu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

func (r *Repository) publish(event models.TransactionEvent) {
	r.subMu.Lock()
	defer r.subMu.Unlock()

	for _, ch := range r.subscribers {
		select {
		case ch <- event:
		default:
			r.logger.Debug("Dropping transaction event for slow subscriber", "tx_id", event.TransactionID)
		}
	}
}
