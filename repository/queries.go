package repository

import (
	"errors"
	"sort"

	"github.com/ahmadzakiakmal/insurance-ledger/repository/models"
	"gorm.io/gorm"
)

// PolicyScope selects which policies a participant sees
type PolicyScope string

const (
	PolicyScopeOwned   PolicyScope = "owned"
	PolicyScopeInsured PolicyScope = "insured"
	PolicyScopeAll     PolicyScope = "all"
)

// AccidentScope selects which accident reports a participant sees
type AccidentScope string

const (
	AccidentScopeReported      AccidentScope = "reported"
	AccidentScopeOwnedVehicles AccidentScope = "owned_vehicles"
	AccidentScopeAll           AccidentScope = "all"
)

// RepairScope selects which repair records a participant sees
type RepairScope string

const (
	RepairScopeServiced      RepairScope = "serviced"
	RepairScopeOwnedVehicles RepairScope = "owned_vehicles"
	RepairScopeAll           RepairScope = "all"
)

// ordered keeps rows in insertion order
func ordered(db *gorm.DB) *gorm.DB {
	return db.Order("rowid")
}

// ownedBy restricts a table with a vehicle_id column to one owner's vehicles
func ownedBy(ownerID string) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		owned := db.Session(&gorm.Session{NewDB: true}).
			Model(&models.Vehicle{}).
			Select("id").
			Where("owner_id = ?", ownerID)
		return db.Where("vehicle_id IN (?)", owned)
	}
}

func where(query string, args ...interface{}) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where(query, args...)
	}
}

// find loads rows in insertion order. A failed query is logged and reads as
// no rows.
func (r *Repository) find(kind string, dest interface{}, scopes ...func(*gorm.DB) *gorm.DB) {
	if err := r.db.Scopes(scopes...).Scopes(ordered).Find(dest).Error; err != nil {
		r.logger.Error("Failed to query store", "kind", kind, "err", err)
	}
}

// get loads one row by column, reporting whether it exists
func (r *Repository) get(kind, column, value string, dest interface{}) bool {
	err := r.db.Where(column+" = ?", value).First(dest).Error
	if err == nil {
		return true
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		r.logger.Error("Failed to query store", "kind", kind, column, value, "err", err)
	}
	return false
}

func (r *Repository) count(kind string, model interface{}, scopes ...func(*gorm.DB) *gorm.DB) int {
	var n int64
	if err := r.db.Model(model).Scopes(scopes...).Count(&n).Error; err != nil {
		r.logger.Error("Failed to count rows", "kind", kind, "err", err)
	}
	return int(n)
}

// Participants returns a snapshot of all participants
func (r *Repository) Participants() []models.Participant {
	var out []models.Participant
	r.find("participant", &out)
	return out
}

// GetParticipant looks a participant up by id
func (r *Repository) GetParticipant(id string) (models.Participant, bool) {
	var p models.Participant
	ok := r.get("participant", "id", id, &p)
	return p, ok
}

// FindParticipantByPublicKey looks a participant up by wallet address or key
func (r *Repository) FindParticipantByPublicKey(key string) (models.Participant, bool) {
	var p models.Participant
	ok := r.get("participant", "public_key", key, &p)
	return p, ok
}

// Vehicles returns a snapshot of all vehicles
func (r *Repository) Vehicles() []models.Vehicle {
	var out []models.Vehicle
	r.find("vehicle", &out)
	return out
}

// GetVehicle looks a vehicle up by id
func (r *Repository) GetVehicle(id string) (models.Vehicle, bool) {
	var v models.Vehicle
	ok := r.get("vehicle", "id", id, &v)
	return v, ok
}

// VehiclesOwnedBy returns the vehicles of one owner
func (r *Repository) VehiclesOwnedBy(ownerID string) []models.Vehicle {
	var out []models.Vehicle
	r.find("vehicle", &out, where("owner_id = ?", ownerID))
	return out
}

// Policies returns a snapshot of all policies in insertion order
func (r *Repository) Policies() []models.InsurancePolicy {
	var out []models.InsurancePolicy
	r.find("policy", &out)
	return out
}

// PoliciesFor returns the policies visible to participantID under scope
func (r *Repository) PoliciesFor(scope PolicyScope, participantID string) []models.InsurancePolicy {
	var out []models.InsurancePolicy
	switch scope {
	case PolicyScopeAll:
		r.find("policy", &out)
	case PolicyScopeOwned:
		r.find("policy", &out, where("owner_id = ?", participantID))
	default:
		r.find("policy", &out, where("insurer_id = ?", participantID))
	}
	return out
}

// AccidentReports returns a snapshot of all accident reports
func (r *Repository) AccidentReports() []models.AccidentReport {
	var out []models.AccidentReport
	r.find("accident report", &out)
	return out
}

// GetAccidentReport looks a report up by id
func (r *Repository) GetAccidentReport(id string) (models.AccidentReport, bool) {
	var a models.AccidentReport
	ok := r.get("accident report", "id", id, &a)
	return a, ok
}

// AccidentReportsFor returns the reports visible to participantID under scope
func (r *Repository) AccidentReportsFor(scope AccidentScope, participantID string) []models.AccidentReport {
	var out []models.AccidentReport
	switch scope {
	case AccidentScopeReported:
		r.find("accident report", &out, where("reporter_id = ?", participantID))
	case AccidentScopeOwnedVehicles:
		r.find("accident report", &out, ownedBy(participantID))
	default:
		r.find("accident report", &out)
	}
	return out
}

// RepairRecords returns a snapshot of all repair records
func (r *Repository) RepairRecords() []models.RepairRecord {
	var out []models.RepairRecord
	r.find("repair record", &out)
	return out
}

// GetRepairRecord looks a repair record up by id
func (r *Repository) GetRepairRecord(id string) (models.RepairRecord, bool) {
	var rec models.RepairRecord
	ok := r.get("repair record", "id", id, &rec)
	return rec, ok
}

// RepairRecordsFor returns the repair records visible to participantID under scope
func (r *Repository) RepairRecordsFor(scope RepairScope, participantID string) []models.RepairRecord {
	var out []models.RepairRecord
	switch scope {
	case RepairScopeServiced:
		r.find("repair record", &out, where("repair_shop_id = ?", participantID))
	case RepairScopeOwnedVehicles:
		r.find("repair record", &out, ownedBy(participantID))
	default:
		r.find("repair record", &out)
	}
	return out
}

// Transactions returns every transaction in append order
func (r *Repository) Transactions() ([]models.Transaction, *RepositoryError) {
	txs, err := r.journal.List()
	if err != nil {
		return nil, &RepositoryError{
			Code:    CodeJournalError,
			Message: "Failed to list transactions",
			Detail:  err.Error(),
		}
	}
	return txs, nil
}

// GetTransaction returns one transaction
func (r *Repository) GetTransaction(id string) (models.Transaction, *RepositoryError) {
	tx, err := r.journal.Get(id)
	if err != nil {
		if errors.Is(err, ErrTransactionNotFound) {
			return tx, notFound("Transaction", id)
		}
		return tx, &RepositoryError{
			Code:    CodeJournalError,
			Message: "Failed to read transaction",
			Detail:  err.Error(),
		}
	}
	return tx, nil
}

// TransactionsFor returns the transactions participantID takes part in, newest first
func (r *Repository) TransactionsFor(participantID string) ([]models.Transaction, *RepositoryError) {
	all, rerr := r.Transactions()
	if rerr != nil {
		return nil, rerr
	}

	var out []models.Transaction
	for i := len(all) - 1; i >= 0; i-- {
		tx := all[i]
		for _, p := range tx.Participants {
			if p == participantID {
				out = append(out, tx)
				break
			}
		}
	}
	// timestamps share one layout so they order lexically
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp > out[j].Timestamp })
	return out, nil
}

// Overview returns the dashboard counters of one participant
func (r *Repository) Overview(participantID string) (models.Overview, *RepositoryError) {
	txs, rerr := r.TransactionsFor(participantID)
	if rerr != nil {
		return models.Overview{}, rerr
	}

	return models.Overview{
		Vehicles:        r.count("vehicle", &models.Vehicle{}, where("owner_id = ?", participantID)),
		Policies:        r.count("policy", &models.InsurancePolicy{}, where("owner_id = ? OR insurer_id = ?", participantID, participantID)),
		AccidentReports: r.count("accident report", &models.AccidentReport{}, where("reporter_id = ?", participantID)),
		RepairRecords:   r.count("repair record", &models.RepairRecord{}, where("repair_shop_id = ?", participantID)),
		Transactions:    len(txs),
	}, nil
}
