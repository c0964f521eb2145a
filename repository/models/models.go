package models

import "github.com/shopspring/decimal"

// Role is a participant's role in the insurance workflow
type Role string

const (
	RoleVehicleOwner      Role = "VehicleOwner"
	RolePolice            Role = "Police"
	RoleInsurer           Role = "Insurer"
	RoleWitness           Role = "Witness"
	RoleInsuranceAdjuster Role = "InsuranceAdjuster"
	RoleRepairShop        Role = "RepairShop"
	RoleAdmin             Role = "Admin"
	RoleClaimChecker      Role = "ClaimChecker"
)

// Roles lists every role in display order
var Roles = []Role{
	RoleVehicleOwner,
	RolePolice,
	RoleInsurer,
	RoleWitness,
	RoleInsuranceAdjuster,
	RoleRepairShop,
	RoleAdmin,
	RoleClaimChecker,
}

// Valid reports whether r is a known role
func (r Role) Valid() bool {
	for _, known := range Roles {
		if r == known {
			return true
		}
	}
	return false
}

// Participant is an identity known to the ledger
type Participant struct {
	ID           string `gorm:"primaryKey" json:"id"`
	Name         string `json:"name"`
	Role         Role   `gorm:"index" json:"role"`
	Organization string `json:"organization,omitempty"`
	PublicKey    string `gorm:"uniqueIndex" json:"public_key"`
	IsActive     bool   `json:"is_active"`
}

// Vehicle is a registered vehicle
type Vehicle struct {
	ID                       string `gorm:"primaryKey" json:"id"`
	VIN                      string `json:"vin"`
	Make                     string `json:"make"`
	Model                    string `json:"model"`
	Year                     int    `json:"year"`
	OwnerID                  string `gorm:"index" json:"owner_id"`
	RegistrationNumber       string `json:"registration_number"`
	CurrentInsurancePolicyID string `json:"current_insurance_policy_id,omitempty"`
}

type PolicyStatus string

const (
	PolicyActive    PolicyStatus = "Active"
	PolicyExpired   PolicyStatus = "Expired"
	PolicyCancelled PolicyStatus = "Cancelled"
)

// InsurancePolicy covers one vehicle for a period
type InsurancePolicy struct {
	ID             string          `gorm:"primaryKey" json:"id"`
	VehicleID      string          `gorm:"index" json:"vehicle_id"`
	OwnerID        string          `gorm:"index" json:"owner_id"`
	InsurerID      string          `gorm:"index" json:"insurer_id"`
	PolicyNumber   string          `json:"policy_number"`
	StartDate      string          `json:"start_date"`
	EndDate        string          `json:"end_date"`
	CoverageAmount decimal.Decimal `gorm:"type:text" json:"coverage_amount"`
	Premium        decimal.Decimal `gorm:"type:text" json:"premium"`
	Status         PolicyStatus    `json:"status"`
	CoverageType   []string        `gorm:"serializer:json;type:text" json:"coverage_type"`
}

type Severity string

const (
	SeverityMinor    Severity = "Minor"
	SeverityModerate Severity = "Moderate"
	SeveritySevere   Severity = "Severe"
)

type AccidentStatus string

const (
	AccidentReported           AccidentStatus = "Reported"
	AccidentUnderInvestigation AccidentStatus = "Under Investigation"
	AccidentVerified           AccidentStatus = "Verified"
	AccidentClosed             AccidentStatus = "Closed"
)

// AccidentReport is a reported accident involving a vehicle
type AccidentReport struct {
	ID           string         `gorm:"primaryKey" json:"id"`
	VehicleID    string         `gorm:"index" json:"vehicle_id"`
	ReporterID   string         `gorm:"index" json:"reporter_id"`
	ReporterRole Role           `json:"reporter_role"`
	Location     string         `json:"location"`
	DateTime     string         `json:"date_time"`
	Description  string         `json:"description"`
	Severity     Severity       `json:"severity"`
	Witnesses    []string       `gorm:"serializer:json;type:text" json:"witnesses"`
	Documents    []DocumentHash `gorm:"serializer:json;type:text" json:"documents"`
	Status       AccidentStatus `json:"status"`
	ClaimID      string         `json:"claim_id,omitempty"`
}

type RepairStatus string

const (
	RepairEstimated  RepairStatus = "Estimated"
	RepairApproved   RepairStatus = "Approved"
	RepairInProgress RepairStatus = "In Progress"
	RepairCompleted  RepairStatus = "Completed"
)

// RepairRecord is a repair estimate and its approvals
type RepairRecord struct {
	ID               string           `gorm:"primaryKey" json:"id"`
	VehicleID        string           `gorm:"index" json:"vehicle_id"`
	AccidentReportID string           `gorm:"index" json:"accident_report_id"`
	RepairShopID     string           `gorm:"index" json:"repair_shop_id"`
	EstimatedCost    decimal.Decimal  `gorm:"type:text" json:"estimated_cost"`
	ActualCost       *decimal.Decimal `gorm:"type:text" json:"actual_cost,omitempty"`
	StartDate        string           `json:"start_date"`
	CompletionDate   string           `json:"completion_date,omitempty"`
	Status           RepairStatus     `json:"status"`
	Approvals        []Approval       `gorm:"serializer:json;type:text" json:"approvals"`
	Documents        []DocumentHash   `gorm:"serializer:json;type:text" json:"documents"`
}

// DocumentHash is the content digest of an uploaded document
type DocumentHash struct {
	ID           string `json:"id"`
	FileName     string `json:"file_name"`
	Hash         string `json:"hash"`
	UploadDate   string `json:"upload_date"`
	UploaderID   string `json:"uploader_id"`
	DocumentType string `json:"document_type"`
}

type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "Pending"
	ApprovalApproved ApprovalStatus = "Approved"
	ApprovalRejected ApprovalStatus = "Rejected"
)

// Approval is one signer's decision on a record
type Approval struct {
	ApproverID   string         `json:"approver_id"`
	ApproverRole Role           `json:"approver_role"`
	Timestamp    string         `json:"timestamp"`
	Signature    string         `json:"signature"`
	Status       ApprovalStatus `json:"status"`
	Comments     string         `json:"comments,omitempty"`
}
