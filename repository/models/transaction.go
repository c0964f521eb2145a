package models

import "github.com/shopspring/decimal"

type TransactionType string

const (
	TxRegisterInsurance TransactionType = "RegisterInsurance"
	TxReportAccident    TransactionType = "ReportAccident"
	TxValidateInsurance TransactionType = "ValidateInsurance"
	TxRepairVehicle     TransactionType = "RepairVehicle"
	TxApproveClaim      TransactionType = "ApproveClaim"
	TxRegisterVehicle   TransactionType = "RegisterVehicle"
)

type TransactionStatus string

const (
	TxPending   TransactionStatus = "Pending"
	TxConfirmed TransactionStatus = "Confirmed"
	TxFailed    TransactionStatus = "Failed"
)

// Transaction is a simulated ledger entry
type Transaction struct {
	ID           string            `json:"id"`
	Type         TransactionType   `json:"type"`
	Timestamp    string            `json:"timestamp"`
	InitiatorID  string            `json:"initiator_id"`
	Participants []string          `json:"participants"`
	Payload      any               `json:"payload"`
	Hash         string            `json:"hash"`
	BlockNumber  int64             `json:"block_number"`
	Status       TransactionStatus `json:"status"`
}

// Receipt is returned by every simulated on-chain write
type Receipt struct {
	TransactionHash string          `json:"tx_hash"`
	GasCost         decimal.Decimal `json:"gas_cost"`
}

// TransactionEvent is published when a transaction is appended or changes status
type TransactionEvent struct {
	TransactionID string            `json:"transaction_id"`
	Type          TransactionType   `json:"type"`
	Status        TransactionStatus `json:"status"`
	Timestamp     string            `json:"timestamp"`
}

// Overview holds dashboard counters for one participant
type Overview struct {
	Vehicles        int `json:"vehicles"`
	Policies        int `json:"policies"`
	AccidentReports int `json:"accident_reports"`
	RepairRecords   int `json:"repair_records"`
	Transactions    int `json:"transactions"`
}
