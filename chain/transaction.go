package chain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/ahmadzakiakmal/insurance-ledger/repository/models"
	"github.com/gowebpki/jcs"
)

// TimestampLayout renders instants the way browsers render Date.toISOString
const TimestampLayout = "2006-01-02T15:04:05.000Z"

// FormatTimestamp renders t in TimestampLayout
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// Factory builds transactions with values from a Simulator
type Factory struct {
	sim Simulator
}

// NewFactory creates a transaction factory
func NewFactory(sim Simulator) *Factory {
	return &Factory{sim: sim}
}

// Simulator returns the simulator backing the factory
func (f *Factory) Simulator() Simulator {
	return f.sim
}

type txEnvelope struct {
	Type        models.TransactionType `json:"type"`
	InitiatorID string                 `json:"initiator_id"`
	Payload     any                    `json:"payload"`
	Timestamp   string                 `json:"timestamp"`
}

// NewTransaction builds a pending transaction. The initiator is always the
// first participant; additional participants are appended as given.
func (f *Factory) NewTransaction(txType models.TransactionType, initiatorID string, payload any, participants ...string) models.Transaction {
	timestamp := FormatTimestamp(f.sim.Now())

	hash := GenerateHash(serializeEnvelope(txEnvelope{
		Type:        txType,
		InitiatorID: initiatorID,
		Payload:     payload,
		Timestamp:   timestamp,
	}))

	all := make([]string, 0, len(participants)+1)
	all = append(all, initiatorID)
	all = append(all, participants...)

	return models.Transaction{
		ID:           "tx_" + hash,
		Type:         txType,
		Timestamp:    timestamp,
		InitiatorID:  initiatorID,
		Participants: all,
		Payload:      payload,
		Hash:         hash,
		BlockNumber:  f.sim.BlockNumber(),
		Status:       models.TxPending,
	}
}

// serializeEnvelope renders the envelope as canonical JSON, falling back to
// a Go rendering when the payload cannot be marshalled.
func serializeEnvelope(env txEnvelope) string {
	raw, err := json.Marshal(env)
	if err != nil {
		return fmt.Sprintf("%s|%s|%v|%s", env.Type, env.InitiatorID, env.Payload, env.Timestamp)
	}
	canonical, err := jcs.Transform(raw)
	if err != nil {
		return string(raw)
	}
	return string(canonical)
}
