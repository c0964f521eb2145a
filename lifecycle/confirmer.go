package lifecycle

import (
	"sync"
	"time"

	"github.com/ahmadzakiakmal/insurance-ledger/chain"
	"github.com/ahmadzakiakmal/insurance-ledger/repository"
	"github.com/ahmadzakiakmal/insurance-ledger/repository/models"
	cmtlog "github.com/cometbft/cometbft/libs/log"
	"github.com/cometbft/cometbft/libs/service"
)

// StatusUpdater applies the final status of a transaction
type StatusUpdater interface {
	UpdateTransactionStatus(id string, status models.TransactionStatus) *repository.RepositoryError
}

// Confirmer finalizes pending transactions after a simulated block delay.
// Timers still armed when the service stops are discarded and their
// transactions stay Pending.
type Confirmer struct {
	service.BaseService

	store StatusUpdater
	sim   chain.Simulator

	mu     sync.Mutex
	timers map[string]*time.Timer
}

// NewConfirmer creates a confirmer. Start it before scheduling.
func NewConfirmer(store StatusUpdater, sim chain.Simulator, logger cmtlog.Logger) *Confirmer {
	c := &Confirmer{
		store:  store,
		sim:    sim,
		timers: make(map[string]*time.Timer),
	}
	c.BaseService = *service.NewBaseService(logger.With("module", "confirmer"), "Confirmer", c)
	return c
}

// OnStart implements service.Service
func (c *Confirmer) OnStart() error {
	c.Logger.Info("Transaction confirmer started")
	return nil
}

// OnStop implements service.Service
func (c *Confirmer) OnStop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for id, timer := range c.timers {
		timer.Stop()
		delete(c.timers, id)
	}
	c.Logger.Info("Transaction confirmer stopped")
}

// Schedule arms a one-shot timer that finalizes txID
func (c *Confirmer) Schedule(txID string) {
	if !c.IsRunning() {
		c.Logger.Error("Confirmer not running, transaction stays pending", "tx_id", txID)
		return
	}

	delay := c.sim.ConfirmationDelay()

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.timers[txID]; exists {
		return
	}
	c.timers[txID] = time.AfterFunc(delay, func() { c.finalize(txID) })
	c.Logger.Debug("Scheduled confirmation", "tx_id", txID, "delay", delay)
}

// Pending returns the number of armed timers
func (c *Confirmer) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.timers)
}

func (c *Confirmer) finalize(txID string) {
	c.mu.Lock()
	_, armed := c.timers[txID]
	delete(c.timers, txID)
	c.mu.Unlock()
	if !armed {
		return
	}

	status := models.TxConfirmed
	if !c.sim.Finalize() {
		status = models.TxFailed
	}

	if rerr := c.store.UpdateTransactionStatus(txID, status); rerr != nil {
		c.Logger.Error("Failed to finalize transaction", "tx_id", txID, "err", rerr)
		return
	}
	c.Logger.Debug("Transaction finalized", "tx_id", txID, "status", status)
}
