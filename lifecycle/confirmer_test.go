package lifecycle

import (
	"context"
	"testing"
	"time"

	"github.com/ahmadzakiakmal/insurance-ledger/chain"
	"github.com/ahmadzakiakmal/insurance-ledger/repository"
	"github.com/ahmadzakiakmal/insurance-ledger/repository/models"
	cmtlog "github.com/cometbft/cometbft/libs/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type walletStub struct{}

func (walletStub) SignerAddress() (string, bool) {
	return "0xabcdefabcdefabcdefabcdefabcdefabcdefabcd", true
}

func newLedger(t *testing.T, sim chain.Simulator) (*repository.Repository, *Confirmer) {
	t.Helper()
	journal, err := repository.OpenMemoryJournal(cmtlog.NewNopLogger())
	require.NoError(t, err)
	t.Cleanup(func() { journal.Close() })

	store, err := repository.OpenMemoryStore(cmtlog.NewNopLogger())
	require.NoError(t, err)
	t.Cleanup(func() { repository.CloseStore(store) })

	repo := repository.NewRepository(store, journal, chain.NewFactory(sim), walletStub{}, cmtlog.NewNopLogger())
	confirmer := NewConfirmer(repo, sim, cmtlog.NewNopLogger())
	repo.SetupScheduler(confirmer)

	require.NoError(t, confirmer.Start())
	t.Cleanup(func() { _ = confirmer.Stop() })
	return repo, confirmer
}

func statusOf(t *testing.T, repo *repository.Repository, id string) models.TransactionStatus {
	tx, rerr := repo.GetTransaction(id)
	require.Nil(t, rerr)
	return tx.Status
}

func TestConfirmAfterDelay(t *testing.T) {
	sim := chain.NewFixedSimulator(time.Now(), 50*time.Millisecond)
	repo, confirmer := newLedger(t, sim)

	tx := repo.Factory().NewTransaction(models.TxRegisterVehicle, "owner_1", map[string]string{"vin": "V1"})
	require.Nil(t, repo.AddTransaction(tx))

	assert.Equal(t, models.TxPending, statusOf(t, repo, tx.ID))
	assert.Equal(t, 1, confirmer.Pending())

	assert.Eventually(t, func() bool {
		return statusOf(t, repo, tx.ID) == models.TxConfirmed
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 0, confirmer.Pending())
}

func TestFailedSubmission(t *testing.T) {
	sim := chain.NewFixedSimulator(time.Now(), 20*time.Millisecond)
	sim.Fail = true
	repo, _ := newLedger(t, sim)

	tx := repo.Factory().NewTransaction(models.TxReportAccident, "police_1", "report")
	require.Nil(t, repo.AddTransaction(tx))

	assert.Eventually(t, func() bool {
		return statusOf(t, repo, tx.ID) == models.TxFailed
	}, 2*time.Second, 10*time.Millisecond)
}

func TestStopDiscardsPendingTimers(t *testing.T) {
	sim := chain.NewFixedSimulator(time.Now(), time.Hour)
	repo, confirmer := newLedger(t, sim)

	tx := repo.Factory().NewTransaction(models.TxRegisterInsurance, "demo_insurer", "policy")
	require.Nil(t, repo.AddTransaction(tx))
	require.Equal(t, 1, confirmer.Pending())

	require.NoError(t, confirmer.Stop())
	assert.Equal(t, 0, confirmer.Pending())
	assert.Equal(t, models.TxPending, statusOf(t, repo, tx.ID))

	// scheduling after stop leaves the transaction pending
	late := repo.Factory().NewTransaction(models.TxRegisterInsurance, "demo_insurer", "late")
	require.Nil(t, repo.AddTransaction(late))
	assert.Equal(t, 0, confirmer.Pending())
}

func TestNeverRevertsConfirmed(t *testing.T) {
	sim := chain.NewFixedSimulator(time.Now(), 10*time.Millisecond)
	repo, _ := newLedger(t, sim)

	tx := repo.Factory().NewTransaction(models.TxRegisterVehicle, "owner_1", "v")
	require.Nil(t, repo.AddTransaction(tx))
	require.Eventually(t, func() bool {
		return statusOf(t, repo, tx.ID) == models.TxConfirmed
	}, 2*time.Second, 10*time.Millisecond)

	rerr := repo.UpdateTransactionStatus(tx.ID, models.TxFailed)
	require.NotNil(t, rerr)
	assert.Equal(t, repository.CodeInvalidTransition, rerr.Code)
	assert.Equal(t, models.TxConfirmed, statusOf(t, repo, tx.ID))
}

// Confirmation with the default delay range of a demo chain.
func TestDefaultDelayConfirmation(t *testing.T) {
	if testing.Short() {
		t.Skip("waits for a full confirmation delay")
	}

	config := chain.DefaultSimulatorConfig()
	sim := chain.NewRandomSimulator(config)
	repo, _ := newLedger(t, sim)

	ctx := context.Background()
	vehicle := models.Vehicle{ID: "vehicle_d", VIN: "VIN-D", OwnerID: "owner_1"}
	_, rerr := repo.AddVehicle(ctx, vehicle)
	require.Nil(t, rerr)

	tx := repo.Factory().NewTransaction(models.TxRegisterVehicle, "owner_1", vehicle)
	require.Nil(t, repo.AddTransaction(tx))

	time.Sleep(2 * time.Second)
	assert.Equal(t, models.TxPending, statusOf(t, repo, tx.ID))

	assert.Eventually(t, func() bool {
		return statusOf(t, repo, tx.ID) == models.TxConfirmed
	}, 4*time.Second, 50*time.Millisecond)
}
