package server

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ahmadzakiakmal/insurance-ledger/chain"
	"github.com/ahmadzakiakmal/insurance-ledger/repository"
	"github.com/ahmadzakiakmal/insurance-ledger/repository/models"
	"github.com/ahmadzakiakmal/insurance-ledger/session"
	"github.com/ahmadzakiakmal/insurance-ledger/srvreg"
	"github.com/ahmadzakiakmal/insurance-ledger/validator"
	"github.com/ahmadzakiakmal/insurance-ledger/wallet"
	cmtlog "github.com/cometbft/cometbft/libs/log"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	logger := cmtlog.NewNopLogger()

	journal, err := repository.OpenMemoryJournal(logger)
	require.NoError(t, err)
	t.Cleanup(func() { journal.Close() })

	store, err := repository.OpenMemoryStore(logger)
	require.NoError(t, err)
	t.Cleanup(func() { repository.CloseStore(store) })

	sim := chain.NewFixedSimulator(time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC), time.Second)
	w := wallet.NewWallet(logger)
	repo := repository.NewRepository(store, journal, chain.NewFactory(sim), w, logger)
	repo.Seed()

	registry, err := srvreg.NewServiceRegistry(srvreg.Dependencies{
		Repository:        repo,
		Validator:         validator.NewValidator(repo, w, sim, logger),
		Wallet:            w,
		Session:           session.NewManager(repo, w, logger),
		RequiredApprovals: 2,
	}, logger)
	require.NoError(t, err)
	registry.RegisterDefaultServices()

	ws := NewWebServer("0", logger, registry, repo, journal, nil)
	ts := httptest.NewServer(ws.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func post(t *testing.T, ts *httptest.Server, path, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(ts.URL+path, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestRootListsEndpoints(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "/api/vehicles")

	resp, err = http.Get(ts.URL + "/nope")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAPIPassthrough(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/api/info")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))

	missing := post(t, ts, "/api/vehicles", `{}`)
	assert.Equal(t, http.StatusUnauthorized, missing.StatusCode)
}

func TestDebug(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/debug")
	require.NoError(t, err)
	defer resp.Body.Close()

	var info map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&info))
	assert.EqualValues(t, 0, info["journal_height"])
	assert.NotContains(t, info, "pending_confirmations")
}

func TestTransactionFeed(t *testing.T) {
	ts := newTestServer(t)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/transactions"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	// the subscription is registered after the upgrade, give it a moment
	time.Sleep(50 * time.Millisecond)

	require.Equal(t, http.StatusOK, post(t, ts, "/api/wallet/connect", `{"address":"0x1234567890abcdef1234567890abcdef12345678","chain_id":1}`).StatusCode)
	require.Equal(t, http.StatusCreated, post(t, ts, "/api/session/login/wallet", "").StatusCode)
	require.Equal(t, http.StatusCreated, post(t, ts, "/api/vehicles",
		`{"vin":"VIN1","make":"Honda","model":"Jazz","year":2019,"registration_number":"D 1 AB"}`).StatusCode)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var event models.TransactionEvent
	require.NoError(t, conn.ReadJSON(&event))
	assert.Equal(t, models.TxRegisterVehicle, event.Type)
	assert.Equal(t, models.TxPending, event.Status)
	assert.True(t, strings.HasPrefix(event.TransactionID, "tx_"))
}
