package ledgerclient

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorStatusBecomesAPIError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusPreconditionFailed)
		w.Write([]byte(`{"error":"Please connect your MetaMask wallet first"}`))
	}))
	defer ts.Close()

	err := New(ts.URL, time.Second).Post("/session/login/wallet", nil, nil)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusPreconditionFailed, apiErr.StatusCode)
	assert.Equal(t, "Please connect your MetaMask wallet first", apiErr.Message)
}

func TestLoginWalletSendsConnectThenLogin(t *testing.T) {
	var paths []string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		if r.URL.Path == "/wallet/connect" {
			var body map[string]interface{}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "0xabc", body["address"])
			assert.EqualValues(t, 11155111, body["chain_id"])
		}
		w.Write([]byte(`{}`))
	}))
	defer ts.Close()

	require.NoError(t, New(ts.URL, time.Second).LoginWallet("0xabc"))
	assert.Equal(t, []string{"/wallet/connect", "/session/login/wallet"}, paths)
}

func TestWaitForConfirmation(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		status := "Pending"
		if atomic.AddInt32(&calls, 1) >= 3 {
			status = "Confirmed"
		}
		json.NewEncoder(w).Encode(Transaction{ID: "tx_1", Status: status, BlockNumber: 42})
	}))
	defer ts.Close()

	tx, err := New(ts.URL, time.Second).WaitForConfirmation("tx_1", time.Second, time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, "Confirmed", tx.Status)
	assert.EqualValues(t, 42, tx.BlockNumber)
	assert.EqualValues(t, 3, atomic.LoadInt32(&calls))

	_, err = New(ts.URL, time.Second).WaitForConfirmation("tx_1", 0, time.Millisecond)
	assert.Error(t, err)
}
