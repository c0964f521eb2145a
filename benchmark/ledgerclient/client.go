// Package ledgerclient drives the ledger HTTP API for the benchmark tools.
// The server keeps a single session, so a Client shares it with every other
// caller of the same server.
package ledgerclient

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// APIError is a response with an error status
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

// Write is the part of a ledger write response the benchmarks read
type Write struct {
	Record struct {
		ID string `json:"id"`
	} `json:"record"`
	Transaction Transaction `json:"transaction"`
}

// Transaction is the part of a journal transaction the benchmarks read
type Transaction struct {
	ID          string `json:"id"`
	Status      string `json:"status"`
	BlockNumber int64  `json:"block_number"`
}

// Validation is the insurance validation result
type Validation struct {
	Result struct {
		Valid bool   `json:"valid"`
		Error string `json:"error"`
	} `json:"result"`
}

type Client struct {
	baseURL string
	http    *http.Client
}

// New returns a client for the API mounted at baseURL, e.g. http://127.0.0.1:5000/api
func New(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

// Get decodes the response of GET path into out. out may be nil.
func (c *Client) Get(path string, out interface{}) error {
	req, err := http.NewRequest(http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

// Post sends body as JSON and decodes the response into out. body and out may be nil.
func (c *Client) Post(path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(http.MethodPost, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out interface{}) error {
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 400 {
		var apiErr struct {
			Error string `json:"error"`
		}
		msg := string(body)
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error != "" {
			msg = apiErr.Error
		}
		return &APIError{StatusCode: resp.StatusCode, Message: msg}
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(body, out)
}

// LoginWallet connects address on Sepolia and logs in as its vehicle owner
func (c *Client) LoginWallet(address string) error {
	err := c.Post("/wallet/connect", map[string]interface{}{
		"address":  address,
		"chain_id": 11155111,
		"balance":  "1.0",
	}, nil)
	if err != nil {
		return fmt.Errorf("connect wallet: %w", err)
	}
	if err := c.Post("/session/login/wallet", nil, nil); err != nil {
		return fmt.Errorf("wallet login: %w", err)
	}
	return nil
}

// LoginAs switches the session to a registered participant
func (c *Client) LoginAs(participantID string) error {
	if err := c.Post("/session/login/role", map[string]string{"participant_id": participantID}, nil); err != nil {
		return fmt.Errorf("login as %s: %w", participantID, err)
	}
	return nil
}

// WaitForConfirmation polls a transaction until it leaves Pending
func (c *Client) WaitForConfirmation(txID string, timeout, interval time.Duration) (Transaction, error) {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		var tx Transaction
		if err := c.Get("/transactions/"+txID, &tx); err != nil {
			return Transaction{}, err
		}
		if tx.Status != "Pending" {
			return tx, nil
		}
		time.Sleep(interval)
	}
	return Transaction{}, fmt.Errorf("%s still pending after %s", txID, timeout)
}
