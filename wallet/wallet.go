package wallet

import (
	"errors"
	"regexp"
	"strings"
	"sync"

	cmtlog "github.com/cometbft/cometbft/libs/log"
	"github.com/shopspring/decimal"
)

var (
	ErrInvalidAddress = errors.New("invalid wallet address")
	ErrNotConnected   = errors.New("wallet not connected")
)

var addressPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)

var networkNames = map[int64]string{
	1:        "Ethereum Mainnet",
	11155111: "Sepolia Testnet",
	5:        "Goerli Testnet",
	137:      "Polygon Mainnet",
	80001:    "Polygon Mumbai",
}

// NetworkName returns the display name of a chain id
func NetworkName(chainID int64) string {
	if name, ok := networkNames[chainID]; ok {
		return name
	}
	return "Unknown Network"
}

// IsSupportedNetwork reports whether the chain id is a known network
func IsSupportedNetwork(chainID int64) bool {
	_, ok := networkNames[chainID]
	return ok
}

// State is a snapshot of the wallet connection
type State struct {
	Connected   bool            `json:"connected"`
	Address     string          `json:"address,omitempty"`
	Balance     decimal.Decimal `json:"balance"`
	ChainID     int64           `json:"chain_id,omitempty"`
	NetworkName string          `json:"network_name,omitempty"`
	Supported   bool            `json:"supported"`
}

// Wallet is the simulated browser wallet surface. A connected wallet is the
// signing context for ledger writes.
type Wallet struct {
	mu      sync.RWMutex
	address string
	balance decimal.Decimal
	chainID int64
	logger  cmtlog.Logger
}

func NewWallet(logger cmtlog.Logger) *Wallet {
	return &Wallet{logger: logger.With("module", "wallet")}
}

// Connect connects an account. Connecting again replaces the account.
func (w *Wallet) Connect(address string, chainID int64, balance decimal.Decimal) (State, error) {
	if !addressPattern.MatchString(address) {
		return State{}, ErrInvalidAddress
	}

	w.mu.Lock()
	w.address = strings.ToLower(address)
	w.chainID = chainID
	w.balance = balance
	w.mu.Unlock()

	if !IsSupportedNetwork(chainID) {
		w.logger.Info("Wallet connected to unsupported network", "chain_id", chainID)
	}
	w.logger.Info("Wallet connected", "address", address, "network", NetworkName(chainID))
	return w.State(), nil
}

// Disconnect clears the connection
func (w *Wallet) Disconnect() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.address = ""
	w.chainID = 0
	w.balance = decimal.Zero
	w.logger.Info("Wallet disconnected")
}

// SwitchNetwork changes the chain id of a connected wallet
func (w *Wallet) SwitchNetwork(chainID int64) (State, error) {
	w.mu.Lock()
	if w.address == "" {
		w.mu.Unlock()
		return State{}, ErrNotConnected
	}
	w.chainID = chainID
	w.mu.Unlock()
	return w.State(), nil
}

func (w *Wallet) State() State {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.address == "" {
		return State{Balance: decimal.Zero}
	}
	return State{
		Connected:   true,
		Address:     w.address,
		Balance:     w.balance,
		ChainID:     w.chainID,
		NetworkName: NetworkName(w.chainID),
		Supported:   IsSupportedNetwork(w.chainID),
	}
}

// SignerAddress returns the connected account
func (w *Wallet) SignerAddress() (string, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.address, w.address != ""
}
