package srvreg

import (
	"errors"
	"net/http"

	"github.com/ahmadzakiakmal/insurance-ledger/capability"
	"github.com/ahmadzakiakmal/insurance-ledger/contracts"
	"github.com/ahmadzakiakmal/insurance-ledger/repository/models"
	"github.com/ahmadzakiakmal/insurance-ledger/session"
	"github.com/shopspring/decimal"
)

// InfoHandler returns service information
func (sr *ServiceRegistry) InfoHandler(req *Request) (*Response, error) {
	txs, rerr := sr.deps.Repository.Transactions()
	if rerr != nil {
		return repositoryErrorResponse(rerr), nil
	}

	pending := 0
	if sr.deps.Confirmer != nil {
		pending = sr.deps.Confirmer.Pending()
	}

	return jsonResponse(http.StatusOK, map[string]interface{}{
		"type":                  "Vehicle Insurance Ledger",
		"status":                "active",
		"contract_address":      contracts.InsuranceContractAddress,
		"transactions":          len(txs),
		"pending_confirmations": pending,
		"wallet":                sr.deps.Wallet.State(),
	}), nil
}

// ContractsHandler returns the contract descriptions
func (sr *ServiceRegistry) ContractsHandler(req *Request) (*Response, error) {
	all, err := contracts.Load()
	if err != nil {
		return nil, err
	}
	return jsonResponse(http.StatusOK, map[string]interface{}{"contracts": all}), nil
}

// WalletStateHandler returns the wallet connection
func (sr *ServiceRegistry) WalletStateHandler(req *Request) (*Response, error) {
	return jsonResponse(http.StatusOK, sr.deps.Wallet.State()), nil
}

// WalletConnectHandler connects a wallet account
func (sr *ServiceRegistry) WalletConnectHandler(req *Request) (*Response, error) {
	var body struct {
		Address string          `json:"address"`
		ChainID int64           `json:"chain_id"`
		Balance decimal.Decimal `json:"balance"`
	}
	if resp := sr.forms.bind(formWalletConnect, req.Body, &body); resp != nil {
		return resp, nil
	}

	state, err := sr.deps.Wallet.Connect(body.Address, body.ChainID, body.Balance)
	if err != nil {
		return errorResponse(http.StatusBadRequest, err.Error()), nil
	}

	resp := map[string]interface{}{
		"message": "Wallet connected",
		"wallet":  state,
	}
	if !state.Supported {
		resp["warning"] = "Unsupported network, switch to a supported network"
	}
	return jsonResponse(http.StatusOK, resp), nil
}

// WalletNetworkHandler switches the connected wallet's network
func (sr *ServiceRegistry) WalletNetworkHandler(req *Request) (*Response, error) {
	var body struct {
		ChainID int64 `json:"chain_id"`
	}
	if resp := sr.forms.bind(formWalletNetwork, req.Body, &body); resp != nil {
		return resp, nil
	}

	state, err := sr.deps.Wallet.SwitchNetwork(body.ChainID)
	if err != nil {
		return errorResponse(http.StatusConflict, err.Error()), nil
	}
	return jsonResponse(http.StatusOK, state), nil
}

// WalletDisconnectHandler disconnects the wallet
func (sr *ServiceRegistry) WalletDisconnectHandler(req *Request) (*Response, error) {
	sr.deps.Wallet.Disconnect()
	return jsonResponse(http.StatusOK, map[string]string{"message": "Wallet disconnected"}), nil
}

type sessionView struct {
	LoggedIn     bool                `json:"logged_in"`
	Participant  *models.Participant `json:"participant,omitempty"`
	Capabilities *capability.Set     `json:"capabilities,omitempty"`
}

func (sr *ServiceRegistry) sessionState() sessionView {
	p, ok := sr.deps.Session.Current()
	if !ok {
		return sessionView{}
	}
	caps := capability.For(p.Role)
	return sessionView{LoggedIn: true, Participant: &p, Capabilities: &caps}
}

// SessionHandler returns the current participant and capabilities
func (sr *ServiceRegistry) SessionHandler(req *Request) (*Response, error) {
	return jsonResponse(http.StatusOK, sr.sessionState()), nil
}

// LoginRoleHandler logs in as a registered participant
func (sr *ServiceRegistry) LoginRoleHandler(req *Request) (*Response, error) {
	var body struct {
		ParticipantID string `json:"participant_id"`
	}
	if resp := sr.forms.bind(formLoginRole, req.Body, &body); resp != nil {
		return resp, nil
	}

	if _, err := sr.deps.Session.LoginAs(body.ParticipantID); err != nil {
		return errorResponse(http.StatusNotFound, err.Error()), nil
	}
	return jsonResponse(http.StatusOK, sr.sessionState()), nil
}

// LoginAdminHandler logs in with the demo administrator credentials
func (sr *ServiceRegistry) LoginAdminHandler(req *Request) (*Response, error) {
	var body struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if resp := sr.forms.bind(formLoginAdmin, req.Body, &body); resp != nil {
		return resp, nil
	}

	if _, err := sr.deps.Session.LoginAdmin(body.Username, body.Password); err != nil {
		return errorResponse(http.StatusUnauthorized, err.Error()), nil
	}
	return jsonResponse(http.StatusOK, sr.sessionState()), nil
}

// LoginWalletHandler logs in with the connected wallet
func (sr *ServiceRegistry) LoginWalletHandler(req *Request) (*Response, error) {
	_, created, err := sr.deps.Session.LoginWallet()
	if err != nil {
		if errors.Is(err, session.ErrWalletNotConnected) {
			return errorResponse(http.StatusPreconditionFailed, "Please connect your MetaMask wallet first"), nil
		}
		return nil, err
	}

	statusCode := http.StatusOK
	if created {
		statusCode = http.StatusCreated
	}
	return jsonResponse(statusCode, sr.sessionState()), nil
}

// LogoutHandler clears the current participant
func (sr *ServiceRegistry) LogoutHandler(req *Request) (*Response, error) {
	sr.deps.Session.Logout()
	return jsonResponse(http.StatusOK, sr.sessionState()), nil
}

// ParticipantsHandler lists registered participants
func (sr *ServiceRegistry) ParticipantsHandler(req *Request) (*Response, error) {
	return jsonResponse(http.StatusOK, map[string]interface{}{
		"participants": sr.deps.Repository.Participants(),
		"roles":        models.Roles,
	}), nil
}

// authorize returns the current participant when it may perform action.
// An empty action only requires a login.
func (sr *ServiceRegistry) authorize(action capability.Action) (models.Participant, capability.Set, *Response) {
	p, ok := sr.deps.Session.Current()
	if !ok {
		return p, capability.Set{}, errorResponse(http.StatusUnauthorized, "Please log in first")
	}
	caps := capability.For(p.Role)
	if action != "" && !caps.Allows(action) {
		sr.logger.Info("Action denied", "participant_id", p.ID, "role", p.Role, "action", action)
		return p, caps, errorResponse(http.StatusForbidden, "Your role is not permitted to perform this action")
	}
	return p, caps, nil
}

// signerKey returns the key used for placeholder signatures
func (sr *ServiceRegistry) signerKey(p models.Participant) string {
	if address, ok := sr.deps.Wallet.SignerAddress(); ok {
		return address
	}
	return p.PublicKey
}
