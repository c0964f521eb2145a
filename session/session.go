package session

import (
	"errors"
	"sync"

	"github.com/ahmadzakiakmal/insurance-ledger/capability"
	"github.com/ahmadzakiakmal/insurance-ledger/repository"
	"github.com/ahmadzakiakmal/insurance-ledger/repository/models"
	cmtlog "github.com/cometbft/cometbft/libs/log"
)

var (
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrUnknownParticipant  = errors.New("unknown participant")
	ErrWalletNotConnected  = errors.New("wallet not connected")
	ErrNoActiveParticipant = errors.New("no participant logged in")
)

const (
	demoAdminUser     = "admin"
	demoAdminPassword = "admin123"
)

// Directory is the participant registry the session logs in against
type Directory interface {
	GetParticipant(id string) (models.Participant, bool)
	FindParticipantByPublicKey(key string) (models.Participant, bool)
	AddParticipant(p models.Participant) (models.Participant, bool)
}

// Manager holds the single current participant of the demo
type Manager struct {
	mu        sync.RWMutex
	current   *models.Participant
	directory Directory
	signer    repository.SigningContext
	logger    cmtlog.Logger
}

func NewManager(directory Directory, signer repository.SigningContext, logger cmtlog.Logger) *Manager {
	return &Manager{
		directory: directory,
		signer:    signer,
		logger:    logger.With("module", "session"),
	}
}

// LoginAs selects a registered participant
func (m *Manager) LoginAs(participantID string) (models.Participant, error) {
	p, ok := m.directory.GetParticipant(participantID)
	if !ok {
		return models.Participant{}, ErrUnknownParticipant
	}
	m.set(p)
	return p, nil
}

// LoginAdmin checks the fixed demo administrator credentials
func (m *Manager) LoginAdmin(username, password string) (models.Participant, error) {
	if username != demoAdminUser || password != demoAdminPassword {
		m.logger.Info("Rejected admin login", "username", username)
		return models.Participant{}, ErrInvalidCredentials
	}
	p := models.Participant{
		ID:           "admin_1",
		Name:         "System Administrator",
		Role:         models.RoleAdmin,
		Organization: "System Administration",
		PublicKey:    "admin_public_key",
		IsActive:     true,
	}
	m.set(p)
	return p, nil
}

// LoginWallet logs in with the connected wallet, registering a vehicle owner
// the first time an address is seen.
func (m *Manager) LoginWallet() (models.Participant, bool, error) {
	address, ok := m.signer.SignerAddress()
	if !ok {
		return models.Participant{}, false, ErrWalletNotConnected
	}

	if p, found := m.directory.FindParticipantByPublicKey(address); found {
		m.set(p)
		return p, false, nil
	}

	p, created := m.directory.AddParticipant(ProvisionedParticipant(address))
	if created {
		m.logger.Info("Registered wallet participant", "participant_id", p.ID, "address", address)
	}
	m.set(p)
	return p, created, nil
}

// ProvisionedParticipant is the vehicle owner created for a new wallet address
func ProvisionedParticipant(address string) models.Participant {
	return models.Participant{
		ID:           "metamask_" + tail(address, 8),
		Name:         "User " + head(address, 6) + "..." + tail(address, 4),
		Role:         models.RoleVehicleOwner,
		Organization: "MetaMask User",
		PublicKey:    address,
		IsActive:     true,
	}
}

// Logout clears the current participant
func (m *Manager) Logout() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current != nil {
		m.logger.Info("Logged out", "participant_id", m.current.ID)
	}
	m.current = nil
}

// Current returns the logged in participant
func (m *Manager) Current() (models.Participant, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.current == nil {
		return models.Participant{}, false
	}
	return *m.current, true
}

// Capabilities returns the capability set of the current participant
func (m *Manager) Capabilities() (capability.Set, error) {
	p, ok := m.Current()
	if !ok {
		return capability.Set{}, ErrNoActiveParticipant
	}
	return capability.For(p.Role), nil
}

func (m *Manager) set(p models.Participant) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = &p
	m.logger.Info("Logged in", "participant_id", p.ID, "role", p.Role)
}

func head(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
