package srvreg

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/ahmadzakiakmal/insurance-ledger/repository"
	"github.com/ahmadzakiakmal/insurance-ledger/session"
	"github.com/ahmadzakiakmal/insurance-ledger/validator"
	"github.com/ahmadzakiakmal/insurance-ledger/wallet"
	cmtlog "github.com/cometbft/cometbft/libs/log"
)

// Request represents an incoming HTTP request
type Request struct {
	Method string
	Path   string
	Body   string
	ctx    context.Context
}

// NewRequest creates a request bound to ctx
func NewRequest(ctx context.Context, method, path, body string) *Request {
	return &Request{Method: method, Path: path, Body: body, ctx: ctx}
}

// Context returns the request context
func (req *Request) Context() context.Context {
	if req.ctx == nil {
		return context.Background()
	}
	return req.ctx
}

// Response represents an HTTP response
type Response struct {
	StatusCode int
	Headers    map[string]string
	Body       string
}

// HandlerFunc is a function that handles a request
type HandlerFunc func(*Request) (*Response, error)

// PendingCounter reports armed confirmation timers
type PendingCounter interface {
	Pending() int
}

// Dependencies are the components the handlers operate on
type Dependencies struct {
	Repository        *repository.Repository
	Validator         *validator.Validator
	Wallet            *wallet.Wallet
	Session           *session.Manager
	Confirmer         PendingCounter
	RequiredApprovals int
}

// ServiceRegistry manages all service handlers
type ServiceRegistry struct {
	handlers map[string]map[string]HandlerFunc
	deps     Dependencies
	forms    *formValidator
	logger   cmtlog.Logger
}

var defaultHeaders = map[string]string{
	"Content-Type": "application/json",
}

// NewServiceRegistry creates a new service registry
func NewServiceRegistry(deps Dependencies, logger cmtlog.Logger) (*ServiceRegistry, error) {
	forms, err := newFormValidator()
	if err != nil {
		return nil, err
	}
	if deps.RequiredApprovals < 1 {
		deps.RequiredApprovals = 1
	}
	return &ServiceRegistry{
		handlers: make(map[string]map[string]HandlerFunc),
		deps:     deps,
		forms:    forms,
		logger:   logger.With("module", "srvreg"),
	}, nil
}

// RegisterHandler registers a handler for a specific method and path
func (sr *ServiceRegistry) RegisterHandler(method, path string, handler HandlerFunc) {
	if sr.handlers[method] == nil {
		sr.handlers[method] = make(map[string]HandlerFunc)
	}
	sr.handlers[method][path] = handler
	sr.logger.Debug("Registered handler", "method", method, "path", path)
}

// GetHandlerForPath finds the handler for a given method and path
func (sr *ServiceRegistry) GetHandlerForPath(method, path string) (HandlerFunc, bool) {
	methodHandlers, exists := sr.handlers[method]
	if !exists {
		return nil, false
	}

	// Try exact match first
	if handler, exists := methodHandlers[path]; exists {
		return handler, true
	}

	// Try pattern matching for paths with parameters
	for pattern, handler := range methodHandlers {
		if matchPath(pattern, path) {
			return handler, true
		}
	}

	return nil, false
}

// Routes lists the registered "METHOD path" pairs in order
func (sr *ServiceRegistry) Routes() []string {
	var routes []string
	for method, handlers := range sr.handlers {
		for path := range handlers {
			routes = append(routes, method+" "+path)
		}
	}
	sort.Strings(routes)
	return routes
}

// matchPath checks if a path matches a pattern with parameters
// It supports patterns like "/vehicles/:id" matching "/vehicles/123"
func matchPath(pattern, path string) bool {
	patternParts := strings.Split(pattern, "/")
	pathParts := strings.Split(path, "/")

	if len(patternParts) != len(pathParts) {
		return false
	}

	for i := 0; i < len(patternParts); i++ {
		if strings.HasPrefix(patternParts[i], ":") {
			continue
		}
		if patternParts[i] != pathParts[i] {
			return false
		}
	}

	return true
}

// pathSegment returns segment i of the request path ("/vehicles/:id" -> 2 is the id)
func pathSegment(path string, i int) string {
	parts := strings.Split(path, "/")
	if i < len(parts) {
		return parts[i]
	}
	return ""
}

// RegisterDefaultServices sets up all default endpoints
func (sr *ServiceRegistry) RegisterDefaultServices() {
	// Info endpoints
	sr.RegisterHandler("GET", "/info", sr.InfoHandler)
	sr.RegisterHandler("GET", "/contracts", sr.ContractsHandler)

	// Wallet endpoints
	sr.RegisterHandler("GET", "/wallet", sr.WalletStateHandler)
	sr.RegisterHandler("POST", "/wallet/connect", sr.WalletConnectHandler)
	sr.RegisterHandler("POST", "/wallet/network", sr.WalletNetworkHandler)
	sr.RegisterHandler("POST", "/wallet/disconnect", sr.WalletDisconnectHandler)

	// Session endpoints
	sr.RegisterHandler("GET", "/session", sr.SessionHandler)
	sr.RegisterHandler("POST", "/session/login/role", sr.LoginRoleHandler)
	sr.RegisterHandler("POST", "/session/login/admin", sr.LoginAdminHandler)
	sr.RegisterHandler("POST", "/session/login/wallet", sr.LoginWalletHandler)
	sr.RegisterHandler("POST", "/session/logout", sr.LogoutHandler)
	sr.RegisterHandler("GET", "/participants", sr.ParticipantsHandler)

	// Ledger endpoints
	sr.RegisterHandler("GET", "/vehicles", sr.ListVehiclesHandler)
	sr.RegisterHandler("POST", "/vehicles", sr.RegisterVehicleHandler)
	sr.RegisterHandler("GET", "/vehicles/:id/validation", sr.ValidateInsuranceHandler)
	sr.RegisterHandler("GET", "/vehicles/:id/policy", sr.PolicyLookupHandler)
	sr.RegisterHandler("GET", "/policies", sr.ListPoliciesHandler)
	sr.RegisterHandler("POST", "/policies", sr.CreatePolicyHandler)
	sr.RegisterHandler("POST", "/policies/estimate", sr.EstimatePolicyHandler)
	sr.RegisterHandler("GET", "/accidents", sr.ListAccidentsHandler)
	sr.RegisterHandler("POST", "/accidents", sr.ReportAccidentHandler)
	sr.RegisterHandler("GET", "/repairs", sr.ListRepairsHandler)
	sr.RegisterHandler("POST", "/repairs", sr.CreateRepairHandler)
	sr.RegisterHandler("POST", "/repairs/:id/approve", sr.ApproveRepairHandler)
	sr.RegisterHandler("GET", "/transactions", sr.ListTransactionsHandler)
	sr.RegisterHandler("GET", "/transactions/:id", sr.GetTransactionHandler)
	sr.RegisterHandler("GET", "/dashboard", sr.DashboardHandler)

	sr.logger.Info("All services registered", "count", len(sr.Routes()))
}

// GenerateResponse executes the request and generates a response
func (req *Request) GenerateResponse(services *ServiceRegistry) (*Response, error) {
	handler, found := services.GetHandlerForPath(req.Method, req.Path)

	if !found {
		return errorResponse(http.StatusNotFound, fmt.Sprintf("Service not found for %s %s", req.Method, req.Path)), nil
	}

	return handler(req)
}

// jsonResponse marshals body into a response
func jsonResponse(statusCode int, body any) *Response {
	raw, err := json.Marshal(body)
	if err != nil {
		return errorResponse(http.StatusInternalServerError, "Failed to encode response")
	}
	return &Response{
		StatusCode: statusCode,
		Headers:    defaultHeaders,
		Body:       string(raw),
	}
}

func errorResponse(statusCode int, message string) *Response {
	raw, _ := json.Marshal(map[string]string{"error": message})
	return &Response{
		StatusCode: statusCode,
		Headers:    defaultHeaders,
		Body:       string(raw),
	}
}

// repositoryErrorResponse maps a store error code to an HTTP status
func repositoryErrorResponse(rerr *repository.RepositoryError) *Response {
	statusCode := http.StatusInternalServerError
	switch rerr.Code {
	case repository.CodeNotFound:
		statusCode = http.StatusNotFound
	case repository.CodeSignerUnavailable:
		statusCode = http.StatusServiceUnavailable
	case repository.CodeDuplicateID:
		statusCode = http.StatusConflict
	case repository.CodeValidationFailed:
		statusCode = http.StatusBadRequest
	case repository.CodeInvalidTransition:
		statusCode = http.StatusConflict
	case repository.CodeCancelled:
		statusCode = http.StatusRequestTimeout
	}
	return errorResponse(statusCode, rerr.Message)
}
