package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ahmadzakiakmal/insurance-ledger/repository"
	"github.com/ahmadzakiakmal/insurance-ledger/repository/models"
	"github.com/ahmadzakiakmal/insurance-ledger/srvreg"
	cmtlog "github.com/cometbft/cometbft/libs/log"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const apiPrefix = "/api"

// writeWait bounds a single websocket frame write
const writeWait = 5 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// EventSource publishes transaction events
type EventSource interface {
	Subscribe() (<-chan models.TransactionEvent, func())
}

// WebServer serves the ledger API, the transaction feed and a debug view
type WebServer struct {
	httpAddr        string
	server          *http.Server
	logger          cmtlog.Logger
	startTime       time.Time
	serviceRegistry *srvreg.ServiceRegistry
	events          EventSource
	journal         *repository.Journal
	confirmer       srvreg.PendingCounter
}

// NewWebServer creates a new web server
func NewWebServer(httpPort string, logger cmtlog.Logger, serviceRegistry *srvreg.ServiceRegistry, events EventSource, journal *repository.Journal, confirmer srvreg.PendingCounter) *WebServer {
	mux := http.NewServeMux()

	ws := &WebServer{
		httpAddr: ":" + httpPort,
		server: &http.Server{
			Addr:              ":" + httpPort,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		},
		logger:          logger.With("module", "server"),
		startTime:       time.Now(),
		serviceRegistry: serviceRegistry,
		events:          events,
		journal:         journal,
		confirmer:       confirmer,
	}

	// Register routes
	mux.HandleFunc("/", ws.handleRoot)
	mux.HandleFunc("/debug", ws.handleDebug)
	mux.HandleFunc(apiPrefix+"/", ws.handleAPI)
	mux.HandleFunc("/ws/transactions", ws.handleTransactionFeed)

	return ws
}

// Handler returns the root handler, used by tests
func (ws *WebServer) Handler() http.Handler {
	return ws.server.Handler
}

// Start starts the web server
func (ws *WebServer) Start() error {
	ws.logger.Info("Starting web server", "addr", ws.httpAddr)
	go func() {
		if err := ws.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			ws.logger.Error("Web server error", "err", err)
		}
	}()
	return nil
}

// Shutdown gracefully shuts down the web server
func (ws *WebServer) Shutdown(ctx context.Context) error {
	ws.logger.Info("Shutting down web server")
	return ws.server.Shutdown(ctx)
}

// handleRoot shows service information and the endpoint list
func (ws *WebServer) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		JSONError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var endpoints strings.Builder
	for _, route := range ws.serviceRegistry.Routes() {
		method, path, _ := strings.Cut(route, " ")
		fmt.Fprintf(&endpoints, "\t\t<li><strong>%s</strong> %s%s</li>\n", method, apiPrefix, path)
	}

	w.Header().Set("Content-Type", "text/html")
	w.Write([]byte("<h1>Vehicle Insurance Ledger</h1>"))
	w.Write([]byte("<p>Type: Simulated ledger</p>"))
	w.Write([]byte("<p>Uptime: " + time.Since(ws.startTime).Round(time.Second).String() + "</p>"))
	w.Write([]byte("<h2>API Endpoints</h2>\n\t<ul>\n" + endpoints.String() + "\t</ul>\n"))
	w.Write([]byte("<p>Transaction feed: <code>ws://" + r.Host + "/ws/transactions</code></p>"))
}

// handleDebug reports journal and confirmation state
func (ws *WebServer) handleDebug(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		JSONError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	debugInfo := map[string]interface{}{
		"type":   "Simulated ledger",
		"uptime": time.Since(ws.startTime).String(),
	}

	if count, err := ws.journal.Count(); err != nil {
		debugInfo["journal_error"] = err.Error()
	} else {
		debugInfo["journal_height"] = count
	}
	if block, err := ws.journal.LastBlockNumber(); err != nil {
		debugInfo["journal_error"] = err.Error()
	} else {
		debugInfo["last_block_number"] = block
	}
	if ws.confirmer != nil {
		debugInfo["pending_confirmations"] = ws.confirmer.Pending()
	}

	w.Header().Set("Content-Type", "application/json")
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(debugInfo); err != nil {
		JSONError(w, "Error encoding response: "+err.Error(), http.StatusInternalServerError)
		return
	}
}

// handleAPI passes every /api request to the service registry
func (ws *WebServer) handleAPI(w http.ResponseWriter, r *http.Request) {
	requestID := uuid.NewString()

	bodyBytes, err := io.ReadAll(r.Body)
	if err != nil {
		JSONError(w, "Failed to read request body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	request := srvreg.NewRequest(r.Context(), r.Method, strings.TrimPrefix(r.URL.Path, apiPrefix), string(bodyBytes))
	response, err := request.GenerateResponse(ws.serviceRegistry)
	if err != nil {
		ws.logger.Error("Failed to generate response", "request_id", requestID, "err", err)
		JSONError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("X-Request-ID", requestID)
	writeResponse(w, response)

	ws.logger.Info("API Request Processed",
		"request_id", requestID,
		"path", request.Path,
		"method", request.Method,
		"status", response.StatusCode,
	)
}

// handleTransactionFeed streams transaction events over a websocket until the
// client goes away or the server shuts down
func (ws *WebServer) handleTransactionFeed(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		ws.logger.Error("WebSocket upgrade failed", "err", err)
		return
	}
	defer conn.Close()

	events, cancel := ws.events.Subscribe()
	defer cancel()

	// the read loop only notices the client closing
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ws.logger.Debug("Transaction feed subscriber connected", "remote", r.RemoteAddr)
	for {
		select {
		case <-r.Context().Done():
			return
		case <-closed:
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(event); err != nil {
				ws.logger.Debug("Transaction feed write failed", "err", err)
				return
			}
		}
	}
}

// writeResponse writes a Response to http.ResponseWriter
func writeResponse(w http.ResponseWriter, resp *srvreg.Response) {
	for key, value := range resp.Headers {
		w.Header().Set(key, value)
	}
	w.WriteHeader(resp.StatusCode)
	w.Write([]byte(resp.Body))
}

// JSONError writes a JSON error response
func JSONError(w http.ResponseWriter, message string, statusCode int) {
	errorResponse := struct {
		Error string `json:"error"`
	}{
		Error: message,
	}
	jsonBytes, err := json.Marshal(errorResponse)
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	w.Write(jsonBytes)
}
