package ingress

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/callbackd/callbackd/pkg/config"
	"github.com/callbackd/callbackd/pkg/graphql"
	"github.com/callbackd/callbackd/pkg/listener"
)

// MaxRequestBodySize bounds an incoming GraphQL request body (1MB).
const MaxRequestBodySize = 1 << 20

// Registrar accepts subscription registrations. Implemented by
// listener.Service.
type Registrar interface {
	Register(ctx context.Context, sub listener.IncomingSubscription) error
}

// routerMessage is the GraphQL POST body the router sends.
type routerMessage struct {
	Query         string         `json:"query"`
	OperationName string         `json:"operationName,omitempty"`
	Variables     map[string]any `json:"variables,omitempty"`
	Extensions    *extensions    `json:"extensions,omitempty"`
}

type extensions struct {
	Subscription *subscriptionExtension `json:"subscription,omitempty"`
}

type subscriptionExtension struct {
	CallbackURL         string `json:"callbackUrl"`
	HeartbeatIntervalMS int64  `json:"heartbeatIntervalMs"`
	SubscriptionID      string `json:"subscriptionId"`
	Verifier            string `json:"verifier"`
}

// GraphQLHandler accepts subscription registrations from the router.
type GraphQLHandler struct {
	registrar  Registrar
	injectPeer string
	logger     *slog.Logger
}

// NewGraphQLHandler creates the registration handler. When injectPeer is
// non-empty, its occurrence in a callback URL is replaced with the
// requesting peer's IP.
func NewGraphQLHandler(registrar Registrar, injectPeer string, logger *slog.Logger) *GraphQLHandler {
	return &GraphQLHandler{registrar: registrar, injectPeer: injectPeer, logger: logger}
}

func (h *GraphQLHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	requestID := uuid.NewString()

	var msg routerMessage
	body := http.MaxBytesReader(w, r.Body, MaxRequestBodySize)
	if err := json.NewDecoder(body).Decode(&msg); err != nil {
		h.logger.Warn("invalid request body", "request_id", requestID, "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	if msg.Extensions == nil || msg.Extensions.Subscription == nil {
		// The router handles queries itself; only the callback protocol
		// lands here.
		h.logger.Warn("request without subscription extension", "request_id", requestID)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	ext := msg.Extensions.Subscription

	operation, ok := graphql.ParseSubscriptionOperation(msg.Query, msg.Variables)
	if !ok {
		h.logger.Warn("no operation in query", "request_id", requestID)
		respondDataNull(w)
		return
	}

	callbackURL := ext.CallbackURL
	if h.injectPeer != "" && strings.Contains(callbackURL, h.injectPeer) {
		callbackURL = strings.Replace(callbackURL, h.injectPeer, peerIP(r), 1)
	}

	sub := listener.IncomingSubscription{
		ID:                  ext.SubscriptionID,
		Verifier:            ext.Verifier,
		HeartbeatIntervalMS: ext.HeartbeatIntervalMS,
		CallbackURL:         callbackURL,
		Operation:           operation.Name,
		Arguments:           operation.Arguments,
	}

	h.logger.Debug("subscription request",
		"request_id", requestID, "operation", sub.Operation, "id", sub.ID)

	if err := h.registrar.Register(r.Context(), sub); err != nil {
		h.logger.Error("registration failed",
			"request_id", requestID, "operation", sub.Operation, "id", sub.ID, "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	respondDataNull(w)
}

func respondDataNull(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"data":null}`))
}

func peerIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// NewGraphQLServer binds the registration handler to the configured
// host, port and path.
func NewGraphQLServer(cfg config.RouterEndpointConfig, registrar Registrar, logger *slog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle(cfg.Path, NewGraphQLHandler(registrar, cfg.Subscription.InjectPeer, logger))
	return &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Hostname, cfg.Port),
		Handler: mux,
	}
}
