// Package api implements the HTTP registration/acknowledgement surface:
// mobile wallets register vaults and push tokens, acknowledge delivered
// notifications, and poll their notification history. It is the only
// writer into Store besides the monitor itself.
//
// Routing uses gorilla/mux, following the same idiom adopted elsewhere in
// this codebase's dependency stack.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/btcsuite/btclog"
	"github.com/gorilla/mux"

	"github.com/rewindbitcoin/watchtower/commitment"
	"github.com/rewindbitcoin/watchtower/store"
)

// defaultNetworkID is used when a request omits the {networkId} path
// prefix.
const defaultNetworkID = "bitcoin"

// Server implements the HTTP surface across every enabled network.
type Server struct {
	stores          map[string]*store.DB
	verifier        *commitment.Verifier
	withCommitments bool
	log             btclog.Logger

	router *mux.Router
}

// NewServer constructs a Server with one store per enabled network.
// verifier may be nil when withCommitments is false.
func NewServer(stores map[string]*store.DB, verifier *commitment.Verifier, withCommitments bool, log btclog.Logger) *Server {
	s := &Server{
		stores:          stores,
		verifier:        verifier,
		withCommitments: withCommitments,
		log:             log,
	}
	s.router = s.buildRouter()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) buildRouter() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/generate_204", s.handleLiveness).Methods(http.MethodGet)

	r.HandleFunc("/watchtower/register", s.handleRegister).Methods(http.MethodPost)
	r.HandleFunc("/{networkId}/watchtower/register", s.handleRegister).Methods(http.MethodPost)

	r.HandleFunc("/watchtower/ack", s.handleAck).Methods(http.MethodPost)
	r.HandleFunc("/{networkId}/watchtower/ack", s.handleAck).Methods(http.MethodPost)

	r.HandleFunc("/watchtower/notifications", s.handleNotifications).Methods(http.MethodPost)
	r.HandleFunc("/{networkId}/watchtower/notifications", s.handleNotifications).Methods(http.MethodPost)

	return r
}

func (s *Server) handleLiveness(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

// networkID extracts the {networkId} path variable, defaulting to bitcoin.
func networkID(r *http.Request) string {
	if id, ok := mux.Vars(r)["networkId"]; ok && id != "" {
		return id
	}
	return defaultNetworkID
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Error: code, Message: message})
}
