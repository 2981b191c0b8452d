// Package api exposes the registry over HTTP and streams committed events
// over WebSocket.
package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"price-registry/internal/ident"
	"price-registry/internal/observability"
	"price-registry/internal/registry"
	"price-registry/internal/spot"
	"price-registry/internal/storage"
)

// CallerHeader carries the identity of the caller. Authentication is
// terminated upstream.
const CallerHeader = "X-Caller-ID"

const maxBodyBytes = 1 << 20

// Options configures a Server.
type Options struct {
	Registry       *registry.Registry
	History        storage.PriceHistoryStore // optional
	Assets         spot.AssetInfo            // optional
	Hub            *Hub                      // optional
	AllowedOrigins []string                  // default: any origin
	Logger         *zap.Logger
}

// Server is the HTTP front of the registry.
type Server struct {
	router  *mux.Router
	handler http.Handler

	reg     *registry.Registry
	history storage.PriceHistoryStore
	assets  spot.AssetInfo
	hub     *Hub
	logger  *zap.Logger
}

// NewServer builds the router.
func NewServer(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Server{
		router:  mux.NewRouter(),
		reg:     opts.Registry,
		history: opts.History,
		assets:  opts.Assets,
		hub:     opts.Hub,
		logger:  logger.Named("api"),
	}
	s.routes()

	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	c := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", CallerHeader},
		MaxAge:         600,
	})
	s.handler = c.Handler(s.router)

	return s
}

// Handler returns the root handler with CORS applied.
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) routes() {
	s.router.Use(s.instrument)

	s.router.HandleFunc("/health", s.handleHealth()).Methods(http.MethodGet)
	s.router.Handle("/metrics", observability.Handler()).Methods(http.MethodGet)

	v1 := s.router.PathPrefix("/api/v1").Subrouter()

	v1.HandleFunc("/roles", s.handleGetRoles()).Methods(http.MethodGet)
	v1.HandleFunc("/roles/updater", s.handleSetUpdater()).Methods(http.MethodPut)
	v1.HandleFunc("/roles/reporters", s.handleAddReporter()).Methods(http.MethodPost)
	v1.HandleFunc("/roles/reporters/{id}", s.handleRemoveReporter()).Methods(http.MethodDelete)

	v1.HandleFunc("/prices", s.handleGetPrices()).Methods(http.MethodGet)
	v1.HandleFunc("/prices", s.handleUpdatePrices()).Methods(http.MethodPost)
	v1.HandleFunc("/prices/{asset}", s.handleGetPrice()).Methods(http.MethodGet)
	v1.HandleFunc("/prices/{asset}", s.handleUpdatePrice()).Methods(http.MethodPut)
	v1.HandleFunc("/prices/{asset}/history", s.handleGetHistory()).Methods(http.MethodGet)

	v1.HandleFunc("/fiats", s.handleList(s.reg.GetFiats)).Methods(http.MethodGet)
	v1.HandleFunc("/fiats/{asset}", s.handleRemoveFiat()).Methods(http.MethodDelete)
	v1.HandleFunc("/coins", s.handleList(s.reg.GetCoins)).Methods(http.MethodGet)
	v1.HandleFunc("/tokens", s.handleList(s.reg.GetAllTokens)).Methods(http.MethodGet)

	v1.HandleFunc("/tokens/{asset}", s.handleGetTokenData()).Methods(http.MethodGet)
	v1.HandleFunc("/tokens-data", s.handleGetTokensData()).Methods(http.MethodGet)
	v1.HandleFunc("/tokens/{asset}/commission", s.handleScalar(s.reg.GetCommission)).Methods(http.MethodGet)
	v1.HandleFunc("/tokens/{asset}/referral-percent", s.handlePercent(s.reg.GetReferralPercent)).Methods(http.MethodGet)
	v1.HandleFunc("/tokens/{asset}/transfer-fee", s.handlePercent(s.reg.GetTokenTransferFee)).Methods(http.MethodGet)
	v1.HandleFunc("/tokens/{asset}/transfer-fee", s.handleSetTransferFee()).Methods(http.MethodPut)

	v1.HandleFunc("/settings", s.handleGetSettings()).Methods(http.MethodGet)
	v1.HandleFunc("/settings", s.handleUpdateSettings()).Methods(http.MethodPut)
	v1.HandleFunc("/commissions", s.handleUpdateCommissions()).Methods(http.MethodPost)
	v1.HandleFunc("/commissions/all", s.handleUpdateAllCommissions()).Methods(http.MethodPost)
	v1.HandleFunc("/referral-percents", s.handleUpdateReferralPercents()).Methods(http.MethodPost)

	v1.HandleFunc("/reports/{asset}", s.handleReport()).Methods(http.MethodPost)
	v1.HandleFunc("/reports/{asset}/{reporter}", s.handleGetReport()).Methods(http.MethodGet)
	v1.HandleFunc("/consensus/{asset}", s.handleGetConsensus()).Methods(http.MethodGet)

	v1.HandleFunc("/assets/{asset}/decimals", s.handleDecimals()).Methods(http.MethodGet)
	v1.HandleFunc("/assets/{asset}/balances/{holder}", s.handleBalance()).Methods(http.MethodGet)

	if s.hub != nil {
		v1.Handle("/stream", s.hub).Methods(http.MethodGet)
	}
}

func (s *Server) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"status":    "ok",
			"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
		})
	}
}

// caller returns the normalized caller identity.
func caller(r *http.Request) (string, error) {
	raw := r.Header.Get(CallerHeader)
	if raw == "" {
		return "", errMissingCaller
	}
	id, err := ident.NormalizeSigner(raw)
	if err != nil {
		return "", fmt.Errorf("caller: %w", err)
	}
	return id, nil
}

// assetVar returns the normalized asset path variable.
func assetVar(r *http.Request, name string) (string, error) {
	asset, err := ident.NormalizeAsset(mux.Vars(r)[name])
	if err != nil {
		return "", fmt.Errorf("%s: %w", name, err)
	}
	return asset, nil
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: decode body: %v", registry.ErrInvalidInput, err)
	}
	return nil
}
