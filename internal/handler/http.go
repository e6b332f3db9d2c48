package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/baselume-ledger/internal/auth"
	"github.com/baselume-ledger/internal/domain"
	"github.com/baselume-ledger/internal/service"
	"github.com/baselume-ledger/internal/websocket"
)

// Pinger is a dependency checked by the readiness probe
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler provides HTTP handlers for the ledger API
type Handler struct {
	service        *service.LedgerService
	hub            *websocket.Hub
	auth           *auth.Authenticator
	allowedOrigins []string
	checks         map[string]Pinger
	logger         *slog.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(
	service *service.LedgerService,
	hub *websocket.Hub,
	authenticator *auth.Authenticator,
	allowedOrigins []string,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		service:        service,
		hub:            hub,
		auth:           authenticator,
		allowedOrigins: allowedOrigins,
		checks:         make(map[string]Pinger),
		logger:         logger,
	}
}

// AddReadinessCheck makes /ready depend on p
func (h *Handler) AddReadinessCheck(name string, p Pinger) {
	h.checks[name] = p
}

// APIResponse represents a standard API response
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// Router creates and configures the HTTP router
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: h.allowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		MaxAge:         300,
	}))

	// Health check
	r.Get("/health", h.HealthCheck)
	r.Get("/ready", h.ReadyCheck)
	r.Handle("/metrics", promhttp.Handler())

	// WebSocket endpoint
	r.Get("/ws", h.HandleWebSocket)

	r.Route("/api/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(h.auth.Middleware(h.writeError))
			r.Post("/scores", h.SubmitScore)
			r.Post("/scores/batch", h.SubmitScoreBatch)
		})

		r.Group(func(r chi.Router) {
			r.Use(h.auth.Middleware(h.writeError))
			r.Use(requireRole(auth.RoleOwner, h.writeError))
			r.Post("/admin/minter", h.SetChampionMinter)
		})

		r.Get("/day", h.GetCurrentDay)

		r.Route("/players/{address}", func(r chi.Router) {
			r.Get("/", h.GetPlayer)
			r.Get("/daily/{day}", h.GetPlayerDailyScore)
			r.Get("/tokens", h.GetPlayerTokens)
			r.Get("/stats", h.GetPlayerStats)
		})

		r.Get("/leaderboard/top", h.GetTop)
		r.Get("/leaderboard/count", h.GetPlayerCount)

		r.Route("/days/{day}", func(r chi.Router) {
			r.Get("/stats", h.GetDailyStats)
			r.Get("/top", h.GetDailyTop)
			r.Get("/winner", h.GetDailyWinner)
			r.Get("/champion", h.GetDailyChampion)
			r.Post("/mint", h.MintDailyChampion)
		})

		r.Get("/champions", h.GetChampions)
		r.Get("/tokens/supply", h.GetTotalSupply)
		r.Get("/tokens/{id}", h.GetToken)

		// WebSocket info endpoint
		r.Get("/ws/stats", h.GetWebSocketStats)
	})

	return r
}

func requireRole(role string, onError auth.ErrorWriter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			caller, ok := auth.CallerFromContext(r.Context())
			if !ok || caller.Role != role {
				onError(w, http.StatusForbidden, domain.ErrUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeSuccess writes a successful JSON response
func (h *Handler) writeSuccess(w http.ResponseWriter, data interface{}) {
	h.writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    data,
	})
}

// writeError writes an error JSON response
func (h *Handler) writeError(w http.ResponseWriter, status int, err error) {
	h.writeJSON(w, status, APIResponse{
		Success: false,
		Error:   err.Error(),
	})
}

// StatusFor maps a ledger error to an HTTP status
func StatusFor(err error) int {
	switch {
	case domain.IsValidationError(err):
		return http.StatusBadRequest
	case errors.Is(err, auth.ErrMissingToken), errors.Is(err, auth.ErrInvalidToken):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusForbidden
	case domain.IsConflictError(err):
		return http.StatusConflict
	case errors.Is(err, domain.ErrDayNotElapsed):
		return http.StatusTooEarly
	case domain.IsNotFoundError(err):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrMinterNotSet):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeLedgerError reports err with its mapped status. Unexpected errors are
// logged and hidden from the client.
func (h *Handler) writeLedgerError(w http.ResponseWriter, op string, err error) {
	status := StatusFor(err)
	if status == http.StatusInternalServerError {
		h.logger.Error("request failed", "op", op, "error", err)
		h.writeError(w, status, domain.ErrInternalError)
		return
	}
	h.writeError(w, status, err)
}

func (h *Handler) callerAddress(r *http.Request) domain.Address {
	caller, _ := auth.CallerFromContext(r.Context())
	return caller.Address
}

func addressParam(r *http.Request) (domain.Address, error) {
	return domain.ParseAddress(chi.URLParam(r, "address"))
}

func uintParam(r *http.Request, name string) (uint64, error) {
	v, err := strconv.ParseUint(chi.URLParam(r, name), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be a non-negative integer", domain.ErrInvalidRequest, name)
	}
	return v, nil
}

func uintQuery(r *http.Request, name string, def uint64) (uint64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be a non-negative integer", domain.ErrInvalidRequest, name)
	}
	return v, nil
}

// limitQuery reads ?limit=, falling back to the configured default. An
// explicit zero or negative limit is kept and yields an empty ranking.
func (h *Handler) limitQuery(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return h.service.DefaultLimit(), nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: limit must be an integer", domain.ErrInvalidRequest)
	}
	return limit, nil
}

// HandleWebSocket handles WebSocket upgrade requests
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	websocket.ServeWs(h.hub, h.logger, w, r)
}

// GetWebSocketStats returns WebSocket connection statistics
func (h *Handler) GetWebSocketStats(w http.ResponseWriter, r *http.Request) {
	h.writeSuccess(w, map[string]interface{}{
		"total_connections":    h.hub.GetTotalConnections(),
		"lifetime_subscribers": h.hub.GetSubscriberCount(websocket.TopicLifetime),
	})
}

// HealthCheck returns service health status
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	h.writeSuccess(w, map[string]string{"status": "healthy"})
}

// ReadyCheck pings every registered dependency
func (h *Handler) ReadyCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	for name, check := range h.checks {
		if err := check.Ping(ctx); err != nil {
			h.logger.Warn("readiness check failed", "dependency", name, "error", err)
			h.writeError(w, http.StatusServiceUnavailable, fmt.Errorf("%s unavailable", name))
			return
		}
	}
	h.writeSuccess(w, map[string]string{"status": "ready"})
}

// SubmitScore handles score submission
func (h *Handler) SubmitScore(w http.ResponseWriter, r *http.Request) {
	var submission domain.ScoreSubmission
	if err := json.NewDecoder(r.Body).Decode(&submission); err != nil {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	entry, err := h.service.SubmitScore(r.Context(), h.callerAddress(r), submission, service.SourceHTTP)
	if err != nil {
		h.writeLedgerError(w, "submit_score", err)
		return
	}

	h.writeJSON(w, http.StatusCreated, APIResponse{
		Success: true,
		Data:    entry,
	})
}

// SubmitScoreBatch handles batch score submission
func (h *Handler) SubmitScoreBatch(w http.ResponseWriter, r *http.Request) {
	var batch domain.BatchScoreSubmission
	if err := json.NewDecoder(r.Body).Decode(&batch); err != nil {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	if len(batch.Scores) == 0 {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	results := h.service.SubmitScoreBatch(r.Context(), h.callerAddress(r), batch, service.SourceHTTP)
	accepted := 0
	for _, res := range results {
		if res.Status == service.StatusRecorded {
			accepted++
		}
	}

	h.writeSuccess(w, map[string]interface{}{
		"received": len(batch.Scores),
		"accepted": accepted,
		"results":  results,
	})
}

// SetChampionMinter links the champion minter
func (h *Handler) SetChampionMinter(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Minter string `json:"minter"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	if err := h.service.SetChampionMinter(r.Context(), h.callerAddress(r), req.Minter); err != nil {
		h.writeLedgerError(w, "set_champion_minter", err)
		return
	}

	h.writeSuccess(w, map[string]string{"minter": h.service.Ledger().ChampionMinter().String()})
}

// GetCurrentDay returns the current day index
func (h *Handler) GetCurrentDay(w http.ResponseWriter, r *http.Request) {
	h.writeSuccess(w, map[string]uint64{"day": h.service.Ledger().CurrentDay()})
}

// GetPlayer returns a player's summary
func (h *Handler) GetPlayer(w http.ResponseWriter, r *http.Request) {
	player, err := addressParam(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}
	h.writeSuccess(w, h.service.PlayerSummary(player))
}

// GetPlayerDailyScore returns a player's score for one day
func (h *Handler) GetPlayerDailyScore(w http.ResponseWriter, r *http.Request) {
	player, err := addressParam(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}
	day, err := uintParam(r, "day")
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}
	h.writeSuccess(w, map[string]interface{}{
		"player": player,
		"day":    day,
		"score":  h.service.Ledger().DailyScore(player, day),
	})
}

// GetPlayerTokens returns the champion tokens a player owns
func (h *Handler) GetPlayerTokens(w http.ResponseWriter, r *http.Request) {
	player, err := addressParam(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}
	tokens := h.service.Ledger().OwnedTokens(player)
	h.writeSuccess(w, map[string]interface{}{
		"player":  player,
		"tokens":  tokens,
		"balance": len(tokens),
	})
}

// GetPlayerStats returns the distribution of a player's scores
func (h *Handler) GetPlayerStats(w http.ResponseWriter, r *http.Request) {
	player, err := addressParam(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}
	h.writeSuccess(w, h.service.PlayerStats(player))
}

// GetTop returns the lifetime ranking
func (h *Handler) GetTop(w http.ResponseWriter, r *http.Request) {
	limit, err := h.limitQuery(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}
	h.writeSuccess(w, h.service.TopPlayers(limit))
}

// GetPlayerCount returns the number of ranked players
func (h *Handler) GetPlayerCount(w http.ResponseWriter, r *http.Request) {
	h.writeSuccess(w, map[string]int{"total_players": h.service.Ledger().TotalPlayers()})
}

// GetDailyStats returns the statistics of one day
func (h *Handler) GetDailyStats(w http.ResponseWriter, r *http.Request) {
	day, err := uintParam(r, "day")
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}
	h.writeSuccess(w, h.service.Ledger().DailyStats(day))
}

// GetDailyTop returns the ranking of one day
func (h *Handler) GetDailyTop(w http.ResponseWriter, r *http.Request) {
	day, err := uintParam(r, "day")
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}
	limit, err := h.limitQuery(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}
	h.writeSuccess(w, h.service.DailyTopPlayers(day, limit))
}

// GetDailyWinner returns the current leader of one day
func (h *Handler) GetDailyWinner(w http.ResponseWriter, r *http.Request) {
	day, err := uintParam(r, "day")
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}
	h.writeSuccess(w, h.service.Ledger().DailyWinner(day))
}

// GetDailyChampion returns the minted champion of one day
func (h *Handler) GetDailyChampion(w http.ResponseWriter, r *http.Request) {
	day, err := uintParam(r, "day")
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}
	h.writeSuccess(w, h.service.Ledger().DailyChampion(day))
}

// MintDailyChampion mints the champion of a finished day. Anyone may call it.
func (h *Handler) MintDailyChampion(w http.ResponseWriter, r *http.Request) {
	day, err := uintParam(r, "day")
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}

	rec, err := h.service.MintDailyChampion(r.Context(), day)
	if err != nil {
		h.writeLedgerError(w, "mint_daily_champion", err)
		return
	}

	h.writeJSON(w, http.StatusCreated, APIResponse{
		Success: true,
		Data:    rec,
	})
}

// GetChampions lists champions between ?from= and ?to=
func (h *Handler) GetChampions(w http.ResponseWriter, r *http.Request) {
	today := h.service.Ledger().CurrentDay()
	from, err := uintQuery(r, "from", 0)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}
	to, err := uintQuery(r, "to", today)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}

	records, err := h.service.ChampionsInRange(from, to)
	if err != nil {
		h.writeLedgerError(w, "champions_in_range", err)
		return
	}
	h.writeSuccess(w, records)
}

// GetTotalSupply returns the number of minted tokens
func (h *Handler) GetTotalSupply(w http.ResponseWriter, r *http.Request) {
	h.writeSuccess(w, map[string]int{"total_supply": h.service.Ledger().TotalSupply()})
}

// GetToken returns the details of one token
func (h *Handler) GetToken(w http.ResponseWriter, r *http.Request) {
	id, err := uintParam(r, "id")
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}

	details, err := h.service.Ledger().TokenDetails(id)
	if err != nil {
		h.writeLedgerError(w, "token_details", err)
		return
	}
	h.writeSuccess(w, details)
}
