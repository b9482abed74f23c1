package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/nidhogg/nuka-commands/internal/command"
	"github.com/nidhogg/nuka-commands/internal/gateway"
	"github.com/nidhogg/nuka-commands/internal/store"
	"go.uber.org/zap"
)

const (
	defaultExecuteTimeout = 30 * time.Second
	defaultRunsLimit      = 50
)

// RunStore is the part of the run store the API reads from.
type RunStore interface {
	RecentRuns(ctx context.Context, limit int) ([]store.Run, error)
	OutcomeCounts(ctx context.Context) (map[string]int64, error)
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	dispatcher  *command.Dispatcher
	broadcaster *gateway.Broadcaster
	restGW      *gateway.RESTAdapter
	gw          *gateway.Gateway
	runs        RunStore
	prefix      string
	logger      *zap.Logger
}

// Deps lists what the handler serves. Everything except Dispatcher may be
// nil; the matching routes then answer 503.
type Deps struct {
	Dispatcher  *command.Dispatcher
	Broadcaster *gateway.Broadcaster
	RESTGateway *gateway.RESTAdapter
	Gateway     *gateway.Gateway
	Runs        RunStore
	Prefix      string
}

// NewHandler creates a new API handler.
func NewHandler(deps Deps, logger *zap.Logger) *Handler {
	if deps.Prefix == "" {
		deps.Prefix = "/"
	}
	return &Handler{
		dispatcher:  deps.Dispatcher,
		broadcaster: deps.Broadcaster,
		restGW:      deps.RESTGateway,
		gw:          deps.Gateway,
		runs:        deps.Runs,
		prefix:      deps.Prefix,
		logger:      logger,
	}
}

// Router builds the chi router with all routes.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.healthCheck)

		// Command registry routes
		r.Get("/commands", h.listCommands)
		r.Get("/commands/{name}", h.getCommand)
		r.Delete("/commands/{name}", h.removeCommand)
		r.Put("/commands/{name}/aliases", h.setAliases)
		r.Post("/execute", h.execute)

		// Gateway routes
		r.Post("/broadcast", h.sendBroadcast)
		r.Get("/broadcast/history", h.broadcastHistory)
		r.Get("/gateway/status", h.gatewayStatus)
		if h.restGW != nil {
			r.Mount("/gateway/rest", h.restGW.Routes())
		}

		// Audit routes
		r.Get("/runs", h.listRuns)
		r.Get("/runs/stats", h.runStats)
	})

	return r
}

func (h *Handler) healthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"commands": h.dispatcher.Registry().Len(),
		"pending":  h.dispatcher.Pending(),
	})
}

// commandView is the JSON shape of a definition.
type commandView struct {
	Name        string                   `json:"name"`
	Format      string                   `json:"format"`
	Description string                   `json:"description,omitempty"`
	Usage       string                   `json:"usage"`
	Aliases     []string                 `json:"aliases"`
	Flags       []string                 `json:"flags"`
	Attributes  map[string]command.Value `json:"attributes,omitempty"`
}

func (h *Handler) viewOf(def *command.Definition) commandView {
	v := commandView{
		Name:        def.Name(),
		Format:      def.Format(),
		Description: def.Description(),
		Usage:       def.Usage(h.prefix),
		Aliases:     def.Aliases(),
		Flags:       def.FlagDeclarations(),
		Attributes:  def.Attributes().Snapshot(),
	}
	if v.Aliases == nil {
		v.Aliases = []string{}
	}
	if v.Flags == nil {
		v.Flags = []string{}
	}
	return v
}

func (h *Handler) listCommands(w http.ResponseWriter, r *http.Request) {
	defs := h.dispatcher.Registry().List()
	views := make([]commandView, 0, len(defs))
	for _, def := range defs {
		views = append(views, h.viewOf(def))
	}
	writeJSON(w, http.StatusOK, views)
}

func (h *Handler) getCommand(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	defs := h.dispatcher.Registry().Resolve(name)
	if len(defs) == 0 {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "command not found"})
		return
	}
	views := make([]commandView, 0, len(defs))
	for _, def := range defs {
		views = append(views, h.viewOf(def))
	}
	writeJSON(w, http.StatusOK, views)
}

func (h *Handler) removeCommand(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	n := h.dispatcher.Registry().RemoveName(name)
	if n == 0 {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "command not found"})
		return
	}
	h.logger.Info("command removed via api", zap.String("command", name), zap.Int("definitions", n))
	writeJSON(w, http.StatusOK, map[string]any{"status": "removed", "removed": n})
}

func (h *Handler) setAliases(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	var req struct {
		Format  string   `json:"format"`
		Aliases []string `json:"aliases"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	reg := h.dispatcher.Registry()
	var target *command.Definition
	var matches int
	for _, def := range reg.Commands()[name] {
		if req.Format == "" || def.Format() == req.Format {
			target = def
			matches++
		}
	}
	switch {
	case matches == 0:
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "command not found"})
		return
	case matches > 1:
		writeJSON(w, http.StatusConflict, map[string]string{"error": "several definitions share this name; set format to pick one"})
		return
	}

	if err := reg.SetAliases(target, req.Aliases); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, command.ErrNotRegistered) {
			status = http.StatusNotFound
		}
		writeJSON(w, status, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, h.viewOf(target))
}

// executeResponse reports a finished dispatch.
type executeResponse struct {
	ID         string            `json:"id"`
	Outcome    command.Outcome   `json:"outcome"`
	Command    string            `json:"command,omitempty"`
	Format     string            `json:"format,omitempty"`
	Args       map[string]string `json:"args,omitempty"`
	Flags      map[string]string `json:"flags,omitempty"`
	Error      string            `json:"error,omitempty"`
	Messages   []string          `json:"messages"`
	DurationMS int64             `json:"duration_ms"`
}

func (h *Handler) execute(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Sender  string   `json:"sender"`
		Command string   `json:"command"`
		Args    []string `json:"args"`
		Timeout string   `json:"timeout"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if req.Command == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "command is required"})
		return
	}
	if req.Sender == "" {
		req.Sender = "api"
	}
	timeout := defaultExecuteTimeout
	if req.Timeout != "" {
		d, err := time.ParseDuration(req.Timeout)
		if err != nil || d <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid timeout"})
			return
		}
		timeout = d
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeout)
	defer cancel()

	sender := command.NewBufferSender(req.Sender, h.dispatcher)
	res, err := sender.RunCommand(req.Command, req.Args).Wait(ctx)
	if err != nil {
		writeJSON(w, http.StatusGatewayTimeout, map[string]string{"error": "command did not finish: " + err.Error()})
		return
	}

	resp := executeResponse{
		ID:         res.ID,
		Outcome:    res.Outcome,
		Args:       res.Args,
		Flags:      res.Flags,
		Messages:   sender.Messages(),
		DurationMS: res.Duration().Milliseconds(),
	}
	if resp.Messages == nil {
		resp.Messages = []string{}
	}
	if res.Command != nil {
		resp.Command = res.Command.Name()
		resp.Format = res.Command.Format()
	}
	if res.Err != nil {
		resp.Error = res.Err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) sendBroadcast(w http.ResponseWriter, r *http.Request) {
	if h.broadcaster == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "broadcaster not initialized"})
		return
	}
	var msg gateway.BroadcastMessage
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if msg.Type == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "type is required"})
		return
	}
	if err := h.broadcaster.Send(r.Context(), &msg); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "broadcast sent"})
}

func (h *Handler) broadcastHistory(w http.ResponseWriter, r *http.Request) {
	if h.broadcaster == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "broadcaster not initialized"})
		return
	}
	limit, ok := parseLimit(w, r, 20)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, h.broadcaster.History(limit))
}

func (h *Handler) gatewayStatus(w http.ResponseWriter, r *http.Request) {
	if h.gw == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "gateway not initialized"})
		return
	}
	statuses := h.gw.StatusAll()
	writeJSON(w, http.StatusOK, statuses)
}

func (h *Handler) listRuns(w http.ResponseWriter, r *http.Request) {
	if h.runs == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "run store not configured"})
		return
	}
	limit, ok := parseLimit(w, r, defaultRunsLimit)
	if !ok {
		return
	}
	runs, err := h.runs.RecentRuns(r.Context(), limit)
	if err != nil {
		h.logger.Error("list runs failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if runs == nil {
		runs = []store.Run{}
	}
	writeJSON(w, http.StatusOK, runs)
}

func (h *Handler) runStats(w http.ResponseWriter, r *http.Request) {
	if h.runs == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "run store not configured"})
		return
	}
	counts, err := h.runs.OutcomeCounts(r.Context())
	if err != nil {
		h.logger.Error("run stats failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, counts)
}

// parseLimit reads ?limit=N. It writes a 400 and returns false when the
// value is not a positive integer.
func parseLimit(w http.ResponseWriter, r *http.Request, def int) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be a positive integer"})
		return 0, false
	}
	return n, true
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
