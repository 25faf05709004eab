// Package web serves position valuations, the investment event stream and metrics over HTTP.
package web

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/crypto/acme/autocert"

	"github.com/vadiminshakov/lpinvest/internal/domain"
)

const (
	defaultPollInterval = 3 * time.Second
	heartbeatInterval   = 20 * time.Second
)

type eventReader interface {
	EventsAfter(index uint64) ([]domain.EventRecord, error)
}

type investmentReader interface {
	Describe(ctx context.Context, account, token common.Address) (*domain.Investment, error)
}

type eventSubscriber interface {
	Subscribe() chan domain.EventRecord
	Unsubscribe(ch chan domain.EventRecord)
}

// Server exposes valuations, an SSE stream of journaled events and prometheus metrics.
type Server struct {
	Addr        string
	Investments investmentReader
	Events      eventReader
	// Live wakes up streams as soon as an event is published; without it streams poll the journal.
	Live    eventSubscriber
	Metrics http.Handler
	// Decimals maps token addresses to their decimals for human-readable values.
	Decimals map[common.Address]int32

	PollInterval time.Duration
	l            *zap.Logger
}

// NewServer creates a new web server instance.
func NewServer(l *zap.Logger, addr string, investments investmentReader, events eventReader) *Server {
	if l == nil {
		l = zap.NewNop()
	}
	return &Server{
		Addr:         addr,
		Investments:  investments,
		Events:       events,
		Decimals:     make(map[common.Address]int32),
		PollInterval: defaultPollInterval,
		l:            l,
	}
}

// Handler returns the HTTP routes of the server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/investment", s.handleInvestment)
	mux.HandleFunc("/events/stream", s.handleEventStream)
	if s.Metrics != nil {
		mux.Handle("/metrics", s.Metrics)
	}
	return mux
}

// Start runs the HTTP server (blocking) and shuts it down when ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	server := &http.Server{
		Addr:              s.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	s.l.Info("http server listening", zap.String("addr", s.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// StartWithAutoTLS runs an HTTPS server with automatic TLS certificates via ACME.
// It also starts an HTTP server on port 80 to handle ACME HTTP-01 challenges.
func (s *Server) StartWithAutoTLS(ctx context.Context, domains []string, cacheDir string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if len(domains) == 0 {
		return fmt.Errorf("no domains provided for automatic TLS")
	}
	if cacheDir == "" {
		cacheDir = "cert-cache"
	}

	manager := &autocert.Manager{
		Prompt:     autocert.AcceptTOS,
		HostPolicy: autocert.HostWhitelist(domains...),
		Cache:      autocert.DirCache(cacheDir),
	}

	httpSrv := &http.Server{
		Addr:              ":80",
		Handler:           manager.HTTPHandler(nil),
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	tlsConfig := manager.TLSConfig()
	tlsConfig.MinVersion = tls.VersionTLS12

	httpsSrv := &http.Server{
		Addr:              s.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       120 * time.Second,
		TLSConfig:         tlsConfig,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.l.Warn("http (acme) server shutdown error", zap.Error(err))
		}
		if err := httpsSrv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.l.Warn("https server shutdown error", zap.Error(err))
		}
	}()

	go func() {
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.l.Error("http (acme) server error", zap.Error(err))
		}
	}()

	s.l.Info("https server listening", zap.String("addr", s.Addr), zap.Strings("domains", domains))
	if err := httpsSrv.ListenAndServeTLS("", ""); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "ok")
}

// investmentResponse is the valuation payload; integer amounts are decimal strings.
type investmentResponse struct {
	domain.Investment
	TokenValueDisplay string `json:"token_value_display,omitempty"`
}

func (s *Server) handleInvestment(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.Investments == nil {
		http.Error(w, "investment manager not available", http.StatusServiceUnavailable)
		return
	}

	account, err := parseAddress(r.URL.Query().Get("account"))
	if err != nil {
		http.Error(w, "account: "+err.Error(), http.StatusBadRequest)
		return
	}
	token, err := parseAddress(r.URL.Query().Get("token"))
	if err != nil {
		http.Error(w, "token: "+err.Error(), http.StatusBadRequest)
		return
	}

	inv, err := s.Investments.Describe(r.Context(), account, token)
	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, domain.ErrPoolNotFound):
			status = http.StatusNotFound
		case errors.Is(err, domain.ErrPoolEmpty):
			status = http.StatusConflict
		default:
			s.l.Error("valuation failed", zap.String("account", account.Hex()), zap.String("token", token.Hex()), zap.Error(err))
		}
		http.Error(w, err.Error(), status)
		return
	}

	resp := investmentResponse{Investment: *inv}
	if decimals, ok := s.Decimals[token]; ok && inv.TokenValue != nil {
		resp.TokenValueDisplay = decimal.NewFromBigInt(inv.TokenValue.ToBig(), -decimals).String()
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.l.Warn("failed to write valuation", zap.Error(err))
	}
}

func (s *Server) handleEventStream(w http.ResponseWriter, r *http.Request) {
	if s.Events == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		fmt.Fprint(w, "event journal not available")
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	accountFilter := common.Address{}
	if raw := r.URL.Query().Get("account"); raw != "" {
		addr, err := parseAddress(raw)
		if err != nil {
			http.Error(w, "account: "+err.Error(), http.StatusBadRequest)
			return
		}
		accountFilter = addr
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	pollInterval := s.PollInterval
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}
	pollTicker := time.NewTicker(pollInterval)
	defer pollTicker.Stop()

	var live chan domain.EventRecord
	if s.Live != nil {
		live = s.Live.Subscribe()
		defer s.Live.Unsubscribe(live)
	}

	lastIndex := parseLastEventID(r.Header.Get("Last-Event-ID"), r.URL.Query().Get("last_event_id"))
	sendEvents := func() error {
		records, err := s.Events.EventsAfter(lastIndex)
		if err != nil {
			return err
		}
		for _, record := range records {
			lastIndex = record.Index
			if accountFilter != (common.Address{}) && record.Event.Account() != accountFilter {
				continue
			}
			payload, err := json.Marshal(record.Event)
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "id: %d\n", record.Index)
			fmt.Fprintf(w, "event: %s\n", record.Event.Kind)
			fmt.Fprintf(w, "data: %s\n\n", payload)
		}
		flusher.Flush()
		return nil
	}

	if err := sendEvents(); err != nil {
		http.Error(w, "failed to load events", http.StatusInternalServerError)
		s.l.Error("event stream initial load", zap.Error(err))
		return
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			fmt.Fprintf(w, ": ping\n\n")
			flusher.Flush()
		case _, ok := <-live:
			if !ok {
				live = nil
				continue
			}
			// the journal is the source of truth, the broadcast only signals that it grew
			if err := sendEvents(); err != nil {
				s.l.Warn("event stream read err", zap.Error(err))
			}
		case <-pollTicker.C:
			if err := sendEvents(); err != nil {
				s.l.Warn("event stream poll err", zap.Error(err))
			}
		}
	}
}

func parseAddress(raw string) (common.Address, error) {
	raw = strings.TrimSpace(raw)
	if !common.IsHexAddress(raw) {
		return common.Address{}, errors.Errorf("%q is not a hex address", raw)
	}
	return common.HexToAddress(raw), nil
}

// parseLastEventID extracts an SSE event ID from either the Last-Event-ID header or a query parameter.
// The header is preferred; the query parameter allows manual reconnects to resume from a known index.
func parseLastEventID(headerVal, queryVal string) uint64 {
	idStr := strings.TrimSpace(headerVal)
	if idStr == "" {
		idStr = strings.TrimSpace(queryVal)
	}
	if idStr == "" {
		return 0
	}

	id, err := strconv.ParseUint(idStr, 10, 64)
	if err != nil {
		return 0
	}
	return id
}
