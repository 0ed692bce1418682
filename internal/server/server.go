// Package server provides the HTTP admin API for the article engine.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/article-engine/internal/config"
	"github.com/jonathan/article-engine/internal/db"
	"github.com/jonathan/article-engine/internal/queue"
	"github.com/jonathan/article-engine/internal/server/middleware"
	"github.com/jonathan/article-engine/internal/server/ratelimit"
	"github.com/jonathan/article-engine/internal/types"
	"github.com/jonathan/article-engine/internal/vault"
)

// ConfigurationStore persists generation configurations.
type ConfigurationStore interface {
	CreateConfiguration(ctx context.Context, cfg *types.Configuration) error
	GetConfiguration(ctx context.Context, id uuid.UUID) (*types.Configuration, error)
	ListConfigurations(ctx context.Context) ([]types.Configuration, error)
	UpdateConfiguration(ctx context.Context, cfg *types.Configuration) error
	DeleteConfiguration(ctx context.Context, id uuid.UUID) error
}

// AuditReader reads stored audit trails.
type AuditReader interface {
	ListAuditTrails(ctx context.Context, jobID uuid.UUID) ([]db.AuditRecord, error)
	RecentCost(ctx context.Context, limit int) (float64, error)
}

// Server represents the HTTP server
type Server struct {
	httpServer  *http.Server
	db          *db.DB
	queue       *queue.Queue
	configs     ConfigurationStore
	audit       AuditReader
	vault       *vault.Vault
	rateLimiter *ratelimit.Limiter
	jwtService  *JWTService
	secrets     *config.SecretConfig
}

// Config holds server configuration
type Config struct {
	Port        int
	DatabaseURL string
}

// New creates a new server instance backed by PostgreSQL.
func New(cfg Config) (*Server, error) {
	// Connect to database
	database, err := db.Connect(context.Background(), cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := database.Migrate(context.Background()); err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	v, err := vault.NewFromEnv()
	if err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to open credential vault: %w", err)
	}

	secretConfig, err := config.NewSecretConfig()
	if err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to create secret config: %w", err)
	}

	jwtConfig, err := config.NewJWTConfig()
	if err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to create JWT config: %w", err)
	}

	q := queue.New(database, database)
	s := newServer(cfg.Port, q, database, database, v, NewJWTService(jwtConfig), secretConfig)
	s.db = database
	return s, nil
}

// newServer wires the router and middleware. Tests construct servers through
// this with in-memory stores.
func newServer(port int, q *queue.Queue, configs ConfigurationStore, audit AuditReader,
	v *vault.Vault, jwtService *JWTService, secrets *config.SecretConfig) *Server {
	s := &Server{
		queue:      q,
		configs:    configs,
		audit:      audit,
		vault:      v,
		jwtService: jwtService,
		secrets:    secrets,
	}

	// Initialize rate limiter
	s.rateLimiter = ratelimit.NewLimiter(ratelimit.LoadConfig())

	// Setup router
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /auth/token", s.handleIssueToken)

	// Everything below requires an operator token.
	protected := http.NewServeMux()

	// Job endpoints
	protected.HandleFunc("POST /jobs", s.handleEnqueueJob)
	protected.HandleFunc("GET /jobs", s.handleListJobs)
	protected.HandleFunc("GET /jobs/{id}", s.handleGetJob)
	protected.HandleFunc("PATCH /jobs/{id}", s.handleUpdateJob)
	protected.HandleFunc("DELETE /jobs/{id}", s.handleDeleteJob)
	protected.HandleFunc("POST /jobs/{id}/cancel", s.handleCancelJob)
	protected.HandleFunc("POST /jobs/{id}/requeue", s.handleRequeueJob)
	protected.HandleFunc("GET /jobs/{id}/audit", s.handleJobAudit)

	// Category and tag endpoints
	protected.HandleFunc("GET /jobs/{id}/categories", s.handleListCategories)
	protected.HandleFunc("POST /jobs/{id}/categories", s.handleAddCategory)
	protected.HandleFunc("DELETE /jobs/{id}/categories/{name}", s.handleRemoveCategory)
	protected.HandleFunc("GET /jobs/{id}/tags", s.handleListTags)
	protected.HandleFunc("POST /jobs/{id}/tags", s.handleAddTag)
	protected.HandleFunc("DELETE /jobs/{id}/tags/{name}", s.handleRemoveTag)

	// Statistics endpoint
	protected.HandleFunc("GET /stats", s.handleStats)

	// Configuration endpoints
	protected.HandleFunc("POST /configurations", s.handleCreateConfiguration)
	protected.HandleFunc("GET /configurations", s.handleListConfigurations)
	protected.HandleFunc("GET /configurations/{id}", s.handleGetConfiguration)
	protected.HandleFunc("PUT /configurations/{id}", s.handleUpdateConfiguration)
	protected.HandleFunc("DELETE /configurations/{id}", s.handleDeleteConfiguration)

	mux.Handle("/", middleware.AuthMiddleware(jwtService.AsTokenValidator())(protected))

	// Create HTTP server
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      s.withRateLimit(s.withLogging(s.withCORS(mux))),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Start begins listening for requests
func (s *Server) Start() error {
	// Graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		log.Printf("Server starting on %s", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	<-stop
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	// Stop rate limiter cleanup goroutine
	if s.rateLimiter != nil {
		s.rateLimiter.Stop()
	}

	if s.db != nil {
		s.db.Close()
	}
	log.Println("Server stopped")
	return nil
}

// withCORS adds CORS headers
func (s *Server) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// withRateLimit adds rate limiting middleware
func (s *Server) withRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Extract client identifier (IP address)
		clientID := s.extractClientID(r)

		// Check rate limit
		allowed, info := s.rateLimiter.Allow(clientID, r.URL.Path, r.Method)

		if !allowed {
			s.setRateLimitHeaders(w, info)
			s.rateLimitResponse(w, info)
			return
		}

		// Set rate limit headers for successful requests
		s.setRateLimitHeaders(w, info)
		next.ServeHTTP(w, r)
	})
}

// withLogging adds request logging
func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		log.Printf("[%s] %s %s", r.Method, r.URL.Path, r.RemoteAddr)
		next.ServeHTTP(w, r)
		log.Printf("[%s] %s completed in %v", r.Method, r.URL.Path, time.Since(start))
	})
}

// handleHealth returns server health status
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}

// jsonResponse writes a JSON response
func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("Error encoding JSON response: %v", err)
	}
}

// errorResponse writes an error JSON response
func (s *Server) errorResponse(w http.ResponseWriter, status int, message string) {
	s.jsonResponse(w, status, map[string]string{"error": message})
}

// extractClientID extracts the client identifier from the request.
// For MVP, this uses the IP address from RemoteAddr.
// In the future, this could use X-Forwarded-For header (only from trusted proxies).
func (s *Server) extractClientID(r *http.Request) string {
	// Get IP from RemoteAddr (format: "IP:port")
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		// If parsing fails, use the whole RemoteAddr
		return r.RemoteAddr
	}
	return ip
}

// setRateLimitHeaders sets standard rate limit headers on the response.
func (s *Server) setRateLimitHeaders(w http.ResponseWriter, info ratelimit.Info) {
	if info.Limit > 0 {
		w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", info.Limit))
		w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", info.Remaining))
		w.Header().Set("X-RateLimit-Reset", fmt.Sprintf("%d", info.ResetTime.Unix()))
	}
}

// rateLimitResponse writes a 429 Too Many Requests response with rate limit information.
func (s *Server) rateLimitResponse(w http.ResponseWriter, info ratelimit.Info) {
	response := map[string]interface{}{
		"error":     "rate_limit_exceeded",
		"message":   "Rate limit exceeded. Please try again later.",
		"limit":     info.Limit,
		"remaining": info.Remaining,
		"reset_at":  info.ResetTime.Format(time.RFC3339),
	}

	if info.RetryAfter > 0 {
		response["retry_after"] = int(info.RetryAfter.Seconds())
		w.Header().Set("Retry-After", fmt.Sprintf("%d", int(info.RetryAfter.Seconds())))
	}

	// Log rate limit hit
	log.Printf("[rate-limit] Rate limit exceeded: Limit=%d Remaining=%d Reset=%s",
		info.Limit, info.Remaining, info.ResetTime.Format(time.RFC3339))

	s.jsonResponse(w, http.StatusTooManyRequests, response)
}
