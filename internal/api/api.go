package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sultanproperti/property-backend/internal/config"
	"github.com/sultanproperti/property-backend/internal/domain/models"
	"github.com/sultanproperti/property-backend/internal/ingest"
	"github.com/sultanproperti/property-backend/internal/storage"
)

const (
	serviceName    = "property-backend"
	serviceVersion = "1.0.0"
)

// Storage is the subset of relational storage the handlers use directly.
type Storage interface {
	SaveUser(ctx context.Context, username string, walletAddress *string) (*models.User, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	ListProperties(ctx context.Context) ([]models.Property, error)
	SearchProperties(ctx context.Context, query string) ([]models.Property, error)
}

// Ingestor runs the property + media ingestion pipeline.
type Ingestor interface {
	CreateProperty(ctx context.Context, req ingest.PropertyRequest, files []ingest.File) (*ingest.Result, error)
}

type APIServer struct {
	config  *config.Config
	logger  *slog.Logger
	server  *http.Server
	storage Storage
	ingest  Ingestor
}

func New(config *config.Config, logger *slog.Logger, storage Storage, ingestor Ingestor) *APIServer {
	return &APIServer{
		config: config,
		logger: logger,
		server: &http.Server{
			Addr: config.ApiHost + ":" + strconv.Itoa(config.ApiPort),
		},
		storage: storage,
		ingest:  ingestor,
	}
}

func (s *APIServer) Start() error {
	s.logger.Info("Starting server", slog.String("port", strconv.Itoa(s.config.ApiPort)))

	s.configureRouter()

	return s.server.ListenAndServe()
}

func (s *APIServer) MustStart() {
	err := s.Start()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		panic("Failed to start server: " + err.Error())
	}
}

func (s *APIServer) Stop(ctx context.Context) error {
	defer s.logger.Info("Server successfully stopped")
	return s.server.Shutdown(ctx)
}

func (s *APIServer) configureRouter() {
	router := mux.NewRouter()
	router.HandleFunc("/api/health", s.healthHandler()).Methods("GET")
	router.HandleFunc("/api/properties", s.propertiesHandler()).Methods("GET")
	router.HandleFunc("/api/search", s.searchHandler()).Methods("POST")
	router.HandleFunc("/api/users", s.createUserHandler()).Methods("POST")
	router.HandleFunc("/api/users/{user_id}/balance", s.balanceHandler()).Methods("GET")
	router.HandleFunc("/api/upload-property", s.uploadPropertyHandler()).Methods("POST")
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	cors := handlers.CORS(
		handlers.AllowedOrigins(s.config.Cors.AllowedOrigins),
		handlers.AllowedMethods([]string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
		handlers.AllowedHeaders([]string{"Content-Type", "Authorization"}),
		handlers.MaxAge(3600),
	)

	s.server.Handler = cors(requestLogger(s.logger)(metricsMiddleware()(router)))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func (s *APIServer) healthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"status":  "healthy",
			"service": serviceName,
			"version": serviceVersion,
		})
	}
}

func (s *APIServer) propertiesHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		properties, err := s.storage.ListProperties(r.Context())
		if err != nil {
			s.logger.Error("Failed to fetch properties", "error", err)
			writeError(w, http.StatusInternalServerError, "Failed to fetch properties")
			return
		}

		writeJSON(w, http.StatusOK, properties)
	}
}

type SearchRequest struct {
	Query string `json:"query"`
}

func (s *APIServer) searchHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req SearchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		results, err := s.storage.SearchProperties(r.Context(), req.Query)
		if err != nil {
			s.logger.Error("Search failed", slog.String("query", req.Query), "error", err)
			writeError(w, http.StatusInternalServerError, "Search failed")
			return
		}

		s.logger.Info("Search completed",
			slog.String("query", req.Query),
			slog.Int("results", len(results)),
		)
		writeJSON(w, http.StatusOK, results)
	}
}

type CreateUserRequest struct {
	Username      string  `json:"username"`
	WalletAddress *string `json:"wallet_address"`
}

func (s *APIServer) createUserHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateUserRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.Username == "" {
			writeError(w, http.StatusBadRequest, "username required")
			return
		}

		user, err := s.storage.SaveUser(r.Context(), req.Username, req.WalletAddress)
		if err != nil {
			if errors.Is(err, storage.ErrUsernameTaken) {
				writeError(w, http.StatusConflict, "username already taken")
				return
			}
			s.logger.Error("Failed to create user", slog.String("username", req.Username), "error", err)
			writeError(w, http.StatusInternalServerError, "Failed to create user")
			return
		}

		s.logger.Info("User created",
			slog.String("username", user.Username),
			slog.String("id", user.ID.String()),
		)
		writeJSON(w, http.StatusOK, user)
	}
}

func (s *APIServer) balanceHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		vars := mux.Vars(r)
		userID, err := uuid.Parse(vars["user_id"])
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid user id")
			return
		}

		user, err := s.storage.GetUserByID(r.Context(), userID)
		if err != nil {
			if errors.Is(err, storage.ErrUserNotFound) {
				writeError(w, http.StatusNotFound, "User not found")
				return
			}
			s.logger.Error("Failed to fetch user", slog.String("user_id", userID.String()), "error", err)
			writeError(w, http.StatusInternalServerError, "Failed to fetch user")
			return
		}

		writeJSON(w, http.StatusOK, user)
	}
}

type UploadResponse struct {
	Success      bool        `json:"success"`
	PropertyID   uuid.UUID   `json:"property_id"`
	MediaIDs     []uuid.UUID `json:"media_ids"`
	TokensEarned int64       `json:"tokens_earned"`
	Message      string      `json:"message"`
}

func (s *APIServer) uploadPropertyHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(s.config.Media.MaxUploadMB << 20); err != nil {
			writeError(w, http.StatusBadRequest, "invalid multipart form")
			return
		}

		userID, err := uuid.Parse(r.FormValue("user_id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "user_id required")
			return
		}

		req := ingest.PropertyRequest{
			UserID:      userID,
			Title:       r.FormValue("title"),
			Location:    r.FormValue("location"),
			Description: r.FormValue("description"),
			Price:       parseFloat(r.FormValue("price")),
			Bedrooms:    parseOptionalInt(r.FormValue("bedrooms")),
			Bathrooms:   parseOptionalInt(r.FormValue("bathrooms")),
			AreaSqm:     parseOptionalFloat(r.FormValue("area_sqm")),
		}

		files := s.collectFiles(r)

		result, err := s.ingest.CreateProperty(r.Context(), req, files)
		if err != nil {
			s.logger.Error("Failed to create property", "error", err)
			writeError(w, http.StatusInternalServerError, "Failed to create property")
			return
		}

		writeJSON(w, http.StatusOK, UploadResponse{
			Success:      true,
			PropertyID:   result.PropertyID,
			MediaIDs:     result.MediaIDs,
			TokensEarned: result.TokensEarned,
			Message:      fmt.Sprintf("Property created! Earned %d tokens", result.TokensEarned),
		})
	}
}

// collectFiles reads every "files" part into memory. A part that cannot be
// opened or read is skipped; it never aborts the request.
func (s *APIServer) collectFiles(r *http.Request) []ingest.File {
	var files []ingest.File

	if r.MultipartForm == nil {
		return files
	}

	for _, header := range r.MultipartForm.File["files"] {
		part, err := header.Open()
		if err != nil {
			s.logger.Warn("Skipping unreadable file part", slog.String("file", header.Filename), "error", err)
			continue
		}
		data, err := io.ReadAll(part)
		part.Close()
		if err != nil {
			s.logger.Warn("Skipping unreadable file part", slog.String("file", header.Filename), "error", err)
			continue
		}
		files = append(files, ingest.File{Name: header.Filename, Data: data})
	}

	return files
}

func parseFloat(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}

func parseOptionalInt(s string) *int {
	v, err := strconv.Atoi(s)
	if err != nil {
		return nil
	}
	return &v
}

func parseOptionalFloat(s string) *float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &v
}
