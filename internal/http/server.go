package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"smec/conclave/internal/catalog"
	"smec/conclave/internal/model"
	"smec/conclave/internal/registration"
)

var requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "conclave_api_requests_total",
	Help: "Registration API calls by operation and outcome.",
}, []string{"operation", "outcome"})

type Server struct {
	service     *registration.Service
	passes      *catalog.Catalog
	corsOrigins []string
}

func NewServer(service *registration.Service, passes *catalog.Catalog, corsOrigins []string) *Server {
	if len(corsOrigins) == 0 {
		corsOrigins = []string{"*"}
	}
	return &Server{service: service, passes: passes, corsOrigins: corsOrigins}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.corsOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Post("/send-email", s.handleSendEmail)
	r.Post("/register", s.handleRegister)
	r.Post("/login", s.handleLogin)
	r.Post("/logout", s.handleLogout)
	r.Post("/reset-password-request", s.handleResetRequest)
	r.Post("/reset-password", s.handleResetPassword)

	r.Get("/passes", s.handleListPasses)
	r.Get("/passes/{category}", s.handleCategoryPasses)

	return r
}

type emailRequest struct {
	Email string `json:"email"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type logoutRequest struct {
	AccessToken string `json:"accessToken"`
}

type resetPasswordRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

type messageResponse struct {
	Message string `json:"message"`
}

type errorResponse struct {
	Error                     string `json:"error"`
	Code                      string `json:"code"`
	RequiresEmailVerification bool   `json:"requiresEmailVerification,omitempty"`
}

func (s *Server) handleSendEmail(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if err := decodeJSON(r, &req); err != nil {
		s.invalidBody(w, "send_email")
		return
	}
	msg, err := s.service.Subscribe(r.Context(), req.Email)
	if err != nil {
		s.fail(w, "send_email", err)
		return
	}
	s.ok(w, "send_email", messageResponse{Message: msg})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registration.Request
	if err := decodeJSON(r, &req); err != nil {
		s.invalidBody(w, "register")
		return
	}
	result, err := s.service.Register(r.Context(), req)
	if err != nil {
		s.fail(w, "register", err)
		return
	}
	s.ok(w, "register", result)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		s.invalidBody(w, "login")
		return
	}
	result, err := s.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		s.fail(w, "login", err)
		return
	}
	s.ok(w, "login", result)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	var req logoutRequest
	if err := decodeJSON(r, &req); err != nil {
		s.invalidBody(w, "logout")
		return
	}
	msg, err := s.service.Logout(r.Context(), req.AccessToken)
	if err != nil {
		s.fail(w, "logout", err)
		return
	}
	s.ok(w, "logout", messageResponse{Message: msg})
}

func (s *Server) handleResetRequest(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if err := decodeJSON(r, &req); err != nil {
		s.invalidBody(w, "reset_request")
		return
	}
	msg, err := s.service.RequestPasswordReset(r.Context(), req.Email)
	if err != nil {
		s.fail(w, "reset_request", err)
		return
	}
	s.ok(w, "reset_request", messageResponse{Message: msg})
}

func (s *Server) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		s.invalidBody(w, "reset_password")
		return
	}
	msg, err := s.service.CompletePasswordReset(r.Context(), req.Token, req.Password)
	if err != nil {
		s.fail(w, "reset_password", err)
		return
	}
	s.ok(w, "reset_password", messageResponse{Message: msg})
}

type categoryPasses struct {
	Category model.Category `json:"category"`
	Passes   []catalog.Pass `json:"passes"`
}

func (s *Server) handleListPasses(w http.ResponseWriter, _ *http.Request) {
	categories := s.passes.Categories()
	resp := make([]categoryPasses, 0, len(categories))
	for _, category := range categories {
		resp = append(resp, categoryPasses{Category: category, Passes: s.passes.Display(category)})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCategoryPasses(w http.ResponseWriter, r *http.Request) {
	category, err := model.ParseCategory(chi.URLParam(r, "category"))
	if err != nil {
		writeError(w, http.StatusNotFound, "not_found", "Unknown pass category")
		return
	}
	writeJSON(w, http.StatusOK, categoryPasses{Category: category, Passes: s.passes.Display(category)})
}

func (s *Server) ok(w http.ResponseWriter, operation string, payload interface{}) {
	requestsTotal.WithLabelValues(operation, "ok").Inc()
	writeJSON(w, http.StatusOK, payload)
}

func (s *Server) invalidBody(w http.ResponseWriter, operation string) {
	requestsTotal.WithLabelValues(operation, "invalid_request").Inc()
	writeError(w, http.StatusBadRequest, "invalid_request", "Invalid request body")
}

// fail writes err using its taxonomy kind. Errors without a kind become a
// generic 500 so collaborator details never reach the caller.
func (s *Server) fail(w http.ResponseWriter, operation string, err error) {
	if errors.Is(err, registration.ErrResetUnsupported) {
		requestsTotal.WithLabelValues(operation, "unsupported").Inc()
		writeError(w, http.StatusNotImplemented, "unsupported", "Password reset is completed on the hosted reset page")
		return
	}

	var regErr *registration.Error
	if !errors.As(err, &regErr) {
		requestsTotal.WithLabelValues(operation, "internal").Inc()
		writeError(w, http.StatusInternalServerError, "internal", "Internal server error")
		return
	}
	requestsTotal.WithLabelValues(operation, string(regErr.Kind)).Inc()
	writeJSON(w, statusFor(regErr.Kind), errorResponse{
		Error:                     regErr.Message,
		Code:                      string(regErr.Kind),
		RequiresEmailVerification: regErr.Kind == registration.KindUnverifiedEmail,
	})
}

func statusFor(kind registration.Kind) int {
	switch kind {
	case registration.KindValidation, registration.KindDuplicate:
		return http.StatusBadRequest
	case registration.KindUnverifiedEmail, registration.KindInvalidCreds:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

func decodeJSON(r *http.Request, out interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(out)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Error: message, Code: code})
}
