package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Nagthis/Adweb-Proyect/internal/auth"
	"github.com/Nagthis/Adweb-Proyect/internal/config"
	"github.com/Nagthis/Adweb-Proyect/internal/docstore"
	"github.com/Nagthis/Adweb-Proyect/internal/identity"
	"github.com/Nagthis/Adweb-Proyect/internal/model"
	"github.com/Nagthis/Adweb-Proyect/internal/store"
)

// ProviderFactory builds one identity provider per gateway session.
// Providers share the account backend but each owns its own session.
type ProviderFactory func() identity.Provider

// Server exposes the catalog over JSON. Each login or register creates
// a session-scoped store with its own course subscription; a bearer
// token resolves back to that session and logout tears it down.
type Server struct {
	cfg       config.Config
	docs      docstore.Store
	providers ProviderFactory
	validate  *validator.Validate

	mu       sync.Mutex
	sessions map[string]*session

	sweepOnce sync.Once
	sweepStop chan struct{}
}

// sessionSweepInterval bounds how long an expired session's listener
// can linger on an otherwise idle server.
const sessionSweepInterval = time.Minute

type session struct {
	store       *store.Store
	listener    *store.Listener
	unsubscribe func()
	expiresAt   time.Time
}

func NewServer(cfg config.Config, docs docstore.Store, providers ProviderFactory) *Server {
	s := &Server{
		cfg:       cfg,
		docs:      docs,
		providers: providers,
		validate:  validator.New(),
		sessions:  make(map[string]*session),
		sweepStop: make(chan struct{}),
	}
	go s.sweepLoop()
	return s
}

func (s *Server) sweepLoop() {
	ticker := time.NewTicker(sessionSweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.sweepStop:
			return
		case <-ticker.C:
			s.sweepExpired()
		}
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Post("/auth/register", s.handleRegister)
	r.Post("/auth/login", s.handleLogin)
	r.With(s.authMiddleware).Post("/auth/logout", s.handleLogout)
	r.With(s.authMiddleware).Put("/auth/password", s.handleChangePassword)
	r.With(s.authMiddleware).Get("/auth/me", s.handleGetMe)

	r.Route("/courses", func(r chi.Router) {
		r.Use(s.authMiddleware)
		r.Get("/", s.handleListCourses)
		r.With(s.requireAdmin).Post("/", s.handleCreateCourse)
		r.Get("/watch", s.handleWatchCourses)
		r.Get("/{courseID}", s.handleGetCourse)
		r.With(s.requireAdmin).Patch("/{courseID}", s.handleUpdateCourse)
		r.With(s.requireAdmin).Delete("/{courseID}", s.handleDeleteCourse)
		r.Post("/{courseID}/enroll", s.handleEnroll)
		r.Post("/{courseID}/unenroll", s.handleUnenroll)
	})
	r.With(s.authMiddleware).Get("/enrollments", s.handleListEnrollments)

	return r
}

// Close stops the expiry sweeper and tears down every active session.
func (s *Server) Close() {
	s.sweepOnce.Do(func() { close(s.sweepStop) })
	s.mu.Lock()
	sessions := make([]*session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		sessions = append(sessions, sess)
	}
	s.sessions = make(map[string]*session)
	s.mu.Unlock()
	for _, sess := range sessions {
		sess.teardown()
	}
}

func (sess *session) teardown() {
	sess.unsubscribe()
	sess.listener.Close()
}

type credentialsRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

type authResponse struct {
	AccessToken string `json:"accessToken"`
	Email       string `json:"email"`
	Admin       bool   `json:"admin"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	s.handleSession(w, r, func(ctx context.Context, st *store.Store, req credentialsRequest) error {
		return st.Register(ctx, req.Email, req.Password)
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	s.handleSession(w, r, func(ctx context.Context, st *store.Store, req credentialsRequest) error {
		return st.Login(ctx, req.Email, req.Password)
	})
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request, establish func(context.Context, *store.Store, credentialsRequest) error) {
	var req credentialsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	if err := s.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_credentials_format")
		return
	}

	provider := s.providers()
	st := store.New(s.cfg, provider, s.docs)
	if err := establish(r.Context(), st, req); err != nil {
		switch {
		case errors.Is(err, identity.ErrInvalidCredentials):
			writeError(w, http.StatusUnauthorized, "invalid_credentials")
		case errors.Is(err, identity.ErrEmailTaken):
			writeError(w, http.StatusConflict, "email_taken")
		default:
			writeError(w, http.StatusInternalServerError, "server_error")
		}
		return
	}

	user := provider.CurrentUser()
	token, err := auth.NewAccessToken(s.cfg.JWTSecret, s.cfg.JWTIssuer, s.cfg.AccessTokenTTL, auth.Claims{
		UserID: user.ID,
		Email:  user.Email,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "token_error")
		return
	}

	// The session outlives this request; its subscription runs on its
	// own lifetime and ends at logout or server shutdown.
	listener, err := st.ListenCourses(context.Background())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	unsubscribe := provider.OnAuthStateChange(func(user *model.User) {
		st.SetUser(user)
	})
	st.FetchUserEnrollments(r.Context())

	s.sweepExpired()
	s.mu.Lock()
	// Tokens carry a jti so collisions should not happen; if one does,
	// the replaced session must not leak its listener.
	prior := s.sessions[token]
	s.sessions[token] = &session{
		store:       st,
		listener:    listener,
		unsubscribe: unsubscribe,
		expiresAt:   time.Now().Add(s.cfg.AccessTokenTTL),
	}
	s.mu.Unlock()
	if prior != nil {
		prior.teardown()
	}

	writeJSON(w, http.StatusOK, authResponse{
		AccessToken: token,
		Email:       st.UserEmail(),
		Admin:       st.IsAdmin(),
	})
}

func (s *Server) sweepExpired() {
	now := time.Now()
	s.mu.Lock()
	var expired []*session
	for token, sess := range s.sessions {
		if now.After(sess.expiresAt) {
			delete(s.sessions, token)
			expired = append(expired, sess)
		}
	}
	s.mu.Unlock()
	for _, sess := range expired {
		sess.teardown()
	}
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	token := tokenFromRequest(r)
	s.mu.Lock()
	sess := s.sessions[token]
	delete(s.sessions, token)
	s.mu.Unlock()
	if sess == nil {
		writeError(w, http.StatusUnauthorized, "session_expired")
		return
	}

	if err := sess.store.Logout(r.Context()); err != nil {
		sess.teardown()
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	sess.teardown()
	writeJSON(w, http.StatusOK, map[string]string{"status": "signed_out"})
}

type passwordRequest struct {
	NewPassword string `json:"newPassword" validate:"required,min=6"`
}

func (s *Server) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	sess := sessionFromContext(r.Context())
	var req passwordRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	if err := s.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_password_format")
		return
	}
	if err := sess.store.UpdateUserPassword(r.Context(), req.NewPassword); err != nil {
		if errors.Is(err, store.ErrUnauthenticated) {
			writeError(w, http.StatusUnauthorized, "not_authenticated")
			return
		}
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "password_updated"})
}

func (s *Server) handleGetMe(w http.ResponseWriter, r *http.Request) {
	sess := sessionFromContext(r.Context())
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"email": sess.store.UserEmail(),
		"admin": sess.store.IsAdmin(),
	})
}

func (s *Server) handleListCourses(w http.ResponseWriter, r *http.Request) {
	sess := sessionFromContext(r.Context())
	writeJSON(w, http.StatusOK, sess.store.OrderedCourses())
}

func (s *Server) handleGetCourse(w http.ResponseWriter, r *http.Request) {
	sess := sessionFromContext(r.Context())
	course, ok := sess.store.CourseByID(chi.URLParam(r, "courseID"))
	if !ok {
		writeError(w, http.StatusNotFound, "course_not_found")
		return
	}
	writeJSON(w, http.StatusOK, course)
}

type courseRequest struct {
	Code        string  `json:"codigo" validate:"required"`
	Name        string  `json:"nombre" validate:"required"`
	Status      string  `json:"estado"`
	Price       float64 `json:"precio" validate:"gte=0"`
	Duration    string  `json:"duracion"`
	Description string  `json:"descripcion"`
	Capacity    int     `json:"cupos" validate:"gte=0"`
	Enrolled    int     `json:"inscritos" validate:"gte=0"`
	Image       string  `json:"img"`
}

func (s *Server) handleCreateCourse(w http.ResponseWriter, r *http.Request) {
	sess := sessionFromContext(r.Context())
	var req courseRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	if err := s.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_course")
		return
	}

	id, err := sess.store.AddCourse(r.Context(), model.Course{
		Code:        req.Code,
		Name:        req.Name,
		Status:      req.Status,
		Price:       req.Price,
		Duration:    req.Duration,
		Description: req.Description,
		Capacity:    req.Capacity,
		Enrolled:    req.Enrolled,
		Image:       req.Image,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}

type courseUpdateRequest struct {
	Code        *string  `json:"codigo"`
	Name        *string  `json:"nombre"`
	Status      *string  `json:"estado"`
	Price       *float64 `json:"precio" validate:"omitempty,gte=0"`
	Duration    *string  `json:"duracion"`
	Description *string  `json:"descripcion"`
	Capacity    *int     `json:"cupos" validate:"omitempty,gte=0"`
	Enrolled    *int     `json:"inscritos" validate:"omitempty,gte=0"`
	Image       *string  `json:"img"`
}

func (req courseUpdateRequest) fields() map[string]interface{} {
	fields := make(map[string]interface{})
	if req.Code != nil {
		fields["codigo"] = *req.Code
	}
	if req.Name != nil {
		fields["nombre"] = *req.Name
	}
	if req.Status != nil {
		fields["estado"] = *req.Status
	}
	if req.Price != nil {
		fields["precio"] = *req.Price
	}
	if req.Duration != nil {
		fields["duracion"] = *req.Duration
	}
	if req.Description != nil {
		fields["descripcion"] = *req.Description
	}
	if req.Capacity != nil {
		fields["cupos"] = *req.Capacity
	}
	if req.Enrolled != nil {
		fields["inscritos"] = *req.Enrolled
	}
	if req.Image != nil {
		fields["img"] = *req.Image
	}
	return fields
}

func (s *Server) handleUpdateCourse(w http.ResponseWriter, r *http.Request) {
	sess := sessionFromContext(r.Context())
	var req courseUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	if err := s.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_course")
		return
	}
	fields := req.fields()
	if len(fields) == 0 {
		writeError(w, http.StatusBadRequest, "empty_update")
		return
	}

	err := sess.store.UpdateCourse(r.Context(), chi.URLParam(r, "courseID"), fields)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			writeError(w, http.StatusNotFound, "course_not_found")
			return
		}
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

func (s *Server) handleDeleteCourse(w http.ResponseWriter, r *http.Request) {
	sess := sessionFromContext(r.Context())
	if err := sess.store.DeleteCourse(r.Context(), chi.URLParam(r, "courseID")); err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) handleEnroll(w http.ResponseWriter, r *http.Request) {
	sess := sessionFromContext(r.Context())
	// The enroll protocol works off the session's mirrored course, the
	// same snapshot a UI would hand it.
	course, ok := sess.store.CourseByID(chi.URLParam(r, "courseID"))
	if !ok {
		writeError(w, http.StatusNotFound, "course_not_found")
		return
	}

	if err := sess.store.EnrollInCourse(r.Context(), course); err != nil {
		switch {
		case errors.Is(err, store.ErrUnauthenticated):
			writeError(w, http.StatusUnauthorized, "not_authenticated")
		case errors.Is(err, store.ErrAlreadyEnrolled):
			writeError(w, http.StatusConflict, "already_enrolled")
		case errors.Is(err, store.ErrNoCapacity):
			writeError(w, http.StatusConflict, "no_capacity")
		default:
			writeError(w, http.StatusInternalServerError, "server_error")
		}
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "enrolled"})
}

func (s *Server) handleUnenroll(w http.ResponseWriter, r *http.Request) {
	sess := sessionFromContext(r.Context())
	course, ok := sess.store.CourseByID(chi.URLParam(r, "courseID"))
	if !ok {
		writeError(w, http.StatusNotFound, "course_not_found")
		return
	}

	if err := sess.store.UnenrollFromCourse(r.Context(), course); err != nil {
		if errors.Is(err, store.ErrUnauthenticated) {
			writeError(w, http.StatusUnauthorized, "not_authenticated")
			return
		}
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "unenrolled"})
}

func (s *Server) handleListEnrollments(w http.ResponseWriter, r *http.Request) {
	sess := sessionFromContext(r.Context())
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"courseIds": sess.store.EnrolledCourseIDs(),
	})
}

// Middleware and helpers.

type sessionKey struct{}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := tokenFromRequest(r)
		if token == "" {
			writeError(w, http.StatusUnauthorized, "missing_token")
			return
		}
		if _, err := auth.ParseToken(s.cfg.JWTSecret, token); err != nil {
			writeError(w, http.StatusUnauthorized, "invalid_token")
			return
		}

		s.mu.Lock()
		sess := s.sessions[token]
		s.mu.Unlock()
		if sess == nil {
			writeError(w, http.StatusUnauthorized, "session_expired")
			return
		}

		ctx := context.WithValue(r.Context(), sessionKey{}, sess)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := sessionFromContext(r.Context())
		if sess == nil || !sess.store.IsAdmin() {
			writeError(w, http.StatusForbidden, "admin_only")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func sessionFromContext(ctx context.Context) *session {
	value := ctx.Value(sessionKey{})
	sess, _ := value.(*session)
	return sess
}

func tokenFromRequest(r *http.Request) string {
	if token := bearerToken(r.Header.Get("Authorization")); token != "" {
		return token
	}
	// Websocket clients cannot set headers; they pass the token in the
	// query string instead.
	return r.URL.Query().Get("token")
}

func bearerToken(header string) string {
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return ""
	}
	return strings.TrimSpace(parts[1])
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

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}
