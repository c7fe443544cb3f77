package users

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/2beens/gymtracker/internal/auth"
	"github.com/2beens/gymtracker/internal/middleware"
	"github.com/2beens/gymtracker/internal/telemetry/tracing"
	"github.com/2beens/gymtracker/pkg"

	log "github.com/sirupsen/logrus"
)

//go:generate mockgen -source=$GOFILE -destination=handler_mocks_test.go -package=users_test

type usersService interface {
	Register(ctx context.Context, req RegisterRequest) (*User, error)
	Login(ctx context.Context, req LoginRequest, clientIP string) (*LoginResult, error)
	Logout(ctx context.Context, principal *auth.Principal) error
	Get(ctx context.Context, id int) (*User, error)
	UpdateProfile(ctx context.Context, id int, req ProfileRequest) (*User, error)
	ChangePassword(ctx context.Context, principal *auth.Principal, req ChangePasswordRequest) (string, error)
	List(ctx context.Context, params ListParams) ([]UserWithStats, int, error)
	Create(ctx context.Context, req CreateUserRequest) (*User, error)
	SetRole(ctx context.Context, actorID, id int, role auth.Role) error
	AssignLevel(ctx context.Context, id int, levelID *int) error
	Delete(ctx context.Context, actorID, id int) error
}

type TokenResponse struct {
	Token string `json:"token"`
}

type Handler struct {
	service       usersService
	sessionTTL    time.Duration
	secureCookies bool
}

func NewHandler(service usersService, sessionTTL time.Duration, secureCookies bool) *Handler {
	return &Handler{
		service:       service,
		sessionTTL:    sessionTTL,
		secureCookies: secureCookies,
	}
}

// SessionCookie builds the cookie holding the session token for web pages.
func SessionCookie(token string, ttl time.Duration, secure bool) *http.Cookie {
	return &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
}

func ClearSessionCookie(secure bool) *http.Cookie {
	return &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if r.Header.Get("Content-Type") != pkg.ContentType.JSON {
		http.Error(w, "invalid content type", http.StatusBadRequest)
		return false
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		log.Tracef("unmarshal json request: %s", err)
		http.Error(w, "error, invalid json", http.StatusBadRequest)
		return false
	}
	return true
}

func principalOrUnauthorized(w http.ResponseWriter, r *http.Request) (*auth.Principal, bool) {
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		http.Error(w, "no can do", http.StatusUnauthorized)
	}
	return principal, ok
}

// writeServiceError maps domain errors to http responses.
func writeServiceError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, ErrUserNotFound):
		http.Error(w, "error, user not found", http.StatusNotFound)
	case errors.Is(err, ErrLevelNotFound):
		http.Error(w, "error, level not found", http.StatusNotFound)
	case errors.Is(err, ErrEmailTaken):
		http.Error(w, "error, email already registered", http.StatusConflict)
	case errors.Is(err, ErrInvalidCredentials):
		http.Error(w, "error, invalid email or password", http.StatusUnauthorized)
	case errors.Is(err, pkg.ErrPasswordTooLong):
		http.Error(w, "error, password longer than 72 bytes", http.StatusBadRequest)
	case errors.Is(err, ErrWrongPassword):
		http.Error(w, "error, current password is wrong", http.StatusBadRequest)
	case errors.Is(err, ErrSelfModification), errors.Is(err, ErrLastAdmin):
		http.Error(w, "error, "+err.Error(), http.StatusConflict)
	default:
		log.Errorf("%s: %s", op, err)
		http.Error(w, "error, "+op+" failed", http.StatusInternalServerError)
	}
}

func (handler *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.users.register")
	defer span.End()

	var req RegisterRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		http.Error(w, "error, invalid request: "+err.Error(), http.StatusBadRequest)
		return
	}

	user, err := handler.service.Register(ctx, req)
	if err != nil {
		writeServiceError(w, "register", err)
		return
	}

	pkg.WriteJSON(w, user, http.StatusCreated)
}

func (handler *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.users.login")
	defer span.End()

	var req LoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		http.Error(w, "error, invalid request: "+err.Error(), http.StatusBadRequest)
		return
	}

	clientIP, err := pkg.ReadUserIP(r)
	if err != nil {
		log.Debugf("login, read user ip: %s", err)
	}

	result, err := handler.service.Login(ctx, req, clientIP)
	if err != nil {
		writeServiceError(w, "login", err)
		return
	}

	http.SetCookie(w, SessionCookie(result.Token, handler.sessionTTL, handler.secureCookies))
	pkg.WriteJSON(w, result, http.StatusOK)
}

func (handler *Handler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.users.logout")
	defer span.End()

	principal, ok := principalOrUnauthorized(w, r)
	if !ok {
		return
	}

	if err := handler.service.Logout(ctx, principal); err != nil {
		if !errors.Is(err, auth.ErrSessionNotFound) {
			log.Errorf("logout user %d: %s", principal.UserID, err)
			http.Error(w, "error, logout failed", http.StatusInternalServerError)
			return
		}
	}

	http.SetCookie(w, ClearSessionCookie(handler.secureCookies))
	pkg.WriteTextResponseOK(w, "logged out")
}

func (handler *Handler) HandleMe(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.users.me")
	defer span.End()

	principal, ok := principalOrUnauthorized(w, r)
	if !ok {
		return
	}

	user, err := handler.service.Get(ctx, principal.UserID)
	if err != nil {
		writeServiceError(w, "get me", err)
		return
	}

	pkg.WriteJSON(w, user, http.StatusOK)
}

func (handler *Handler) HandleUpdateMe(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.users.updateme")
	defer span.End()

	principal, ok := principalOrUnauthorized(w, r)
	if !ok {
		return
	}

	var req ProfileRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		http.Error(w, "error, invalid request: "+err.Error(), http.StatusBadRequest)
		return
	}

	user, err := handler.service.UpdateProfile(ctx, principal.UserID, req)
	if err != nil {
		writeServiceError(w, "update profile", err)
		return
	}

	pkg.WriteJSON(w, user, http.StatusOK)
}

func (handler *Handler) HandleChangePassword(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.users.changepassword")
	defer span.End()

	principal, ok := principalOrUnauthorized(w, r)
	if !ok {
		return
	}

	var req ChangePasswordRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		http.Error(w, "error, invalid request: "+err.Error(), http.StatusBadRequest)
		return
	}

	token, err := handler.service.ChangePassword(ctx, principal, req)
	if err != nil {
		writeServiceError(w, "change password", err)
		return
	}

	http.SetCookie(w, SessionCookie(token, handler.sessionTTL, handler.secureCookies))
	pkg.WriteJSON(w, TokenResponse{Token: token}, http.StatusOK)
}
