package web

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/2beens/gymtracker/internal/admin"
	"github.com/2beens/gymtracker/internal/auth"
	"github.com/2beens/gymtracker/internal/progress"
	"github.com/2beens/gymtracker/internal/telemetry/tracing"
	"github.com/2beens/gymtracker/internal/users"
	"github.com/2beens/gymtracker/internal/workouts"
	"github.com/2beens/gymtracker/pkg"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
)

//go:generate mockgen -source=$GOFILE -destination=handler_mocks_test.go -package=web_test

const (
	dashboardPath = "/app/dashboard"
	loginPath     = "/login"
)

type accountService interface {
	Register(ctx context.Context, req users.RegisterRequest) (*users.User, error)
	Login(ctx context.Context, req users.LoginRequest, clientIP string) (*users.LoginResult, error)
	Logout(ctx context.Context, principal *auth.Principal) error
	Get(ctx context.Context, id int) (*users.User, error)
}

type progressService interface {
	Dashboard(ctx context.Context, userID int) (*progress.Dashboard, error)
	ExerciseProgress(ctx context.Context, userID int, exercise string, from, to time.Time) (*progress.ExerciseProgress, error)
	ExercisesSummary(ctx context.Context, userID int) ([]progress.ExerciseSummary, error)
	WeeklyVolume(ctx context.Context, userID int) ([]progress.WeekVolume, error)
}

type analyticsService interface {
	Overview(ctx context.Context) (*admin.Overview, error)
	UserActivity(ctx context.Context) ([]admin.UserActivity, error)
}

type page struct {
	Title     string
	LoggedIn  bool
	IsAdmin   bool
	Error     string
	ChartData any
}

type authPage struct {
	page
	Name  string
	Email string
}

type dashboardPage struct {
	page
	Dashboard *progress.Dashboard
}

type progressPage struct {
	page
	Exercises []progress.ExerciseSummary
	Selected  string
	From      string
	To        string
	Progress  *progress.ExerciseProgress
}

type adminPage struct {
	page
	Overview *admin.Overview
	Activity []admin.UserActivity
}

type adminUserPage struct {
	page
	User      *users.User
	Dashboard *progress.Dashboard
	Exercises []progress.ExerciseSummary
}

type errorPage struct {
	page
	Status  int
	Message string
}

type Handler struct {
	templates     *Templates
	accounts      accountService
	progress      progressService
	analytics     analyticsService
	sessionTTL    time.Duration
	secureCookies bool
}

func NewHandler(
	templates *Templates,
	accounts accountService,
	progress progressService,
	analytics analyticsService,
	sessionTTL time.Duration,
	secureCookies bool,
) *Handler {
	return &Handler{
		templates:     templates,
		accounts:      accounts,
		progress:      progress,
		analytics:     analytics,
		sessionTTL:    sessionTTL,
		secureCookies: secureCookies,
	}
}

func newPage(title string, principal *auth.Principal) page {
	return page{
		Title:    title,
		LoggedIn: principal != nil,
		IsAdmin:  principal.IsAdmin(),
	}
}

func (handler *Handler) render(w http.ResponseWriter, name string, data any, status int) {
	body, err := handler.templates.Render(name, data)
	if err != nil {
		log.Errorf("render page %s: %s", name, err)
		http.Error(w, "error, render page", http.StatusInternalServerError)
		return
	}
	pkg.WriteResponseBytes(w, pkg.ContentType.HTML, body, status)
}

func (handler *Handler) renderError(w http.ResponseWriter, principal *auth.Principal, status int, message string) {
	handler.render(w, "error.html", errorPage{
		page:    newPage(http.StatusText(status), principal),
		Status:  status,
		Message: message,
	}, status)
}

// principal returns the logged in user; the auth middleware already sent
// anonymous visitors of /app/ pages to the login page.
func (handler *Handler) principal(w http.ResponseWriter, r *http.Request) (*auth.Principal, bool) {
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		http.Redirect(w, r, loginPath, http.StatusSeeOther)
	}
	return principal, ok
}

func (handler *Handler) adminPrincipal(w http.ResponseWriter, r *http.Request) (*auth.Principal, bool) {
	principal, ok := handler.principal(w, r)
	if !ok {
		return nil, false
	}
	if !principal.IsAdmin() {
		log.Warnf("user %d denied access to %s", principal.UserID, r.URL.Path)
		handler.renderError(w, principal, http.StatusForbidden, "This page is for admins only.")
		return nil, false
	}
	return principal, true
}

func (handler *Handler) HandleRoot(w http.ResponseWriter, r *http.Request) {
	if _, ok := auth.PrincipalFromContext(r.Context()); ok {
		http.Redirect(w, r, dashboardPath, http.StatusSeeOther)
		return
	}
	http.Redirect(w, r, loginPath, http.StatusSeeOther)
}

func (handler *Handler) HandleLoginPage(w http.ResponseWriter, r *http.Request) {
	if _, ok := auth.PrincipalFromContext(r.Context()); ok {
		http.Redirect(w, r, dashboardPath, http.StatusSeeOther)
		return
	}
	handler.render(w, "login.html", authPage{page: newPage("Log in", nil)}, http.StatusOK)
}

func (handler *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.web.login")
	defer span.End()

	if err := r.ParseForm(); err != nil {
		handler.renderError(w, nil, http.StatusBadRequest, "Invalid form.")
		return
	}

	req := users.LoginRequest{
		Email:    r.PostForm.Get("email"),
		Password: r.PostForm.Get("password"),
	}
	data := authPage{page: newPage("Log in", nil), Email: strings.TrimSpace(req.Email)}
	if err := req.Validate(); err != nil {
		data.Error = "Email and password are required."
		handler.render(w, "login.html", data, http.StatusBadRequest)
		return
	}

	clientIP, err := pkg.ReadUserIP(r)
	if err != nil {
		log.Debugf("web login, read user ip: %s", err)
	}

	result, err := handler.accounts.Login(ctx, req, clientIP)
	if err != nil {
		if errors.Is(err, users.ErrInvalidCredentials) {
			data.Error = "Invalid email or password."
			handler.render(w, "login.html", data, http.StatusUnauthorized)
			return
		}
		log.Errorf("web login: %s", err)
		data.Error = "Login failed, please try again."
		handler.render(w, "login.html", data, http.StatusInternalServerError)
		return
	}

	http.SetCookie(w, users.SessionCookie(result.Token, handler.sessionTTL, handler.secureCookies))
	http.Redirect(w, r, dashboardPath, http.StatusSeeOther)
}

func (handler *Handler) HandleRegisterPage(w http.ResponseWriter, r *http.Request) {
	if _, ok := auth.PrincipalFromContext(r.Context()); ok {
		http.Redirect(w, r, dashboardPath, http.StatusSeeOther)
		return
	}
	handler.render(w, "register.html", authPage{page: newPage("Register", nil)}, http.StatusOK)
}

func (handler *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.web.register")
	defer span.End()

	if err := r.ParseForm(); err != nil {
		handler.renderError(w, nil, http.StatusBadRequest, "Invalid form.")
		return
	}

	req := users.RegisterRequest{
		Name:     r.PostForm.Get("name"),
		Email:    r.PostForm.Get("email"),
		Password: r.PostForm.Get("password"),
	}
	data := authPage{
		page:  newPage("Register", nil),
		Name:  strings.TrimSpace(req.Name),
		Email: strings.TrimSpace(req.Email),
	}
	if err := req.Validate(); err != nil {
		data.Error = "Please check your details: " + err.Error()
		handler.render(w, "register.html", data, http.StatusBadRequest)
		return
	}

	if _, err := handler.accounts.Register(ctx, req); err != nil {
		if errors.Is(err, users.ErrEmailTaken) {
			data.Error = "This email is already registered."
			handler.render(w, "register.html", data, http.StatusConflict)
			return
		}
		if errors.Is(err, pkg.ErrPasswordTooLong) {
			data.Error = "Password is too long."
			handler.render(w, "register.html", data, http.StatusBadRequest)
			return
		}
		log.Errorf("web register: %s", err)
		data.Error = "Registration failed, please try again."
		handler.render(w, "register.html", data, http.StatusInternalServerError)
		return
	}

	clientIP, err := pkg.ReadUserIP(r)
	if err != nil {
		log.Debugf("web register, read user ip: %s", err)
	}
	result, err := handler.accounts.Login(ctx, users.LoginRequest{Email: req.Email, Password: req.Password}, clientIP)
	if err != nil {
		log.Errorf("web register, login new user: %s", err)
		http.Redirect(w, r, loginPath, http.StatusSeeOther)
		return
	}

	http.SetCookie(w, users.SessionCookie(result.Token, handler.sessionTTL, handler.secureCookies))
	http.Redirect(w, r, dashboardPath, http.StatusSeeOther)
}

func (handler *Handler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.web.logout")
	defer span.End()

	if principal, ok := auth.PrincipalFromContext(ctx); ok {
		if err := handler.accounts.Logout(ctx, principal); err != nil && !errors.Is(err, auth.ErrSessionNotFound) {
			log.Errorf("web logout user %d: %s", principal.UserID, err)
		}
	}

	http.SetCookie(w, users.ClearSessionCookie(handler.secureCookies))
	http.Redirect(w, r, loginPath, http.StatusSeeOther)
}

func (handler *Handler) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.web.dashboard")
	defer span.End()

	principal, ok := handler.principal(w, r)
	if !ok {
		return
	}

	dashboard, err := handler.progress.Dashboard(ctx, principal.UserID)
	if err != nil {
		log.Errorf("web dashboard for user %d: %s", principal.UserID, err)
		handler.renderError(w, principal, http.StatusInternalServerError, "Could not load the dashboard.")
		return
	}
	volume, err := handler.progress.WeeklyVolume(ctx, principal.UserID)
	if err != nil {
		log.Errorf("web weekly volume for user %d: %s", principal.UserID, err)
		handler.renderError(w, principal, http.StatusInternalServerError, "Could not load the dashboard.")
		return
	}

	data := dashboardPage{
		page:      newPage("Dashboard", principal),
		Dashboard: dashboard,
	}
	data.ChartData = map[string]any{
		"activity": dashboard.Activity,
		"volume":   volume,
	}
	handler.render(w, "dashboard.html", data, http.StatusOK)
}

func (handler *Handler) HandleProgress(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.web.progress")
	defer span.End()

	principal, ok := handler.principal(w, r)
	if !ok {
		return
	}

	query := r.URL.Query()
	from, err := workouts.ParseDateParam(query.Get("from"))
	if err != nil {
		handler.renderError(w, principal, http.StatusBadRequest, "Invalid from date.")
		return
	}
	to, err := workouts.ParseDateParam(query.Get("to"))
	if err != nil {
		handler.renderError(w, principal, http.StatusBadRequest, "Invalid to date.")
		return
	}

	summaries, err := handler.progress.ExercisesSummary(ctx, principal.UserID)
	if err != nil {
		log.Errorf("web exercises summary for user %d: %s", principal.UserID, err)
		handler.renderError(w, principal, http.StatusInternalServerError, "Could not load your exercises.")
		return
	}

	data := progressPage{
		page:      newPage("Progress", principal),
		Exercises: summaries,
		Selected:  strings.TrimSpace(query.Get("exercise")),
		From:      query.Get("from"),
		To:        query.Get("to"),
	}
	if data.Selected == "" && len(summaries) > 0 {
		data.Selected = summaries[0].Exercise
	}

	if data.Selected != "" {
		exerciseProgress, err := handler.progress.ExerciseProgress(ctx, principal.UserID, data.Selected, from, to)
		if err != nil {
			log.Errorf("web exercise progress for user %d: %s", principal.UserID, err)
			handler.renderError(w, principal, http.StatusInternalServerError, "Could not load the exercise progress.")
			return
		}
		data.Progress = exerciseProgress
		data.ChartData = map[string]any{
			"points": exerciseProgress.Points,
		}
	}

	handler.render(w, "progress.html", data, http.StatusOK)
}

func (handler *Handler) HandleAdmin(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.web.admin")
	defer span.End()

	principal, ok := handler.adminPrincipal(w, r)
	if !ok {
		return
	}

	overview, err := handler.analytics.Overview(ctx)
	if err != nil {
		log.Errorf("web admin overview: %s", err)
		handler.renderError(w, principal, http.StatusInternalServerError, "Could not load the analytics.")
		return
	}
	activity, err := handler.analytics.UserActivity(ctx)
	if err != nil {
		log.Errorf("web admin user activity: %s", err)
		handler.renderError(w, principal, http.StatusInternalServerError, "Could not load the analytics.")
		return
	}

	data := adminPage{
		page:     newPage("Admin", principal),
		Overview: overview,
		Activity: activity,
	}
	data.ChartData = map[string]any{
		"workoutsPerWeek": overview.WorkoutsPerWeek,
		"usersPerLevel":   overview.UsersPerLevel,
	}
	handler.render(w, "admin.html", data, http.StatusOK)
}

func (handler *Handler) HandleAdminUser(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.web.adminuser")
	defer span.End()

	principal, ok := handler.adminPrincipal(w, r)
	if !ok {
		return
	}

	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		handler.renderError(w, principal, http.StatusBadRequest, "Invalid user id.")
		return
	}

	user, err := handler.accounts.Get(ctx, id)
	if err != nil {
		if errors.Is(err, users.ErrUserNotFound) {
			handler.renderError(w, principal, http.StatusNotFound, "User not found.")
			return
		}
		log.Errorf("web admin get user %d: %s", id, err)
		handler.renderError(w, principal, http.StatusInternalServerError, "Could not load the user.")
		return
	}

	dashboard, err := handler.progress.Dashboard(ctx, id)
	if err != nil {
		log.Errorf("web admin dashboard for user %d: %s", id, err)
		handler.renderError(w, principal, http.StatusInternalServerError, "Could not load the user.")
		return
	}
	volume, err := handler.progress.WeeklyVolume(ctx, id)
	if err != nil {
		log.Errorf("web admin weekly volume for user %d: %s", id, err)
		handler.renderError(w, principal, http.StatusInternalServerError, "Could not load the user.")
		return
	}
	summaries, err := handler.progress.ExercisesSummary(ctx, id)
	if err != nil {
		log.Errorf("web admin exercises for user %d: %s", id, err)
		handler.renderError(w, principal, http.StatusInternalServerError, "Could not load the user.")
		return
	}

	data := adminUserPage{
		page:      newPage(user.Name, principal),
		User:      user,
		Dashboard: dashboard,
		Exercises: summaries,
	}
	data.ChartData = map[string]any{
		"volume": volume,
	}
	handler.render(w, "admin_user.html", data, http.StatusOK)
}
