package progress

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/2beens/gymtracker/internal/auth"
	"github.com/2beens/gymtracker/internal/telemetry/tracing"
	"github.com/2beens/gymtracker/internal/users"
	"github.com/2beens/gymtracker/internal/workouts"
	"github.com/2beens/gymtracker/pkg"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

//go:generate mockgen -source=$GOFILE -destination=handler_mocks_test.go -package=progress_test

type progressService interface {
	Dashboard(ctx context.Context, userID int) (*Dashboard, error)
	ExerciseProgress(ctx context.Context, userID int, exercise string, from, to time.Time) (*ExerciseProgress, error)
	ExercisesSummary(ctx context.Context, userID int) ([]ExerciseSummary, error)
	WeeklyVolume(ctx context.Context, userID int) ([]WeekVolume, error)
}

type usersGetter interface {
	Get(ctx context.Context, id int) (*users.User, error)
}

type Handler struct {
	service progressService
	users   usersGetter
}

func NewHandler(service progressService, users usersGetter) *Handler {
	return &Handler{
		service: service,
		users:   users,
	}
}

func principalOrUnauthorized(w http.ResponseWriter, r *http.Request) (*auth.Principal, bool) {
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		http.Error(w, "no can do", http.StatusUnauthorized)
	}
	return principal, ok
}

// targetUserID resolves the {id} of admin routes to an existing user.
func (handler *Handler) targetUserID(ctx context.Context, w http.ResponseWriter, r *http.Request) (int, bool) {
	idStr := mux.Vars(r)["id"]
	if idStr == "" {
		http.Error(w, "error, id empty", http.StatusBadRequest)
		return 0, false
	}
	id, err := strconv.Atoi(idStr)
	if err != nil {
		http.Error(w, "error, id NaN", http.StatusBadRequest)
		return 0, false
	}

	if _, err := handler.users.Get(ctx, id); err != nil {
		if errors.Is(err, users.ErrUserNotFound) {
			http.Error(w, "error, user not found", http.StatusNotFound)
			return 0, false
		}
		log.Errorf("get user %d: %s", id, err)
		http.Error(w, "error, get user failed", http.StatusInternalServerError)
		return 0, false
	}
	return id, true
}

func (handler *Handler) writeDashboard(ctx context.Context, w http.ResponseWriter, userID int) {
	dashboard, err := handler.service.Dashboard(ctx, userID)
	if err != nil {
		log.Errorf("dashboard of user %d: %s", userID, err)
		http.Error(w, "error, get dashboard failed", http.StatusInternalServerError)
		return
	}
	pkg.WriteJSON(w, dashboard, http.StatusOK)
}

func (handler *Handler) writeExerciseProgress(ctx context.Context, w http.ResponseWriter, r *http.Request, userID int) {
	exercise := strings.TrimSpace(mux.Vars(r)["name"])
	if exercise == "" {
		http.Error(w, "error, exercise name empty", http.StatusBadRequest)
		return
	}

	query := r.URL.Query()
	from, err := workouts.ParseDateParam(query.Get("from"))
	if err != nil {
		http.Error(w, "error, invalid from date", http.StatusBadRequest)
		return
	}
	to, err := workouts.ParseDateParam(query.Get("to"))
	if err != nil {
		http.Error(w, "error, invalid to date", http.StatusBadRequest)
		return
	}
	if !from.IsZero() && !to.IsZero() && to.Before(from) {
		http.Error(w, "error, to before from", http.StatusBadRequest)
		return
	}

	progress, err := handler.service.ExerciseProgress(ctx, userID, exercise, from, to)
	if err != nil {
		log.Errorf("progress of user %d, exercise %s: %s", userID, exercise, err)
		http.Error(w, "error, get exercise progress failed", http.StatusInternalServerError)
		return
	}
	pkg.WriteJSON(w, progress, http.StatusOK)
}

func (handler *Handler) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.progress.dashboard")
	defer span.End()

	principal, ok := principalOrUnauthorized(w, r)
	if !ok {
		return
	}
	handler.writeDashboard(ctx, w, principal.UserID)
}

func (handler *Handler) HandleUserDashboard(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.progress.userdashboard")
	defer span.End()

	userID, ok := handler.targetUserID(ctx, w, r)
	if !ok {
		return
	}
	span.SetAttributes(attribute.Int("user.id", userID))
	handler.writeDashboard(ctx, w, userID)
}

func (handler *Handler) HandleExercises(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.progress.exercises")
	defer span.End()

	principal, ok := principalOrUnauthorized(w, r)
	if !ok {
		return
	}

	summaries, err := handler.service.ExercisesSummary(ctx, principal.UserID)
	if err != nil {
		log.Errorf("exercises summary of user %d: %s", principal.UserID, err)
		http.Error(w, "error, get exercises summary failed", http.StatusInternalServerError)
		return
	}
	pkg.WriteJSON(w, summaries, http.StatusOK)
}

func (handler *Handler) HandleExerciseProgress(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.progress.exercise")
	defer span.End()

	principal, ok := principalOrUnauthorized(w, r)
	if !ok {
		return
	}
	handler.writeExerciseProgress(ctx, w, r, principal.UserID)
}

func (handler *Handler) HandleUserExerciseProgress(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.progress.userexercise")
	defer span.End()

	userID, ok := handler.targetUserID(ctx, w, r)
	if !ok {
		return
	}
	span.SetAttributes(attribute.Int("user.id", userID))
	handler.writeExerciseProgress(ctx, w, r, userID)
}

func (handler *Handler) HandleWeeklyVolume(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.progress.weeklyvolume")
	defer span.End()

	principal, ok := principalOrUnauthorized(w, r)
	if !ok {
		return
	}

	weeks, err := handler.service.WeeklyVolume(ctx, principal.UserID)
	if err != nil {
		log.Errorf("weekly volume of user %d: %s", principal.UserID, err)
		http.Error(w, "error, get weekly volume failed", http.StatusInternalServerError)
		return
	}
	pkg.WriteJSON(w, weeks, http.StatusOK)
}
