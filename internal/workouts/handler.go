package workouts

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/2beens/gymtracker/internal/auth"
	"github.com/2beens/gymtracker/internal/telemetry/tracing"
	"github.com/2beens/gymtracker/pkg"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

//go:generate mockgen -source=$GOFILE -destination=handler_mocks_test.go -package=workouts_test

type workoutsService interface {
	Create(ctx context.Context, userID int, req WorkoutRequest) (*Workout, error)
	Get(ctx context.Context, principal *auth.Principal, id int) (*Workout, error)
	List(ctx context.Context, params ListParams) ([]Workout, int, error)
	Update(ctx context.Context, userID, id int, req WorkoutRequest) (*Workout, error)
	Delete(ctx context.Context, userID, id int) error
	ExerciseNames(ctx context.Context, userID int) ([]string, error)
}

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

type ListResponse struct {
	Workouts []Workout `json:"workouts"`
	Total    int       `json:"total"`
}

type DeleteWorkoutResponse struct {
	DeletedID int `json:"deletedId"`
}

type Handler struct {
	service workoutsService
}

func NewHandler(service workoutsService) *Handler {
	return &Handler{
		service: service,
	}
}

func principalOrUnauthorized(w http.ResponseWriter, r *http.Request) (*auth.Principal, bool) {
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		http.Error(w, "no can do", http.StatusUnauthorized)
	}
	return principal, ok
}

func workoutIDFromVars(w http.ResponseWriter, r *http.Request) (int, bool) {
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
	return id, true
}

func decodeWorkoutRequest(w http.ResponseWriter, r *http.Request) (*WorkoutRequest, bool) {
	if r.Header.Get("Content-Type") != pkg.ContentType.JSON {
		http.Error(w, "invalid content type", http.StatusBadRequest)
		return nil, false
	}

	var req WorkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Tracef("unmarshal workout request: %s", err)
		http.Error(w, "error, invalid json", http.StatusBadRequest)
		return nil, false
	}
	if err := req.Validate(); err != nil {
		http.Error(w, "error, invalid request: "+err.Error(), http.StatusBadRequest)
		return nil, false
	}
	return &req, true
}

func writeServiceError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, ErrWorkoutNotFound):
		http.Error(w, "error, workout not found", http.StatusNotFound)
	case errors.Is(err, ErrWorkoutDayNotInLevel):
		http.Error(w, "error, "+ErrWorkoutDayNotInLevel.Error(), http.StatusBadRequest)
	case errors.Is(err, ErrInvalidSet):
		http.Error(w, "error, "+err.Error(), http.StatusBadRequest)
	default:
		log.Errorf("%s: %s", op, err)
		http.Error(w, "error, "+op+" failed", http.StatusInternalServerError)
	}
}

// ParseDateParam parses an optional YYYY-MM-DD query value.
func ParseDateParam(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	return time.Parse(DateLayout, value)
}

func (handler *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.workouts.create")
	defer span.End()

	principal, ok := principalOrUnauthorized(w, r)
	if !ok {
		return
	}
	req, ok := decodeWorkoutRequest(w, r)
	if !ok {
		return
	}

	workout, err := handler.service.Create(ctx, principal.UserID, *req)
	if err != nil {
		writeServiceError(w, "create workout", err)
		return
	}

	pkg.WriteJSON(w, workout, http.StatusCreated)
}

func (handler *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.workouts.list")
	defer span.End()

	principal, ok := principalOrUnauthorized(w, r)
	if !ok {
		return
	}

	query := r.URL.Query()
	page, err := pkg.QueryInt(query.Get("page"), 1)
	if err != nil || page < 1 {
		http.Error(w, "error, invalid page", http.StatusBadRequest)
		return
	}
	size, err := pkg.QueryInt(query.Get("size"), defaultPageSize)
	if err != nil || size < 1 || size > maxPageSize {
		http.Error(w, "error, invalid size", http.StatusBadRequest)
		return
	}
	from, err := ParseDateParam(query.Get("from"))
	if err != nil {
		http.Error(w, "error, invalid from date", http.StatusBadRequest)
		return
	}
	to, err := ParseDateParam(query.Get("to"))
	if err != nil {
		http.Error(w, "error, invalid to date", http.StatusBadRequest)
		return
	}
	if !from.IsZero() && !to.IsZero() && to.Before(from) {
		http.Error(w, "error, to before from", http.StatusBadRequest)
		return
	}

	span.SetAttributes(attribute.Int("page", page))
	span.SetAttributes(attribute.Int("size", size))

	workouts, total, err := handler.service.List(ctx, ListParams{
		UserID: principal.UserID,
		From:   from,
		To:     to,
		Page:   page,
		Size:   size,
	})
	if err != nil {
		writeServiceError(w, "list workouts", err)
		return
	}

	pkg.WriteJSON(w, ListResponse{
		Workouts: workouts,
		Total:    total,
	}, http.StatusOK)
}

func (handler *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.workouts.get")
	defer span.End()

	principal, ok := principalOrUnauthorized(w, r)
	if !ok {
		return
	}
	id, ok := workoutIDFromVars(w, r)
	if !ok {
		return
	}

	workout, err := handler.service.Get(ctx, principal, id)
	if err != nil {
		writeServiceError(w, "get workout", err)
		return
	}

	pkg.WriteJSON(w, workout, http.StatusOK)
}

func (handler *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.workouts.update")
	defer span.End()

	principal, ok := principalOrUnauthorized(w, r)
	if !ok {
		return
	}
	id, ok := workoutIDFromVars(w, r)
	if !ok {
		return
	}
	req, ok := decodeWorkoutRequest(w, r)
	if !ok {
		return
	}

	workout, err := handler.service.Update(ctx, principal.UserID, id, *req)
	if err != nil {
		writeServiceError(w, "update workout", err)
		return
	}

	pkg.WriteJSON(w, workout, http.StatusOK)
}

func (handler *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.workouts.delete")
	defer span.End()

	principal, ok := principalOrUnauthorized(w, r)
	if !ok {
		return
	}
	id, ok := workoutIDFromVars(w, r)
	if !ok {
		return
	}

	if err := handler.service.Delete(ctx, principal.UserID, id); err != nil {
		writeServiceError(w, "delete workout", err)
		return
	}

	pkg.WriteJSON(w, DeleteWorkoutResponse{DeletedID: id}, http.StatusOK)
}

func (handler *Handler) HandleExerciseNames(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.workouts.exercisenames")
	defer span.End()

	principal, ok := principalOrUnauthorized(w, r)
	if !ok {
		return
	}

	names, err := handler.service.ExerciseNames(ctx, principal.UserID)
	if err != nil {
		writeServiceError(w, "list exercise names", err)
		return
	}

	pkg.WriteJSON(w, names, http.StatusOK)
}
