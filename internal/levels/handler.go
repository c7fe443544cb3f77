package levels

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/2beens/gymtracker/internal/telemetry/tracing"
	"github.com/2beens/gymtracker/pkg"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

//go:generate mockgen -source=$GOFILE -destination=handler_mocks_test.go -package=levels_test

type levelsRepo interface {
	Add(ctx context.Context, level Level) (*Level, error)
	Update(ctx context.Context, level Level) (*Level, error)
	Delete(ctx context.Context, id int) error
	Get(ctx context.Context, id int) (*Level, error)
	List(ctx context.Context) ([]Level, error)
}

type DeleteLevelResponse struct {
	DeletedID int `json:"deletedId"`
}

type Handler struct {
	repo levelsRepo
}

func NewHandler(repo levelsRepo) *Handler {
	return &Handler{
		repo: repo,
	}
}

func levelIDFromVars(w http.ResponseWriter, r *http.Request) (int, bool) {
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

func decodeLevelRequest(w http.ResponseWriter, r *http.Request) (*LevelRequest, bool) {
	if r.Header.Get("Content-Type") != pkg.ContentType.JSON {
		http.Error(w, "invalid content type", http.StatusBadRequest)
		return nil, false
	}

	var req LevelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Tracef("unmarshal level request: %s", err)
		http.Error(w, "error, invalid json", http.StatusBadRequest)
		return nil, false
	}
	if err := req.Validate(); err != nil {
		http.Error(w, "error, invalid request: "+err.Error(), http.StatusBadRequest)
		return nil, false
	}
	return &req, true
}

func writeRepoError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, ErrLevelNotFound):
		http.Error(w, "error, level not found", http.StatusNotFound)
	case errors.Is(err, ErrLevelNameTaken):
		http.Error(w, "error, level name already taken", http.StatusConflict)
	case errors.Is(err, ErrWorkoutDayNotFound):
		http.Error(w, "error, "+err.Error(), http.StatusBadRequest)
	default:
		log.Errorf("%s: %s", op, err)
		http.Error(w, "error, "+op+" failed", http.StatusInternalServerError)
	}
}

func (handler *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.levels.list")
	defer span.End()

	levels, err := handler.repo.List(ctx)
	if err != nil {
		writeRepoError(w, "list levels", err)
		return
	}

	pkg.WriteJSON(w, levels, http.StatusOK)
}

func (handler *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.levels.get")
	defer span.End()

	id, ok := levelIDFromVars(w, r)
	if !ok {
		return
	}
	span.SetAttributes(attribute.Int("level.id", id))

	level, err := handler.repo.Get(ctx, id)
	if err != nil {
		writeRepoError(w, "get level", err)
		return
	}

	pkg.WriteJSON(w, level, http.StatusOK)
}

func (handler *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.levels.create")
	defer span.End()

	req, ok := decodeLevelRequest(w, r)
	if !ok {
		return
	}

	level, err := handler.repo.Add(ctx, req.ToLevel())
	if err != nil {
		writeRepoError(w, "add level", err)
		return
	}

	log.Infof("level %d [%s] created", level.ID, level.Name)
	pkg.WriteJSON(w, level, http.StatusCreated)
}

func (handler *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.levels.update")
	defer span.End()

	id, ok := levelIDFromVars(w, r)
	if !ok {
		return
	}
	span.SetAttributes(attribute.Int("level.id", id))

	req, ok := decodeLevelRequest(w, r)
	if !ok {
		return
	}

	level := req.ToLevel()
	level.ID = id
	updated, err := handler.repo.Update(ctx, level)
	if err != nil {
		writeRepoError(w, "update level", err)
		return
	}

	pkg.WriteJSON(w, updated, http.StatusOK)
}

func (handler *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.levels.delete")
	defer span.End()

	id, ok := levelIDFromVars(w, r)
	if !ok {
		return
	}
	span.SetAttributes(attribute.Int("level.id", id))

	if err := handler.repo.Delete(ctx, id); err != nil {
		writeRepoError(w, "delete level", err)
		return
	}

	log.Infof("level %d deleted", id)
	pkg.WriteJSON(w, DeleteLevelResponse{DeletedID: id}, http.StatusOK)
}
