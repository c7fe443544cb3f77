package admin

import (
	"context"
	"net/http"

	"github.com/2beens/gymtracker/internal/telemetry/tracing"
	"github.com/2beens/gymtracker/pkg"

	log "github.com/sirupsen/logrus"
)

//go:generate mockgen -source=$GOFILE -destination=handler_mocks_test.go -package=admin_test

type analyticsService interface {
	Overview(ctx context.Context) (*Overview, error)
	UserActivity(ctx context.Context) ([]UserActivity, error)
}

type Handler struct {
	service analyticsService
}

func NewHandler(service analyticsService) *Handler {
	return &Handler{
		service: service,
	}
}

func (handler *Handler) HandleOverview(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.admin.overview")
	defer span.End()

	overview, err := handler.service.Overview(ctx)
	if err != nil {
		log.Errorf("get analytics overview: %s", err)
		http.Error(w, "error, get overview failed", http.StatusInternalServerError)
		return
	}

	pkg.WriteJSON(w, overview, http.StatusOK)
}

func (handler *Handler) HandleUserActivity(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.admin.useractivity")
	defer span.End()

	activity, err := handler.service.UserActivity(ctx)
	if err != nil {
		log.Errorf("get user activity: %s", err)
		http.Error(w, "error, get user activity failed", http.StatusInternalServerError)
		return
	}

	pkg.WriteJSON(w, activity, http.StatusOK)
}
