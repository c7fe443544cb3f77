package misc

import (
	"context"
	"fmt"
	"net/http"

	"github.com/2beens/gymtracker/internal/telemetry/tracing"
	"github.com/2beens/gymtracker/pkg"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

//go:generate mockgen -source=$GOFILE -destination=handler_mocks_test.go -package=misc_test

type ipLocator interface {
	Locate(ctx context.Context, ip string) (string, error)
}

type Handler struct {
	locator     ipLocator
	versionInfo string
}

func NewHandler(locator ipLocator, versionInfo string) *Handler {
	return &Handler{
		locator:     locator,
		versionInfo: versionInfo,
	}
}

type WhereAmIResponse struct {
	IP       string `json:"ip"`
	Location string `json:"location"`
}

func (handler *Handler) HandleHealth(w http.ResponseWriter, _ *http.Request) {
	pkg.WriteTextResponseOK(w, "I'm OK, thanks ;)")
}

func (handler *Handler) HandleVersion(w http.ResponseWriter, _ *http.Request) {
	pkg.WriteTextResponseOK(w, handler.versionInfo)
}

func (handler *Handler) HandleWhereAmI(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.misc.whereami")
	defer span.End()

	userIP, err := pkg.ReadUserIP(r)
	if err != nil {
		span.SetStatus(codes.Error, fmt.Sprintf("get user ip: %s", err))
		http.Error(w, "geo ip info error", http.StatusInternalServerError)
		return
	}
	span.SetAttributes(attribute.String("user.ip", userIP))

	location, err := handler.locator.Locate(ctx, userIP)
	if err != nil {
		span.SetStatus(codes.Error, fmt.Sprintf("locate: %s", err))
		log.Errorf("error getting geo ip info: %s", err)
		http.Error(w, "geo ip info error", http.StatusInternalServerError)
		return
	}

	pkg.WriteJSON(w, WhereAmIResponse{IP: userIP, Location: location}, http.StatusOK)
}
