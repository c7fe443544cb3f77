package users

import (
	"net/http"
	"strconv"

	"github.com/2beens/gymtracker/internal/auth"
	"github.com/2beens/gymtracker/internal/telemetry/tracing"
	"github.com/2beens/gymtracker/pkg"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/otel/attribute"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

type ListResponse struct {
	Users []UserWithStats `json:"users"`
	Total int             `json:"total"`
}

type DeleteUserResponse struct {
	DeletedID int `json:"deletedId"`
}

// AdminHandler serves user management for administrators.
type AdminHandler struct {
	service usersService
}

func NewAdminHandler(service usersService) *AdminHandler {
	return &AdminHandler{
		service: service,
	}
}

func userIDFromVars(w http.ResponseWriter, r *http.Request) (int, bool) {
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

func (handler *AdminHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.admin.users.list")
	defer span.End()

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

	var role auth.Role
	if roleParam := query.Get("role"); roleParam != "" {
		parsed, ok := auth.ParseRole(roleParam)
		if !ok {
			http.Error(w, "error, invalid role", http.StatusBadRequest)
			return
		}
		role = parsed
	}

	span.SetAttributes(attribute.Int("page", page))
	span.SetAttributes(attribute.Int("size", size))

	list, total, err := handler.service.List(ctx, ListParams{
		Search: query.Get("search"),
		Role:   role,
		Page:   page,
		Size:   size,
	})
	if err != nil {
		writeServiceError(w, "list users", err)
		return
	}

	pkg.WriteJSON(w, ListResponse{
		Users: list,
		Total: total,
	}, http.StatusOK)
}

func (handler *AdminHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.admin.users.create")
	defer span.End()

	var req CreateUserRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		http.Error(w, "error, invalid request: "+err.Error(), http.StatusBadRequest)
		return
	}

	user, err := handler.service.Create(ctx, req)
	if err != nil {
		writeServiceError(w, "create user", err)
		return
	}

	pkg.WriteJSON(w, user, http.StatusCreated)
}

func (handler *AdminHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.admin.users.get")
	defer span.End()

	id, ok := userIDFromVars(w, r)
	if !ok {
		return
	}

	user, err := handler.service.Get(ctx, id)
	if err != nil {
		writeServiceError(w, "get user", err)
		return
	}

	pkg.WriteJSON(w, user, http.StatusOK)
}

func (handler *AdminHandler) HandleSetRole(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.admin.users.setrole")
	defer span.End()

	principal, ok := principalOrUnauthorized(w, r)
	if !ok {
		return
	}
	id, ok := userIDFromVars(w, r)
	if !ok {
		return
	}

	var req SetRoleRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		http.Error(w, "error, invalid request: "+err.Error(), http.StatusBadRequest)
		return
	}

	if err := handler.service.SetRole(ctx, principal.UserID, id, auth.Role(req.Role)); err != nil {
		writeServiceError(w, "set role", err)
		return
	}

	user, err := handler.service.Get(ctx, id)
	if err != nil {
		writeServiceError(w, "get user", err)
		return
	}
	pkg.WriteJSON(w, user, http.StatusOK)
}

func (handler *AdminHandler) HandleAssignLevel(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.admin.users.assignlevel")
	defer span.End()

	id, ok := userIDFromVars(w, r)
	if !ok {
		return
	}

	var req AssignLevelRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		http.Error(w, "error, invalid request: "+err.Error(), http.StatusBadRequest)
		return
	}

	if err := handler.service.AssignLevel(ctx, id, req.LevelID); err != nil {
		writeServiceError(w, "assign level", err)
		return
	}

	user, err := handler.service.Get(ctx, id)
	if err != nil {
		writeServiceError(w, "get user", err)
		return
	}
	pkg.WriteJSON(w, user, http.StatusOK)
}

func (handler *AdminHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.admin.users.delete")
	defer span.End()

	principal, ok := principalOrUnauthorized(w, r)
	if !ok {
		return
	}
	id, ok := userIDFromVars(w, r)
	if !ok {
		return
	}

	if err := handler.service.Delete(ctx, principal.UserID, id); err != nil {
		writeServiceError(w, "delete user", err)
		return
	}

	pkg.WriteJSON(w, DeleteUserResponse{DeletedID: id}, http.StatusOK)
}
