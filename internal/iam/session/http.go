// Copyright (c) 2026 Arcanum. All rights reserved.
// Author: dev@arcanum.gg

package session

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	requestutil "github.com/arcanumhq/arcanum/internal/platform/request"
	"github.com/arcanumhq/arcanum/internal/platform/respond"
	"github.com/arcanumhq/arcanum/internal/platform/validate"
)

// Handler exposes session management under /sessions. All routes assume the
// authentication middleware already ran.
type Handler struct {
	service *Service
}

// NewHandler builds the session HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Routes mounts the session endpoints.
func (handler *Handler) Routes() chi.Router {
	router := chi.NewRouter()
	router.Get("/", handler.list)
	router.Delete("/", handler.revokeOthers)
	router.Delete("/{sessionID}", handler.revoke)
	return router
}

type sessionResponse struct {
	ID           string    `json:"id"`
	Current      bool      `json:"current"`
	DeviceName   string    `json:"device_name,omitempty"`
	UserAgent    string    `json:"user_agent,omitempty"`
	IPAddress    string    `json:"ip_address,omitempty"`
	LastActiveAt time.Time `json:"last_active_at"`
	ExpiresAt    time.Time `json:"expires_at"`
	CreatedAt    time.Time `json:"created_at"`
}

func (handler *Handler) list(writer http.ResponseWriter, request *http.Request) {
	principal, err := requestutil.RequiredPrincipal(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	sessions, err := handler.service.List(request.Context(), principal.UserID)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	response := make([]sessionResponse, 0, len(sessions))
	for _, s := range sessions {
		response = append(response, sessionResponse{
			ID:           s.ID,
			Current:      s.ID == principal.SessionID,
			DeviceName:   s.DeviceName,
			UserAgent:    s.UserAgent,
			IPAddress:    s.IPAddress,
			LastActiveAt: s.LastActiveAt,
			ExpiresAt:    s.ExpiresAt,
			CreatedAt:    s.CreatedAt,
		})
	}
	respond.OK(writer, response)
}

func (handler *Handler) revoke(writer http.ResponseWriter, request *http.Request) {
	principal, err := requestutil.RequiredPrincipal(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	sessionID := requestutil.Param(request, "sessionID")
	validator := &validate.Validator{}
	if err := validator.UUID("sessionID", sessionID).Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	if err := handler.service.Revoke(request.Context(), principal.UserID, sessionID); err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.NoContent(writer)
}

func (handler *Handler) revokeOthers(writer http.ResponseWriter, request *http.Request) {
	principal, err := requestutil.RequiredPrincipal(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	err = handler.service.RevokeAllExcept(request.Context(), principal.UserID, principal.SessionID)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.NoContent(writer)
}
