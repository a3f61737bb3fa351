// Copyright (c) 2026 Arcanum. All rights reserved.
// Author: dev@arcanum.gg

package oauth

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/arcanumhq/arcanum/internal/iam/session"
	"github.com/arcanumhq/arcanum/internal/platform/apperr"
	requestutil "github.com/arcanumhq/arcanum/internal/platform/request"
	"github.com/arcanumhq/arcanum/internal/platform/respond"
)

// SessionCreator opens a session once the provider identity has resolved.
type SessionCreator interface {
	Create(ctx context.Context, input session.CreateInput) (*session.Session, string, error)
}

// Handler exposes the OAuth boundary under /oauth.
type Handler struct {
	service  *Service
	sessions SessionCreator
}

// NewHandler builds the OAuth HTTP handler.
func NewHandler(service *Service, sessions SessionCreator) *Handler {
	return &Handler{service: service, sessions: sessions}
}

// Routes mounts the OAuth endpoints. requireAuth wraps connection
// management, which acts on the calling account.
func (handler *Handler) Routes(requireAuth func(http.Handler) http.Handler) chi.Router {
	router := chi.NewRouter()

	router.Post("/{provider}/exchange", handler.exchange)

	router.Group(func(authed chi.Router) {
		authed.Use(requireAuth)
		authed.Get("/connections", handler.listConnections)
		authed.Delete("/connections/{connectionID}", handler.unlink)
	})

	return router
}

// # DTOs

type exchangeResponse struct {
	Token       string          `json:"token"`
	MFARequired bool            `json:"mfa_required"`
	Created     bool            `json:"account_created"`
	Linked      bool            `json:"account_linked"`
	User        userEnvelope    `json:"user"`
	Session     sessionEnvelope `json:"session"`
}

type userEnvelope struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	DisplayName   string `json:"display_name"`
	EmailVerified bool   `json:"email_verified"`
}

type sessionEnvelope struct {
	ID        string    `json:"id"`
	ExpiresAt time.Time `json:"expires_at"`
}

type connectionResponse struct {
	ID        string    `json:"id"`
	Provider  string    `json:"provider"`
	CreatedAt time.Time `json:"created_at"`
}

// # Endpoints

func (handler *Handler) exchange(writer http.ResponseWriter, request *http.Request) {
	providerName := chi.URLParam(request, "provider")

	var body struct {
		Code       string `json:"code"`
		DeviceName string `json:"device_name"`
	}
	if err := requestutil.DecodeJSON(request, &body); err != nil {
		respond.Error(writer, request, err)
		return
	}
	if body.Code == "" {
		respond.Error(writer, request, apperr.ValidationError("Authorization code is required",
			apperr.FieldError{Field: "code", Message: "must not be empty"}))
		return
	}

	result, err := handler.service.LoginOrLink(request.Context(), providerName, body.Code)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	created, plaintext, err := handler.sessions.Create(request.Context(), session.CreateInput{
		UserID:      result.User.ID,
		RequiresMFA: result.RequiresMFA,
		DeviceName:  body.DeviceName,
		UserAgent:   request.UserAgent(),
		IPAddress:   requestutil.ClientIP(request),
	})
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, exchangeResponse{
		Token:       plaintext,
		MFARequired: result.RequiresMFA,
		Created:     result.Created,
		Linked:      result.Linked,
		User: userEnvelope{
			ID:            result.User.ID,
			Email:         result.User.Email,
			DisplayName:   result.User.DisplayName,
			EmailVerified: result.User.EmailVerified,
		},
		Session: sessionEnvelope{
			ID:        created.ID,
			ExpiresAt: created.ExpiresAt,
		},
	})
}

func (handler *Handler) listConnections(writer http.ResponseWriter, request *http.Request) {
	principal, err := requestutil.RequiredPrincipal(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	connections, err := handler.service.Connections(request.Context(), principal.UserID)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	response := make([]connectionResponse, 0, len(connections))
	for _, connection := range connections {
		response = append(response, connectionResponse{
			ID:        connection.ID,
			Provider:  connection.Provider,
			CreatedAt: connection.CreatedAt,
		})
	}
	respond.OK(writer, response)
}

func (handler *Handler) unlink(writer http.ResponseWriter, request *http.Request) {
	principal, err := requestutil.RequiredPrincipal(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	connectionID := chi.URLParam(request, "connectionID")
	if err := handler.service.Unlink(request.Context(), principal.UserID, connectionID); err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.NoContent(writer)
}
