// Copyright (c) 2026 Arcanum. All rights reserved.
// Author: dev@arcanum.gg

package credential

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/arcanumhq/arcanum/internal/iam/session"
	requestutil "github.com/arcanumhq/arcanum/internal/platform/request"
	"github.com/arcanumhq/arcanum/internal/platform/respond"
)

// SessionCreator opens a session once credentials have been verified.
type SessionCreator interface {
	Create(ctx context.Context, input session.CreateInput) (*session.Session, string, error)
}

// SessionDestroyer closes the caller's own session on logout.
type SessionDestroyer interface {
	Revoke(ctx context.Context, userID, sessionID string) error
}

// Handler exposes account and password endpoints under /auth.
type Handler struct {
	service  *Service
	sessions SessionCreator
	revoker  SessionDestroyer
}

// NewHandler builds the credential HTTP handler.
func NewHandler(service *Service, sessions SessionCreator, revoker SessionDestroyer) *Handler {
	return &Handler{service: service, sessions: sessions, revoker: revoker}
}

// Routes mounts the credential endpoints. requireAuth wraps the endpoints
// that act on the calling account.
func (handler *Handler) Routes(requireAuth func(http.Handler) http.Handler) chi.Router {
	router := chi.NewRouter()

	router.Post("/register", handler.register)
	router.Post("/login", handler.login)
	router.Post("/verify-email", handler.verifyEmail)
	router.Post("/resend-verification", handler.resendVerification)
	router.Post("/password/reset-request", handler.requestPasswordReset)
	router.Post("/password/reset", handler.resetPassword)

	router.Group(func(authed chi.Router) {
		authed.Use(requireAuth)
		authed.Get("/me", handler.me)
		authed.Post("/logout", handler.logout)
		authed.Post("/password/change", handler.changePassword)
		authed.Delete("/account", handler.deactivate)
	})

	return router
}

// # DTOs

type userResponse struct {
	ID            string    `json:"id"`
	Email         string    `json:"email"`
	DisplayName   string    `json:"display_name"`
	EmailVerified bool      `json:"email_verified"`
	CreatedAt     time.Time `json:"created_at"`
}

func toUserResponse(user *User) userResponse {
	return userResponse{
		ID:            user.ID,
		Email:         user.Email,
		DisplayName:   user.DisplayName,
		EmailVerified: user.EmailVerified,
		CreatedAt:     user.CreatedAt,
	}
}

type loginResponse struct {
	Token       string          `json:"token"`
	MFARequired bool            `json:"mfa_required"`
	User        userResponse    `json:"user"`
	Session     sessionEnvelope `json:"session"`
}

type sessionEnvelope struct {
	ID        string    `json:"id"`
	ExpiresAt time.Time `json:"expires_at"`
}

// # Endpoints

func (handler *Handler) register(writer http.ResponseWriter, request *http.Request) {
	var body struct {
		Email       string `json:"email"`
		Password    string `json:"password"`
		DisplayName string `json:"display_name"`
	}
	if err := requestutil.DecodeJSON(request, &body); err != nil {
		respond.Error(writer, request, err)
		return
	}

	user, err := handler.service.Register(request.Context(), RegisterInput{
		Email:       body.Email,
		Password:    body.Password,
		DisplayName: body.DisplayName,
	})
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.Created(writer, toUserResponse(user))
}

func (handler *Handler) login(writer http.ResponseWriter, request *http.Request) {
	var body struct {
		Email      string `json:"email"`
		Password   string `json:"password"`
		DeviceName string `json:"device_name"`
	}
	if err := requestutil.DecodeJSON(request, &body); err != nil {
		respond.Error(writer, request, err)
		return
	}

	result, err := handler.service.Login(request.Context(), body.Email, body.Password)
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

	respond.OK(writer, loginResponse{
		Token:       plaintext,
		MFARequired: result.RequiresMFA,
		User:        toUserResponse(result.User),
		Session: sessionEnvelope{
			ID:        created.ID,
			ExpiresAt: created.ExpiresAt,
		},
	})
}

func (handler *Handler) verifyEmail(writer http.ResponseWriter, request *http.Request) {
	var body struct {
		Token string `json:"token"`
	}
	if err := requestutil.DecodeJSON(request, &body); err != nil {
		respond.Error(writer, request, err)
		return
	}

	err := handler.service.VerifyEmail(request.Context(), body.Token, requestutil.ClientIP(request))
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.OK(writer, map[string]string{"status": "verified"})
}

func (handler *Handler) resendVerification(writer http.ResponseWriter, request *http.Request) {
	var body struct {
		Email string `json:"email"`
	}
	if err := requestutil.DecodeJSON(request, &body); err != nil {
		respond.Error(writer, request, err)
		return
	}

	if err := handler.service.ResendVerification(request.Context(), body.Email); err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.OK(writer, map[string]string{"status": "sent"})
}

func (handler *Handler) requestPasswordReset(writer http.ResponseWriter, request *http.Request) {
	var body struct {
		Email string `json:"email"`
	}
	if err := requestutil.DecodeJSON(request, &body); err != nil {
		respond.Error(writer, request, err)
		return
	}

	err := handler.service.RequestPasswordReset(request.Context(), body.Email, requestutil.ClientIP(request))
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	// The response is identical whether or not the email exists.
	respond.OK(writer, map[string]string{"status": "sent"})
}

func (handler *Handler) resetPassword(writer http.ResponseWriter, request *http.Request) {
	var body struct {
		Token       string `json:"token"`
		NewPassword string `json:"new_password"`
	}
	if err := requestutil.DecodeJSON(request, &body); err != nil {
		respond.Error(writer, request, err)
		return
	}

	err := handler.service.ResetPassword(request.Context(), body.Token, body.NewPassword, requestutil.ClientIP(request))
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.OK(writer, map[string]string{"status": "reset"})
}

func (handler *Handler) me(writer http.ResponseWriter, request *http.Request) {
	principal, err := requestutil.RequiredPrincipal(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	user, err := handler.service.GetUser(request.Context(), principal.UserID)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.OK(writer, toUserResponse(user))
}

func (handler *Handler) logout(writer http.ResponseWriter, request *http.Request) {
	principal, err := requestutil.RequiredPrincipal(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	if err := handler.revoker.Revoke(request.Context(), principal.UserID, principal.SessionID); err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.NoContent(writer)
}

func (handler *Handler) changePassword(writer http.ResponseWriter, request *http.Request) {
	principal, err := requestutil.RequiredPrincipal(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	var body struct {
		CurrentPassword string `json:"current_password"`
		NewPassword     string `json:"new_password"`
	}
	if err := requestutil.DecodeJSON(request, &body); err != nil {
		respond.Error(writer, request, err)
		return
	}

	err = handler.service.ChangePassword(request.Context(),
		principal.UserID, body.CurrentPassword, body.NewPassword, principal.SessionID)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.OK(writer, map[string]string{"status": "changed"})
}

func (handler *Handler) deactivate(writer http.ResponseWriter, request *http.Request) {
	principal, err := requestutil.RequiredPrincipal(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	var body struct {
		Password string `json:"password"`
	}
	if err := requestutil.DecodeJSON(request, &body); err != nil {
		respond.Error(writer, request, err)
		return
	}

	if err := handler.service.Deactivate(request.Context(), principal.UserID, body.Password); err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.NoContent(writer)
}
