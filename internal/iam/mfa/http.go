// Copyright (c) 2026 Arcanum. All rights reserved.
// Author: dev@arcanum.gg

package mfa

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/arcanumhq/arcanum/internal/iam/session"
	requestutil "github.com/arcanumhq/arcanum/internal/platform/request"
	"github.com/arcanumhq/arcanum/internal/platform/respond"
	"github.com/arcanumhq/arcanum/internal/platform/validate"
)

// SessionPromoter upgrades a pending session after a successful proof.
type SessionPromoter interface {
	PromoteMFA(ctx context.Context, sessionID string) (*session.Session, error)
}

// Handler exposes MFA endpoints under /auth/mfa.
type Handler struct {
	service  *Service
	sessions SessionPromoter
}

// NewHandler builds the MFA HTTP handler.
func NewHandler(service *Service, sessions SessionPromoter) *Handler {
	return &Handler{service: service, sessions: sessions}
}

// Routes mounts the MFA endpoints. Proof endpoints only need an
// authenticated (possibly pending) session; management endpoints demand a
// fully verified one.
func (handler *Handler) Routes(requireAuth, requireVerified func(http.Handler) http.Handler) chi.Router {
	router := chi.NewRouter()

	router.Group(func(pending chi.Router) {
		pending.Use(requireAuth)
		pending.Post("/challenge", handler.sendChallenge)
		pending.Post("/verify", handler.verify)
		pending.Post("/recovery/verify", handler.verifyRecovery)
	})

	router.Group(func(verified chi.Router) {
		verified.Use(requireAuth, requireVerified)
		verified.Get("/status", handler.status)
		verified.Post("/setup", handler.beginSetup)
		verified.Post("/setup/confirm", handler.confirmSetup)
		verified.Post("/factors/{factorID}/primary", handler.setPrimary)
		verified.Delete("/factors/{factorID}", handler.removeFactor)
		verified.Post("/recovery/regenerate", handler.regenerateRecovery)
	})

	return router
}

// # DTOs

type setupResponse struct {
	Method          Method `json:"method"`
	SecretBase32    string `json:"secret,omitempty"`
	ProvisioningURL string `json:"provisioning_url,omitempty"`
	Challenge       string `json:"challenge,omitempty"`
	RPID            string `json:"rp_id,omitempty"`
	Destination     string `json:"destination,omitempty"`
}

func toSetupResponse(challenge *SetupChallenge) setupResponse {
	return setupResponse{
		Method:          challenge.Method,
		SecretBase32:    challenge.SecretBase32,
		ProvisioningURL: challenge.ProvisioningURL,
		Challenge:       challenge.Challenge,
		RPID:            challenge.RPID,
		Destination:     challenge.Destination,
	}
}

// # Proof Endpoints

func (handler *Handler) sendChallenge(writer http.ResponseWriter, request *http.Request) {
	principal, err := requestutil.RequiredPrincipal(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	var body struct {
		Method string `json:"method"`
	}
	if err := requestutil.DecodeJSON(request, &body); err != nil {
		respond.Error(writer, request, err)
		return
	}
	if !KnownMethod(body.Method) {
		respond.Error(writer, request, validate.RequiredError("method", "unknown factor method"))
		return
	}

	challenge, err := handler.service.SendChallenge(request.Context(), principal.UserID, Method(body.Method))
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.OK(writer, toSetupResponse(challenge))
}

func (handler *Handler) verify(writer http.ResponseWriter, request *http.Request) {
	principal, err := requestutil.RequiredPrincipal(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	var body struct {
		Method            string          `json:"method"`
		Code              string          `json:"code"`
		AssertionResponse json.RawMessage `json:"assertion_response"`
	}
	if err := requestutil.DecodeJSON(request, &body); err != nil {
		respond.Error(writer, request, err)
		return
	}
	if !KnownMethod(body.Method) {
		respond.Error(writer, request, validate.RequiredError("method", "unknown factor method"))
		return
	}

	err = handler.service.Verify(request.Context(), principal.UserID, Method(body.Method), VerifyInput{
		Code:              body.Code,
		AssertionResponse: body.AssertionResponse,
	})
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	handler.respondPromoted(writer, request, principal.SessionID)
}

func (handler *Handler) verifyRecovery(writer http.ResponseWriter, request *http.Request) {
	principal, err := requestutil.RequiredPrincipal(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	var body struct {
		Code string `json:"code"`
	}
	if err := requestutil.DecodeJSON(request, &body); err != nil {
		respond.Error(writer, request, err)
		return
	}

	if err := handler.service.VerifyRecovery(request.Context(), principal.UserID, body.Code); err != nil {
		respond.Error(writer, request, err)
		return
	}

	handler.respondPromoted(writer, request, principal.SessionID)
}

// respondPromoted upgrades the caller's session after a valid proof. A
// session that was already fully verified stays verified; the proof itself
// still succeeded, so the conflict is not surfaced as a failure.
func (handler *Handler) respondPromoted(writer http.ResponseWriter, request *http.Request, sessionID string) {
	promoted, err := handler.sessions.PromoteMFA(request.Context(), sessionID)
	if err != nil {
		if errors.Is(err, session.ErrAlreadyVerified) {
			respond.OK(writer, map[string]string{"status": "verified"})
			return
		}
		respond.Error(writer, request, err)
		return
	}
	respond.OK(writer, map[string]interface{}{
		"status":     "verified",
		"expires_at": promoted.ExpiresAt,
	})
}

// # Management Endpoints

func (handler *Handler) status(writer http.ResponseWriter, request *http.Request) {
	principal, err := requestutil.RequiredPrincipal(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	status, err := handler.service.Status(request.Context(), principal.UserID)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.OK(writer, map[string]interface{}{
		"factors":                  status.Factors,
		"primary_method":           status.PrimaryMethod,
		"recovery_codes_remaining": status.RecoveryCodesRemaining,
	})
}

func (handler *Handler) beginSetup(writer http.ResponseWriter, request *http.Request) {
	principal, err := requestutil.RequiredPrincipal(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	var body struct {
		Method      string `json:"method"`
		AccountName string `json:"account_name"`
		Destination string `json:"destination"`
	}
	if err := requestutil.DecodeJSON(request, &body); err != nil {
		respond.Error(writer, request, err)
		return
	}
	if !KnownMethod(body.Method) {
		respond.Error(writer, request, validate.RequiredError("method", "unknown factor method"))
		return
	}

	challenge, err := handler.service.BeginSetup(request.Context(),
		principal.UserID, Method(body.Method), body.AccountName, body.Destination)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.OK(writer, toSetupResponse(challenge))
}

func (handler *Handler) confirmSetup(writer http.ResponseWriter, request *http.Request) {
	principal, err := requestutil.RequiredPrincipal(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	var body struct {
		Method              string          `json:"method"`
		Code                string          `json:"code"`
		AttestationResponse json.RawMessage `json:"attestation_response"`
		MakePrimary         bool            `json:"make_primary"`
	}
	if err := requestutil.DecodeJSON(request, &body); err != nil {
		respond.Error(writer, request, err)
		return
	}
	if !KnownMethod(body.Method) {
		respond.Error(writer, request, validate.RequiredError("method", "unknown factor method"))
		return
	}

	result, err := handler.service.ConfirmSetup(request.Context(), principal.UserID, Method(body.Method), ConfirmInput{
		Code:                body.Code,
		AttestationResponse: body.AttestationResponse,
		MakePrimary:         body.MakePrimary,
	})
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	response := map[string]interface{}{
		"factor": StatusEntry{
			ID:        result.Factor.ID,
			Method:    result.Factor.Method,
			IsPrimary: result.Factor.IsPrimary,
			CreatedAt: result.Factor.CreatedAt,
		},
	}
	if len(result.RecoveryCodes) > 0 {
		// Shown once, never retrievable again.
		response["recovery_codes"] = result.RecoveryCodes
	}
	respond.Created(writer, response)
}

func (handler *Handler) setPrimary(writer http.ResponseWriter, request *http.Request) {
	principal, err := requestutil.RequiredPrincipal(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	factorID := requestutil.Param(request, "factorID")
	validator := &validate.Validator{}
	if err := validator.UUID("factorID", factorID).Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	if err := handler.service.SetPrimary(request.Context(), principal.UserID, factorID); err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.OK(writer, map[string]string{"status": "updated"})
}

func (handler *Handler) removeFactor(writer http.ResponseWriter, request *http.Request) {
	principal, err := requestutil.RequiredPrincipal(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	factorID := requestutil.Param(request, "factorID")
	validator := &validate.Validator{}
	if err := validator.UUID("factorID", factorID).Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	if err := handler.service.RemoveFactor(request.Context(), principal.UserID, factorID); err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.NoContent(writer)
}

func (handler *Handler) regenerateRecovery(writer http.ResponseWriter, request *http.Request) {
	principal, err := requestutil.RequiredPrincipal(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	codes, err := handler.service.RegenerateRecoveryCodes(request.Context(), principal.UserID)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.OK(writer, map[string]interface{}{"recovery_codes": codes})
}
