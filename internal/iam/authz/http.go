// Copyright (c) 2026 Arcanum. All rights reserved.
// Author: dev@arcanum.gg

package authz

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	requestutil "github.com/arcanumhq/arcanum/internal/platform/request"
	"github.com/arcanumhq/arcanum/internal/platform/respond"
	"github.com/arcanumhq/arcanum/internal/platform/validate"
)

// Handler exposes authorization checks and role/grant management under
// /authz. All routes assume the authentication middleware already ran.
type Handler struct {
	resolver *Resolver
}

// NewHandler builds the authz HTTP handler.
func NewHandler(resolver *Resolver) *Handler {
	return &Handler{resolver: resolver}
}

// Routes mounts the authorization endpoints.
func (handler *Handler) Routes() chi.Router {
	router := chi.NewRouter()

	router.Post("/check", handler.check)

	router.Post("/roles", handler.assignRole)
	router.Delete("/roles", handler.removeRole)
	router.Post("/grants", handler.addGrant)
	router.Delete("/grants", handler.removeGrant)

	router.Post("/organizations", handler.createOrganization)
	router.Post("/groups", handler.createGroup)
	router.Post("/campaigns", handler.createCampaign)

	return router
}

// scopeBody is the shared scope fragment of request payloads.
type scopeBody struct {
	ScopeKind string `json:"scope_kind"`
	ScopeID   string `json:"scope_id"`
}

func (body scopeBody) scope() (Scope, error) {
	validator := &validate.Validator{}
	validator.Required("scope_kind", body.ScopeKind).
		Custom("scope_kind", body.ScopeKind != "" && !KnownScopeKind(body.ScopeKind), "unknown scope kind").
		Required("scope_id", body.ScopeID).
		UUID("scope_id", body.ScopeID)
	if err := validator.Err(); err != nil {
		return Scope{}, err
	}
	return Scope{Kind: ScopeKind(body.ScopeKind), ID: body.ScopeID}, nil
}

func (handler *Handler) check(writer http.ResponseWriter, request *http.Request) {
	principal, err := requestutil.RequiredPrincipal(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	var body struct {
		Action string `json:"action"`
		scopeBody
	}
	if err := requestutil.DecodeJSON(request, &body); err != nil {
		respond.Error(writer, request, err)
		return
	}
	if !KnownAction(body.Action) {
		respond.Error(writer, request, validate.RequiredError("action", "unknown action"))
		return
	}
	scope, err := body.scope()
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	if err := handler.resolver.Authorize(request.Context(), principal.UserID, Action(body.Action), scope); err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.OK(writer, map[string]bool{"allowed": true})
}

func (handler *Handler) assignRole(writer http.ResponseWriter, request *http.Request) {
	principal, err := requestutil.RequiredPrincipal(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	var body struct {
		scopeBody
		UserID string `json:"user_id"`
		Role   string `json:"role"`
	}
	if err := requestutil.DecodeJSON(request, &body); err != nil {
		respond.Error(writer, request, err)
		return
	}
	scope, err := body.scope()
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	validator := &validate.Validator{}
	if err := validator.Required("user_id", body.UserID).UUID("user_id", body.UserID).
		Required("role", body.Role).Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	err = handler.resolver.AssignRole(request.Context(), principal.UserID, scope, body.UserID, Role(body.Role))
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.OK(writer, map[string]string{"status": "assigned"})
}

func (handler *Handler) removeRole(writer http.ResponseWriter, request *http.Request) {
	principal, err := requestutil.RequiredPrincipal(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	var body struct {
		scopeBody
		UserID string `json:"user_id"`
	}
	if err := requestutil.DecodeJSON(request, &body); err != nil {
		respond.Error(writer, request, err)
		return
	}
	scope, err := body.scope()
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	err = handler.resolver.RemoveRole(request.Context(), principal.UserID, scope, body.UserID)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.NoContent(writer)
}

func (handler *Handler) addGrant(writer http.ResponseWriter, request *http.Request) {
	principal, err := requestutil.RequiredPrincipal(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	var body struct {
		scopeBody
		UserID string `json:"user_id"`
		Action string `json:"action"`
	}
	if err := requestutil.DecodeJSON(request, &body); err != nil {
		respond.Error(writer, request, err)
		return
	}
	scope, err := body.scope()
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	err = handler.resolver.AddGrant(request.Context(), principal.UserID, scope, body.UserID, Action(body.Action))
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.Created(writer, map[string]string{"status": "granted"})
}

func (handler *Handler) removeGrant(writer http.ResponseWriter, request *http.Request) {
	principal, err := requestutil.RequiredPrincipal(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	var body struct {
		scopeBody
		UserID string `json:"user_id"`
		Action string `json:"action"`
	}
	if err := requestutil.DecodeJSON(request, &body); err != nil {
		respond.Error(writer, request, err)
		return
	}
	scope, err := body.scope()
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	err = handler.resolver.RemoveGrant(request.Context(), principal.UserID, scope, body.UserID, Action(body.Action))
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.NoContent(writer)
}

// # Hierarchy Endpoints

func (handler *Handler) createOrganization(writer http.ResponseWriter, request *http.Request) {
	principal, err := requestutil.RequiredPrincipal(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	var body struct {
		Name string `json:"name"`
	}
	if err := requestutil.DecodeJSON(request, &body); err != nil {
		respond.Error(writer, request, err)
		return
	}
	validator := &validate.Validator{}
	if err := validator.Required("name", body.Name).MaxLen("name", body.Name, 80).Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	org, err := handler.resolver.CreateOrganization(request.Context(), principal.UserID, body.Name)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.Created(writer, org)
}

func (handler *Handler) createGroup(writer http.ResponseWriter, request *http.Request) {
	principal, err := requestutil.RequiredPrincipal(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	var body struct {
		Name           string  `json:"name"`
		OrganizationID *string `json:"organization_id"`
	}
	if err := requestutil.DecodeJSON(request, &body); err != nil {
		respond.Error(writer, request, err)
		return
	}
	validator := &validate.Validator{}
	validator.Required("name", body.Name).MaxLen("name", body.Name, 80)
	if body.OrganizationID != nil {
		validator.UUID("organization_id", *body.OrganizationID)
	}
	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	group, err := handler.resolver.CreateGroup(request.Context(), principal.UserID, body.Name, body.OrganizationID)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.Created(writer, group)
}

func (handler *Handler) createCampaign(writer http.ResponseWriter, request *http.Request) {
	principal, err := requestutil.RequiredPrincipal(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	var body struct {
		GroupID string `json:"group_id"`
		Name    string `json:"name"`
	}
	if err := requestutil.DecodeJSON(request, &body); err != nil {
		respond.Error(writer, request, err)
		return
	}
	validator := &validate.Validator{}
	if err := validator.Required("group_id", body.GroupID).UUID("group_id", body.GroupID).
		Required("name", body.Name).MaxLen("name", body.Name, 80).Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	campaign, err := handler.resolver.CreateCampaign(request.Context(), principal.UserID, body.GroupID, body.Name)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.Created(writer, campaign)
}
