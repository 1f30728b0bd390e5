package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/TimurManjosov/hostmatch/internal/attribute"
	"github.com/TimurManjosov/hostmatch/internal/engine"
	"github.com/TimurManjosov/hostmatch/internal/matching"
	"github.com/TimurManjosov/hostmatch/internal/query"
	"github.com/TimurManjosov/hostmatch/internal/store"
)

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// decodeBody reads a size-limited JSON body into dst and validates it.
// It writes the error response itself and reports whether to continue.
func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	defer r.Body.Close()

	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			RequestTooLargeError(w, r, "Request body exceeds 1MB limit")
			return false
		}
		BadRequestError(w, r, ErrCodeInvalidJSON, "Invalid JSON: "+err.Error())
		return false
	}

	if err := s.validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			BadRequestError(w, r, ErrCodeValidation, err.Error())
			return false
		}
		fields := make(map[string]string, len(verrs))
		for _, fe := range verrs {
			fields[jsonPath(fe.Namespace())] = validationMessage(fe)
		}
		ValidationError(w, r, "Request validation failed", fields)
		return false
	}
	return true
}

// jsonPath turns "MatchRequest.ScopeRequest.TeamID" into "teamId".
func jsonPath(ns string) string {
	parts := strings.Split(ns, ".")
	out := make([]string, 0, len(parts))
	for i, p := range parts {
		if i == 0 || p == "ScopeRequest" {
			continue
		}
		if p == "" {
			continue
		}
		out = append(out, strings.ToLower(p[:1])+p[1:])
	}
	return strings.Join(out, ".")
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "gt", "gte", "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	}
	return fmt.Sprintf("failed %q validation", fe.Tag())
}

// resolveScope uses the explicit organization when given, otherwise the one
// the store knows for the team.
func (s *Server) resolveScope(ctx context.Context, teamID int64, orgID *int64) (attribute.Scope, error) {
	if orgID != nil {
		return attribute.Scope{TeamID: teamID, OrgID: orgID}, nil
	}
	return s.store.TeamScope(ctx, teamID)
}

func checkFallbackAction(fa *matching.FallbackAction) error {
	if fa != nil && !fa.Type.Valid() {
		return fmt.Errorf("unknown fallback action type %q", fa.Type)
	}
	return nil
}

// handleListAttributes handles GET /v1/teams/{teamID}/attributes.
func (s *Server) handleListAttributes(w http.ResponseWriter, r *http.Request) {
	teamID, err := strconv.ParseInt(chi.URLParam(r, "teamID"), 10, 64)
	if err != nil || teamID <= 0 {
		BadRequestError(w, r, ErrCodeBadRequest, "teamID must be a positive integer")
		return
	}
	var orgID *int64
	if raw := r.URL.Query().Get("orgId"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			BadRequestError(w, r, ErrCodeBadRequest, "orgId must be a positive integer")
			return
		}
		orgID = &id
	}

	scope, err := s.resolveScope(r.Context(), teamID, orgID)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	attrs, err := s.store.Attributes(r.Context(), scope)
	if err != nil {
		s.writeDomainError(w, r, fmt.Errorf("%w: %w", matching.ErrCatalogUnavailable, err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"teamId":     scope.TeamID,
		"orgId":      scope.OrgID,
		"attributes": attrs,
	})
}

// handleMatch handles POST /v1/match.
func (s *Server) handleMatch(w http.ResponseWriter, r *http.Request) {
	var req MatchRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	route, err := req.Route.toRoute()
	if err != nil {
		BadRequestError(w, r, ErrCodeInvalidQuery, err.Error())
		return
	}
	if err := checkFallbackAction(route.FallbackAction); err != nil {
		ValidationError(w, r, "Request validation failed", map[string]string{"route.fallbackAction.type": err.Error()})
		return
	}

	ctx, cancel := s.evalContext(r)
	defer cancel()

	scope, err := s.resolveScope(ctx, req.TeamID, req.OrgID)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	res, err := s.matcher.Match(ctx, scope, route)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, NewMatchResponse(res))
}

// catalogError classifies a store failure the way the matcher does: an
// ended context wins over whatever the store returned.
func catalogError(ctx context.Context, err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return err
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%w: %w", matching.ErrAborted, ctxErr)
	}
	return fmt.Errorf("%w: %w", matching.ErrCatalogUnavailable, err)
}

// handleValidateQuery handles POST /v1/queries/validate. Structural problems
// make the query invalid; rules that do not fit the team's catalog are
// reported but do not.
func (s *Server) handleValidateQuery(w http.ResponseWriter, r *http.Request) {
	var req ValidateQueryRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	resp := ValidateQueryResponse{Fields: []string{}, RuleErrors: []*engine.RuleError{}}
	node, err := query.Parse(req.Query)
	if err == nil {
		err = query.Validate(node)
	}
	if err != nil {
		resp.Error = err.Error()
		writeJSON(w, http.StatusOK, resp)
		return
	}

	ctx, cancel := s.evalContext(r)
	defer cancel()
	scope, err := s.resolveScope(ctx, req.TeamID, req.OrgID)
	if err != nil {
		s.writeDomainError(w, r, catalogError(ctx, err))
		return
	}
	attrs, err := s.store.Attributes(ctx, scope)
	if err != nil {
		s.writeDomainError(w, r, catalogError(ctx, err))
		return
	}

	program := engine.Compile(node, attribute.NewCatalog(attrs))
	resp.Valid = true
	resp.Fields = append(resp.Fields, query.Fields(node)...)
	resp.RuleCount = query.CountRules(node)
	if program.Errors != nil {
		resp.RuleErrors = program.Errors
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleFilterHosts handles POST /v1/hosts/filter.
func (s *Server) handleFilterHosts(w http.ResponseWriter, r *http.Request) {
	var req FilterHostsRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	route, err := req.Route.toRoute()
	if err != nil {
		BadRequestError(w, r, ErrCodeInvalidQuery, err.Error())
		return
	}
	if err := checkFallbackAction(route.FallbackAction); err != nil {
		ValidationError(w, r, "Request validation failed", map[string]string{"route.fallbackAction.type": err.Error()})
		return
	}

	ctx, cancel := s.evalContext(r)
	defer cancel()

	scope, err := s.resolveScope(ctx, req.TeamID, req.OrgID)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	sel, err := s.selector.Select(ctx, scope, route, req.Hosts, req.Seed)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, FilterHostsResponse{
		Hosts:    sel.Hosts,
		Lead:     sel.Lead,
		Filtered: sel.Filtered,
		Match:    NewMatchResponse(sel.Match),
	})
}

// handleRouteForm handles POST /v1/forms/route.
func (s *Server) handleRouteForm(w http.ResponseWriter, r *http.Request) {
	var req RouteFormRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	if err := req.Form.Validate(); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	teamID := req.TeamID
	if teamID == 0 {
		teamID = req.Form.TeamID
	}
	if teamID <= 0 {
		ValidationError(w, r, "Request validation failed", map[string]string{"teamId": "is required when the form has no team"})
		return
	}

	ctx, cancel := s.evalContext(r)
	defer cancel()

	scope, err := s.resolveScope(ctx, teamID, req.OrgID)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	dec, err := s.dispatcher.Route(ctx, scope, req.Form, req.Response)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dec)
}
