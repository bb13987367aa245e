package api

import (
	"errors"
	"net/http"

	"github.com/crewhub/crewhub/pkg/applications"
	"github.com/crewhub/crewhub/pkg/auth"
	"github.com/crewhub/crewhub/pkg/httputil"
	"github.com/crewhub/crewhub/pkg/middleware"
	"github.com/crewhub/crewhub/pkg/orgs"
	"github.com/crewhub/crewhub/pkg/perm"
	"github.com/crewhub/crewhub/pkg/projects"
	"github.com/crewhub/crewhub/pkg/vacancies"
)

// writeServiceError maps domain errors to HTTP status codes. Anything
// unrecognized is a 500 with a generic message so internals don't leak.
func (s *Server) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, perm.ErrDenied):
		httputil.WriteForbidden(w, "permission denied")
	case errors.Is(err, orgs.ErrNotFound),
		errors.Is(err, projects.ErrNotFound),
		errors.Is(err, projects.ErrOrgNotFound),
		errors.Is(err, vacancies.ErrNotFound),
		errors.Is(err, vacancies.ErrProjectNotFound),
		errors.Is(err, applications.ErrNotFound),
		errors.Is(err, applications.ErrVacancyNotFound),
		errors.Is(err, auth.ErrUserNotFound):
		httputil.WriteNotFound(w, err.Error())
	case errors.Is(err, orgs.ErrAlreadyMember),
		errors.Is(err, applications.ErrAlreadyApplied),
		errors.Is(err, applications.ErrVacancyUnpublished),
		errors.Is(err, auth.ErrEmailTaken):
		httputil.WriteConflict(w, err.Error())
	case errors.Is(err, orgs.ErrJoinClosed):
		httputil.WriteForbidden(w, err.Error())
	case errors.Is(err, orgs.ErrInvalidJoinCode):
		httputil.WriteBadRequest(w, err.Error())
	case errors.Is(err, auth.ErrInvalidCredentials):
		httputil.WriteUnauthorized(w, err.Error())
	default:
		s.logger.WithField("error", err.Error()).Error("request failed")
		httputil.WriteInternalError(w, errors.New("internal server error"))
	}
}

// authorize runs permission checks and writes 403/500 on failure
func (s *Server) authorize(w http.ResponseWriter, r *http.Request, checks ...perm.Check) bool {
	if err := perm.RequireAll(r.Context(), checks...); err != nil {
		s.writeServiceError(w, err)
		return false
	}
	return true
}

// authorizeAny passes when any one of the checks allows. Used where
// several independent grants each suffice, since the evaluator's checks
// deliberately don't cascade across resource levels.
func (s *Server) authorizeAny(w http.ResponseWriter, r *http.Request, checks ...perm.Check) bool {
	if err := perm.RequireAny(r.Context(), checks...); err != nil {
		s.writeServiceError(w, err)
		return false
	}
	return true
}

// requireSession extracts the authenticated session or writes a 401
func requireSession(w http.ResponseWriter, r *http.Request) (*auth.Session, bool) {
	session := middleware.GetSession(r)
	if session == nil {
		httputil.WriteUnauthorized(w, "authentication required")
		return nil, false
	}
	return session, true
}
