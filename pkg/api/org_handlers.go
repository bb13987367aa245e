package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/crewhub/crewhub/pkg/httputil"
	"github.com/crewhub/crewhub/pkg/orgs"
)

func (s *Server) registerOrgRoutes(router *mux.Router) {
	router.HandleFunc("/orgs", s.CreateOrganization).Methods("POST")
	router.HandleFunc("/orgs", s.ListOrganizations).Methods("GET")
	router.HandleFunc("/orgs/open", s.ListOpenOrganizations).Methods("GET")
	router.HandleFunc("/orgs/join", s.JoinWithCode).Methods("POST")
	router.HandleFunc("/orgs/{id}", s.GetOrganization).Methods("GET")
	router.HandleFunc("/orgs/{id}", s.UpdateOrganization).Methods("PATCH")
	router.HandleFunc("/orgs/{id}", s.DeleteOrganization).Methods("DELETE")
	router.HandleFunc("/orgs/{id}/members", s.ListMembers).Methods("GET")
	router.HandleFunc("/orgs/{id}/members", s.AddMember).Methods("POST")
	router.HandleFunc("/orgs/{id}/members/{user_id}", s.RemoveMember).Methods("DELETE")
	router.HandleFunc("/orgs/{id}/join", s.JoinOrganization).Methods("POST")
	router.HandleFunc("/orgs/{id}/join-codes", s.CreateJoinCode).Methods("POST")
}

// CreateOrganization creates a new organization owned by the caller
func (s *Server) CreateOrganization(w http.ResponseWriter, r *http.Request) {
	session, ok := requireSession(w, r)
	if !ok {
		return
	}

	var req orgs.CreateOrgRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.Name == "" {
		httputil.WriteBadRequest(w, "name is required")
		return
	}

	if !s.authorize(w, r, func(ctx context.Context) (bool, error) {
		return s.evaluator.CanCreateOrganizations(ctx, session.UserID)
	}) {
		return
	}

	org, err := s.orgs.Create(r.Context(), session.UserID, &req)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	httputil.WriteCreated(w, org)
}

// ListOrganizations lists the caller's organizations
func (s *Server) ListOrganizations(w http.ResponseWriter, r *http.Request) {
	session, ok := requireSession(w, r)
	if !ok {
		return
	}

	list, err := s.orgs.ListForUser(r.Context(), session.UserID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	httputil.WriteSuccess(w, list)
}

// ListOpenOrganizations lists organizations anyone can browse and join
func (s *Server) ListOpenOrganizations(w http.ResponseWriter, r *http.Request) {
	list, err := s.orgs.ListOpen(r.Context())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	httputil.WriteSuccess(w, list)
}

// GetOrganization returns organization detail if the caller may see it
func (s *Server) GetOrganization(w http.ResponseWriter, r *http.Request) {
	session, ok := requireSession(w, r)
	if !ok {
		return
	}
	orgID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	allowed, err := s.evaluator.CanSeeOrganizationDetail(r.Context(), session.UserID, orgID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if !allowed {
		// 404 rather than 403 so closed orgs aren't enumerable
		httputil.WriteNotFound(w, orgs.ErrNotFound.Error())
		return
	}

	org, err := s.orgs.Get(r.Context(), orgID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	httputil.WriteSuccess(w, org)
}

// UpdateOrganization applies a partial update to an organization
func (s *Server) UpdateOrganization(w http.ResponseWriter, r *http.Request) {
	session, ok := requireSession(w, r)
	if !ok {
		return
	}
	orgID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	var req orgs.UpdateOrgRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	if !s.authorize(w, r, func(ctx context.Context) (bool, error) {
		return s.evaluator.CanEditOrganization(ctx, session.UserID, orgID)
	}) {
		return
	}

	if err := s.orgs.Update(r.Context(), orgID, &req); err != nil {
		s.writeServiceError(w, err)
		return
	}

	org, err := s.orgs.Get(r.Context(), orgID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	httputil.WriteSuccess(w, org)
}

// DeleteOrganization removes an organization and its dependents
func (s *Server) DeleteOrganization(w http.ResponseWriter, r *http.Request) {
	session, ok := requireSession(w, r)
	if !ok {
		return
	}
	orgID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	if !s.authorize(w, r, func(ctx context.Context) (bool, error) {
		return s.evaluator.CanEditOrganization(ctx, session.UserID, orgID)
	}) {
		return
	}

	if err := s.orgs.Delete(r.Context(), orgID); err != nil {
		s.writeServiceError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}

// ListMembers lists an organization's members
func (s *Server) ListMembers(w http.ResponseWriter, r *http.Request) {
	session, ok := requireSession(w, r)
	if !ok {
		return
	}
	orgID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	if !s.authorize(w, r, func(ctx context.Context) (bool, error) {
		return s.evaluator.CanSeeOrganizationDetail(ctx, session.UserID, orgID)
	}) {
		return
	}

	members, err := s.orgs.ListMembers(r.Context(), orgID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	httputil.WriteSuccess(w, members)
}

type addMemberRequest struct {
	UserID int64 `json:"user_id"`
}

// AddMember adds a user to an organization
func (s *Server) AddMember(w http.ResponseWriter, r *http.Request) {
	session, ok := requireSession(w, r)
	if !ok {
		return
	}
	orgID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	var req addMemberRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.UserID == 0 {
		httputil.WriteBadRequest(w, "user_id is required")
		return
	}

	if !s.authorize(w, r, func(ctx context.Context) (bool, error) {
		return s.evaluator.CanEditOrganization(ctx, session.UserID, orgID)
	}) {
		return
	}

	member, err := s.orgs.AddMember(r.Context(), orgID, req.UserID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	httputil.WriteCreated(w, member)
}

// RemoveMember removes a member. Users may always remove themselves;
// removing anyone else requires member-management permission.
func (s *Server) RemoveMember(w http.ResponseWriter, r *http.Request) {
	session, ok := requireSession(w, r)
	if !ok {
		return
	}
	orgID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	userID, ok := httputil.ParsePathInt64OrError(w, r, "user_id")
	if !ok {
		return
	}

	if userID != session.UserID {
		if !s.authorize(w, r, func(ctx context.Context) (bool, error) {
			return s.evaluator.CanDeleteOrganizationMembers(ctx, session.UserID, orgID)
		}) {
			return
		}
	}

	if err := s.orgs.RemoveMember(r.Context(), orgID, userID); err != nil {
		s.writeServiceError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}

// JoinOrganization joins the caller to an organization with an OPEN join policy
func (s *Server) JoinOrganization(w http.ResponseWriter, r *http.Request) {
	session, ok := requireSession(w, r)
	if !ok {
		return
	}
	orgID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	member, err := s.orgs.Join(r.Context(), orgID, session.UserID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	httputil.WriteCreated(w, member)
}

type joinWithCodeRequest struct {
	Code string `json:"code"`
}

// JoinWithCode joins the caller to the organization behind a join code
func (s *Server) JoinWithCode(w http.ResponseWriter, r *http.Request) {
	session, ok := requireSession(w, r)
	if !ok {
		return
	}

	var req joinWithCodeRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.Code == "" {
		httputil.WriteBadRequest(w, "code is required")
		return
	}

	member, err := s.orgs.JoinWithCode(r.Context(), req.Code, session.UserID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	httputil.WriteCreated(w, member)
}

type createJoinCodeRequest struct {
	TTLSeconds int64 `json:"ttl_seconds"`
}

// CreateJoinCode issues a time-limited join code for an organization
func (s *Server) CreateJoinCode(w http.ResponseWriter, r *http.Request) {
	session, ok := requireSession(w, r)
	if !ok {
		return
	}
	orgID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	var req createJoinCodeRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	ttl := time.Duration(req.TTLSeconds) * time.Second
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}

	if !s.authorize(w, r, func(ctx context.Context) (bool, error) {
		return s.evaluator.CanEditOrganization(ctx, session.UserID, orgID)
	}) {
		return
	}

	code, err := s.orgs.CreateJoinCode(r.Context(), orgID, ttl)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	httputil.WriteCreated(w, code)
}
