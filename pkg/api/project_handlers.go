package api

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/crewhub/crewhub/pkg/httputil"
	"github.com/crewhub/crewhub/pkg/projects"
)

func (s *Server) registerProjectRoutes(router *mux.Router) {
	router.HandleFunc("/orgs/{id}/projects", s.CreateProject).Methods("POST")
	router.HandleFunc("/orgs/{id}/projects", s.ListProjects).Methods("GET")
	router.HandleFunc("/projects/{id}", s.GetProject).Methods("GET")
	router.HandleFunc("/projects/{id}", s.UpdateProject).Methods("PATCH")
	router.HandleFunc("/projects/{id}", s.DeleteProject).Methods("DELETE")
}

// CreateProject creates a project inside an organization
func (s *Server) CreateProject(w http.ResponseWriter, r *http.Request) {
	session, ok := requireSession(w, r)
	if !ok {
		return
	}
	orgID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	var req projects.CreateProjectRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.Name == "" {
		httputil.WriteBadRequest(w, "name is required")
		return
	}

	// The dedicated creation grant or org edit rights each suffice
	if !s.authorizeAny(w, r,
		func(ctx context.Context) (bool, error) {
			return s.evaluator.CanCreateProjectsInOrganization(ctx, session.UserID, orgID)
		},
		func(ctx context.Context) (bool, error) {
			return s.evaluator.CanEditOrganization(ctx, session.UserID, orgID)
		},
	) {
		return
	}

	project, err := s.projects.Create(r.Context(), orgID, session.UserID, &req)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	httputil.WriteCreated(w, project)
}

// ListProjects lists an organization's projects
func (s *Server) ListProjects(w http.ResponseWriter, r *http.Request) {
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

	list, err := s.projects.ListByOrganization(r.Context(), orgID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	httputil.WriteSuccess(w, list)
}

// GetProject returns a project if the caller may see it
func (s *Server) GetProject(w http.ResponseWriter, r *http.Request) {
	session, ok := requireSession(w, r)
	if !ok {
		return
	}
	projectID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	allowed, err := s.evaluator.CanSeeProject(r.Context(), session.UserID, projectID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if !allowed {
		httputil.WriteNotFound(w, projects.ErrNotFound.Error())
		return
	}

	project, err := s.projects.Get(r.Context(), projectID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	httputil.WriteSuccess(w, project)
}

// UpdateProject applies a partial update to a project
func (s *Server) UpdateProject(w http.ResponseWriter, r *http.Request) {
	session, ok := requireSession(w, r)
	if !ok {
		return
	}
	projectID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	var req projects.UpdateProjectRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	if !s.authorize(w, r, func(ctx context.Context) (bool, error) {
		return s.evaluator.CanEditProject(ctx, session.UserID, projectID)
	}) {
		return
	}

	if err := s.projects.Update(r.Context(), projectID, &req); err != nil {
		s.writeServiceError(w, err)
		return
	}

	project, err := s.projects.Get(r.Context(), projectID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	httputil.WriteSuccess(w, project)
}

// DeleteProject removes a project
func (s *Server) DeleteProject(w http.ResponseWriter, r *http.Request) {
	session, ok := requireSession(w, r)
	if !ok {
		return
	}
	projectID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	if !s.authorize(w, r, func(ctx context.Context) (bool, error) {
		return s.evaluator.CanEditProject(ctx, session.UserID, projectID)
	}) {
		return
	}

	if err := s.projects.Delete(r.Context(), projectID); err != nil {
		s.writeServiceError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}
