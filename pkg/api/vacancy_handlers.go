package api

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/crewhub/crewhub/pkg/httputil"
	"github.com/crewhub/crewhub/pkg/vacancies"
)

func (s *Server) registerVacancyRoutes(router *mux.Router) {
	router.HandleFunc("/projects/{id}/vacancies", s.CreateVacancy).Methods("POST")
	router.HandleFunc("/projects/{id}/vacancies", s.ListVacancies).Methods("GET")
	router.HandleFunc("/vacancies/{id}", s.GetVacancy).Methods("GET")
	router.HandleFunc("/vacancies/{id}", s.UpdateVacancy).Methods("PATCH")
	router.HandleFunc("/vacancies/{id}", s.DeleteVacancy).Methods("DELETE")
}

// CreateVacancy creates a vacancy under a project. New vacancies start
// unpublished.
func (s *Server) CreateVacancy(w http.ResponseWriter, r *http.Request) {
	session, ok := requireSession(w, r)
	if !ok {
		return
	}
	projectID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	var req vacancies.CreateVacancyRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.Title == "" {
		httputil.WriteBadRequest(w, "title is required")
		return
	}

	if !s.authorize(w, r, func(ctx context.Context) (bool, error) {
		return s.evaluator.CanEditProject(ctx, session.UserID, projectID)
	}) {
		return
	}

	vacancy, err := s.vacancies.Create(r.Context(), projectID, session.UserID, &req)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	httputil.WriteCreated(w, vacancy)
}

// ListVacancies lists a project's vacancies. Project editors see drafts;
// everyone else sees only published vacancies.
func (s *Server) ListVacancies(w http.ResponseWriter, r *http.Request) {
	session, ok := requireSession(w, r)
	if !ok {
		return
	}
	projectID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	if !s.authorize(w, r, func(ctx context.Context) (bool, error) {
		return s.evaluator.CanSeeProject(ctx, session.UserID, projectID)
	}) {
		return
	}

	canEdit, err := s.evaluator.CanEditProject(r.Context(), session.UserID, projectID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	list, err := s.vacancies.ListByProject(r.Context(), projectID, !canEdit)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	httputil.WriteSuccess(w, list)
}

// GetVacancy returns a vacancy. Drafts are visible only to editors.
func (s *Server) GetVacancy(w http.ResponseWriter, r *http.Request) {
	session, ok := requireSession(w, r)
	if !ok {
		return
	}
	vacancyID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	vacancy, err := s.vacancies.Get(r.Context(), vacancyID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	if !vacancy.IsPublished {
		allowed, err := s.evaluator.CanEditVacancy(r.Context(), session.UserID, vacancyID)
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		if !allowed {
			httputil.WriteNotFound(w, vacancies.ErrNotFound.Error())
			return
		}
	}

	httputil.WriteSuccess(w, vacancy)
}

// UpdateVacancy applies a partial update, including publish state changes
func (s *Server) UpdateVacancy(w http.ResponseWriter, r *http.Request) {
	session, ok := requireSession(w, r)
	if !ok {
		return
	}
	vacancyID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	var req vacancies.UpdateVacancyRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	if !s.authorize(w, r, func(ctx context.Context) (bool, error) {
		return s.evaluator.CanEditVacancy(ctx, session.UserID, vacancyID)
	}) {
		return
	}

	if err := s.vacancies.Update(r.Context(), vacancyID, &req); err != nil {
		s.writeServiceError(w, err)
		return
	}

	vacancy, err := s.vacancies.Get(r.Context(), vacancyID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	httputil.WriteSuccess(w, vacancy)
}

// DeleteVacancy removes a vacancy
func (s *Server) DeleteVacancy(w http.ResponseWriter, r *http.Request) {
	session, ok := requireSession(w, r)
	if !ok {
		return
	}
	vacancyID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	if !s.authorize(w, r, func(ctx context.Context) (bool, error) {
		return s.evaluator.CanEditVacancy(ctx, session.UserID, vacancyID)
	}) {
		return
	}

	if err := s.vacancies.Delete(r.Context(), vacancyID); err != nil {
		s.writeServiceError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}
