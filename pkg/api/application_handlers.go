package api

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/crewhub/crewhub/pkg/applications"
	"github.com/crewhub/crewhub/pkg/httputil"
)

func (s *Server) registerApplicationRoutes(router *mux.Router) {
	router.HandleFunc("/vacancies/{id}/applications", s.SubmitApplication).Methods("POST")
	router.HandleFunc("/vacancies/{id}/applications", s.ListVacancyApplications).Methods("GET")
	router.HandleFunc("/applications", s.ListMyApplications).Methods("GET")
	router.HandleFunc("/applications/{id}", s.GetApplication).Methods("GET")
	router.HandleFunc("/applications/{id}/status", s.UpdateApplicationStatus).Methods("PATCH")
	router.HandleFunc("/applications/{id}", s.WithdrawApplication).Methods("DELETE")
}

type submitApplicationRequest struct {
	Message string `json:"message"`
}

// SubmitApplication applies the caller to a published vacancy
func (s *Server) SubmitApplication(w http.ResponseWriter, r *http.Request) {
	session, ok := requireSession(w, r)
	if !ok {
		return
	}
	vacancyID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	var req submitApplicationRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	app, err := s.applications.Apply(r.Context(), vacancyID, session.UserID, req.Message)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	httputil.WriteCreated(w, app)
}

// ListVacancyApplications lists applications to a vacancy, for its editors
func (s *Server) ListVacancyApplications(w http.ResponseWriter, r *http.Request) {
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

	list, err := s.applications.ListForVacancy(r.Context(), vacancyID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	httputil.WriteSuccess(w, list)
}

// ListMyApplications lists the caller's applications
func (s *Server) ListMyApplications(w http.ResponseWriter, r *http.Request) {
	session, ok := requireSession(w, r)
	if !ok {
		return
	}

	list, err := s.applications.ListForUser(r.Context(), session.UserID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	httputil.WriteSuccess(w, list)
}

// GetApplication returns an application to its owner or a vacancy editor
func (s *Server) GetApplication(w http.ResponseWriter, r *http.Request) {
	session, ok := requireSession(w, r)
	if !ok {
		return
	}
	applicationID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	app, err := s.applications.Get(r.Context(), applicationID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	if app.UserID != session.UserID {
		allowed, err := s.evaluator.CanEditVacancy(r.Context(), session.UserID, app.VacancyID)
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		if !allowed {
			httputil.WriteNotFound(w, applications.ErrNotFound.Error())
			return
		}
	}

	httputil.WriteSuccess(w, app)
}

type updateStatusRequest struct {
	Status applications.Status `json:"status"`
}

// UpdateApplicationStatus moves an application through review, for
// editors of the vacancy it targets
func (s *Server) UpdateApplicationStatus(w http.ResponseWriter, r *http.Request) {
	session, ok := requireSession(w, r)
	if !ok {
		return
	}
	applicationID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	var req updateStatusRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	switch req.Status {
	case applications.StatusPending, applications.StatusAccepted, applications.StatusRejected:
	default:
		httputil.WriteBadRequest(w, "invalid status")
		return
	}

	app, err := s.applications.Get(r.Context(), applicationID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	if !s.authorize(w, r, func(ctx context.Context) (bool, error) {
		return s.evaluator.CanEditVacancy(ctx, session.UserID, app.VacancyID)
	}) {
		return
	}

	if err := s.applications.UpdateStatus(r.Context(), applicationID, req.Status); err != nil {
		s.writeServiceError(w, err)
		return
	}

	app, err = s.applications.Get(r.Context(), applicationID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	httputil.WriteSuccess(w, app)
}

// WithdrawApplication deletes an application, for its owner
func (s *Server) WithdrawApplication(w http.ResponseWriter, r *http.Request) {
	session, ok := requireSession(w, r)
	if !ok {
		return
	}
	applicationID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	if !s.authorize(w, r, func(ctx context.Context) (bool, error) {
		return s.evaluator.CanEditOwnApplication(ctx, session.UserID, applicationID)
	}) {
		return
	}

	if err := s.applications.Withdraw(r.Context(), applicationID); err != nil {
		s.writeServiceError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}
