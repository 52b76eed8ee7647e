// File: internal/infra/api/apiv1/server.go
package apiv1

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"portfolio-advisor/internal/domain"
	"portfolio-advisor/internal/domain/model"
	"portfolio-advisor/internal/infra/logging"
	"portfolio-advisor/internal/usecase"
)

const maxBodyBytes = 1 << 20

type Server struct {
	advisory usecase.AdvisoryUseCase
	auth     *Authenticator
	log      *zerolog.Logger
}

func NewServer(advisory usecase.AdvisoryUseCase, auth *Authenticator, log *zerolog.Logger) *Server {
	return &Server{advisory: advisory, auth: auth, log: log}
}

func RegisterAPIV1(r chi.Router, s *Server) {
	r.Route("/api/v1/advisory/jobs", func(r chi.Router) {
		r.Post("/", s.submitJob)
		r.Get("/{jobId}", s.getJob)
	})
}

type SubmitJobRequest struct {
	UserID    string   `json:"userId"`
	Prompt    string   `json:"prompt"`
	Prompts   []string `json:"prompts"`
	Responses []string `json:"responses"`
}

type SubmitJobResponse struct {
	JobID   string `json:"jobId"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

type JobResponse struct {
	JobID       string     `json:"jobId"`
	Status      string     `json:"status"`
	Result      string     `json:"result,omitempty"`
	Error       string     `json:"error,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

func (s *Server) submitJob(w http.ResponseWriter, r *http.Request) {
	subject, err := s.auth.Subject(r)
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, errorBody("invalid bearer token"))
		return
	}

	var req SubmitJobRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid request body"))
		return
	}
	if subject != "" {
		req.UserID = subject
	}

	ctx := r.Context()
	if req.UserID != "" {
		ctx = logging.WithUserID(ctx, req.UserID)
	}
	res, err := s.advisory.Submit(ctx, usecase.SubmitRequest{
		UserID:    req.UserID,
		Prompt:    req.Prompt,
		Prompts:   req.Prompts,
		Responses: req.Responses,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, SubmitJobResponse{
		JobID:   res.JobID,
		Status:  string(res.Status),
		Message: "Job submitted successfully",
	})
}

func (s *Server) getJob(w http.ResponseWriter, r *http.Request) {
	job, err := s.advisory.Get(r.Context(), chi.URLParam(r, "jobId"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toJobResponse(job))
}

func toJobResponse(j *model.AdvisoryJob) JobResponse {
	return JobResponse{
		JobID:       j.ID,
		Status:      string(j.Status),
		Result:      j.Result,
		Error:       j.Error,
		CreatedAt:   j.CreatedAt,
		CompletedAt: j.CompletedAt,
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody("Job not found"))
	case errors.Is(err, domain.ErrInvalidArgument):
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
	case errors.Is(err, domain.ErrRateLimited):
		writeJSON(w, http.StatusTooManyRequests, errorBody("too many requests"))
	case errors.Is(err, domain.ErrUnauthorized):
		writeJSON(w, http.StatusUnauthorized, errorBody("unauthorized"))
	default:
		l := logging.With(r.Context(), s.log)
		l.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
	}
}

func errorBody(msg string) map[string]string {
	return map[string]string{"error": msg}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
