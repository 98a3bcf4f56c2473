// Package api exposes the engine operations over HTTP as a JSON API.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/abhisek/pathwise/internal/assessment"
	"github.com/abhisek/pathwise/internal/coverage"
	"github.com/abhisek/pathwise/internal/engine"
	"github.com/abhisek/pathwise/internal/scheduler"
	"github.com/abhisek/pathwise/internal/store"
)

const dateLayout = "2006-01-02"

// Server handles HTTP requests against an engine.
type Server struct {
	engine *engine.Engine
	log    *slog.Logger
}

// NewServer builds a Server.
func NewServer(e *engine.Engine, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{engine: e, log: log}
}

// Router builds the chi router with all routes mounted.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/healthz", s.handleHealth)
	r.Route("/v1", func(r chi.Router) {
		r.Post("/diagnostics", s.handleSubmitDiagnostic)
		r.Post("/mastery-tests", s.handleSubmitMasteryTest)
		r.Post("/goals", s.handleCreateGoal)
		r.Post("/goals/{goalID}/signals", s.handleReportSignal)
		r.Get("/goals/{goalID}/path", s.handleGetPath)
		r.Post("/assessments/generate", s.handleGenerateAssessment)
	})
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type diagnosticRequest struct {
	StudentID    string                    `json:"studentId"`
	GoalTopicIDs []string                  `json:"goalTopicIds"`
	Answers      []assessment.AnswerRecord `json:"answers"`
}

func (s *Server) handleSubmitDiagnostic(w http.ResponseWriter, r *http.Request) {
	var req diagnosticRequest
	if !s.decode(w, r, &req) {
		return
	}
	profile, err := s.engine.SubmitDiagnostic(r.Context(), req.StudentID, req.Answers, req.GoalTopicIDs)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

type masteryTestRequest struct {
	StudentID string                        `json:"studentId"`
	Questions []assessment.Question         `json:"questions"`
	Answers   []assessment.AnswerSubmission `json:"answers"`
}

func (s *Server) handleSubmitMasteryTest(w http.ResponseWriter, r *http.Request) {
	var req masteryTestRequest
	if !s.decode(w, r, &req) {
		return
	}
	result, err := s.engine.SubmitMasteryTest(r.Context(), req.StudentID, req.Questions, req.Answers)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type createGoalRequest struct {
	StudentID  string   `json:"studentId"`
	TargetDate string   `json:"targetDate"`
	TopicIDs   []string `json:"topicIds"`
}

type createGoalResponse struct {
	Goal  *store.LearningGoal      `json:"goal"`
	Nodes []store.LearningPathNode `json:"nodes"`
}

func (s *Server) handleCreateGoal(w http.ResponseWriter, r *http.Request) {
	var req createGoalRequest
	if !s.decode(w, r, &req) {
		return
	}
	target, err := time.Parse(dateLayout, req.TargetDate)
	if err != nil {
		s.writeError(w, &assessment.InvalidInputError{Field: "targetDate", Reason: "expected YYYY-MM-DD", Err: err})
		return
	}
	goal, nodes, err := s.engine.CreateGoal(r.Context(), req.StudentID, target, req.TopicIDs)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, createGoalResponse{Goal: goal, Nodes: nodes})
}

type signalRequest struct {
	TopicID     string   `json:"topicId"`
	Score       int      `json:"score"`
	WeakUnitIDs []string `json:"weakUnitIds"`
}

func (s *Server) handleReportSignal(w http.ResponseWriter, r *http.Request) {
	var req signalRequest
	if !s.decode(w, r, &req) {
		return
	}
	delta, err := s.engine.ReportSignal(r.Context(), scheduler.PerformanceSignal{
		GoalID:      chi.URLParam(r, "goalID"),
		TopicID:     req.TopicID,
		Score:       req.Score,
		WeakUnitIDs: req.WeakUnitIDs,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, delta)
}

func (s *Server) handleGetPath(w http.ResponseWriter, r *http.Request) {
	nodes, err := s.engine.Path(r.Context(), chi.URLParam(r, "goalID"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"nodes": nodes})
}

func (s *Server) handleGenerateAssessment(w http.ResponseWriter, r *http.Request) {
	var req engine.GenerateRequest
	if !s.decode(w, r, &req) {
		return
	}
	questions, err := s.engine.GenerateAssessment(r.Context(), req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"questions": questions})
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		s.writeError(w, &assessment.InvalidInputError{Field: "body", Reason: "malformed JSON", Err: err})
		return false
	}
	return true
}

type errorResponse struct {
	Error      string               `json:"error"`
	Violations []coverage.Violation `json:"violations,omitempty"`
}

// writeError maps domain errors to HTTP statuses. Validation
// failures carry the full violation list so the caller can
// regenerate.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	var (
		inv *assessment.InvalidInputError
		vf  *coverage.ValidationFailure
	)
	switch {
	case errors.As(err, &inv):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: inv.Error()})
	case errors.As(err, &vf):
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: vf.Error(), Violations: vf.Violations})
	case errors.Is(err, scheduler.ErrHorizonTooShort):
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: err.Error()})
	case errors.Is(err, store.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
	case errors.Is(err, engine.ErrGoalNotActive),
		errors.Is(err, scheduler.ErrSchedulingConflict),
		errors.Is(err, store.ErrSlotConflict):
		writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})
	default:
		s.log.Error("request failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
