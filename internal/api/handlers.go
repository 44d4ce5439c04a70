package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/mattjoyce/slate/internal/auth"
	"github.com/mattjoyce/slate/internal/events"
	"github.com/mattjoyce/slate/internal/jobs"
	"github.com/mattjoyce/slate/internal/protocol"
)

// handleHealthz handles GET /healthz (no auth).
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	resp := HealthzResponse{
		Status:        "ok",
		UptimeSeconds: int64(time.Since(s.startedAt).Seconds()),
	}
	if s.deps.Actions != nil {
		resp.Actions = len(s.deps.Actions.Descriptors())
	}
	if s.deps.Applications != nil {
		resp.Applications = len(s.deps.Applications.Applications())
	}
	respondJSON(w, http.StatusOK, resp)
}

// handlePublishEvent handles POST /events. Discover events need actions:ro,
// everything else actions:rw.
func (s *Server) handlePublishEvent(w http.ResponseWriter, r *http.Request) {
	ev, err := protocol.DecodeEvent(r.Body)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	required := auth.ScopeActionsRW
	if ev.Topic == protocol.TopicDiscover {
		required = auth.ScopeActionsRO
	}
	principal, _ := auth.PrincipalFromContext(r.Context())
	if !auth.HasAnyScope(principal, required) {
		s.writeError(w, http.StatusForbidden, "insufficient scope for topic "+ev.Topic)
		return
	}

	s.publish(w, r, *ev)
}

// handleLaunchAction handles POST /actions/{identifier}/launch.
func (s *Server) handleLaunchAction(w http.ResponseWriter, r *http.Request) {
	identifier := chi.URLParam(r, "identifier")

	var req LaunchRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
	}

	ev := protocol.Event{
		Topic:  protocol.TopicLaunch,
		Source: protocol.Source{User: req.User},
		Data: protocol.EventData{
			ActionIdentifier: identifier,
			Selection:        req.Selection,
			Values:           req.Values,
		},
	}
	s.publish(w, r, ev)
}

func (s *Server) publish(w http.ResponseWriter, r *http.Request, ev protocol.Event) {
	if s.deps.Bus == nil {
		s.writeError(w, http.StatusServiceUnavailable, "event bus unavailable")
		return
	}
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}

	replies, err := s.deps.Bus.Publish(r.Context(), ev)
	if err != nil {
		s.logger.Error("event handling failed", "topic", ev.Topic, "event_id", ev.ID, "error", err)
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if replies == nil {
		replies = []protocol.Reply{}
	}
	respondJSON(w, http.StatusOK, EventResponse{
		EventID: ev.ID,
		Replies: replies,
		Items:   events.Items(replies),
	})
}

// handleListActions handles GET /actions.
func (s *Server) handleListActions(w http.ResponseWriter, r *http.Request) {
	resp := ActionsResponse{}
	if s.deps.Actions != nil {
		resp.Actions = s.deps.Actions.Descriptors()
	}
	respondJSON(w, http.StatusOK, resp)
}

// handleListApplications handles GET /applications.
func (s *Server) handleListApplications(w http.ResponseWriter, r *http.Request) {
	resp := ApplicationsResponse{}
	if s.deps.Applications != nil {
		resp.Applications = s.deps.Applications.Applications()
	}
	respondJSON(w, http.StatusOK, resp)
}

// handleListJobs handles GET /jobs?status=&limit=.
func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	if s.deps.Jobs == nil {
		s.writeError(w, http.StatusServiceUnavailable, "job store unavailable")
		return
	}

	filter := jobs.ListFilter{Status: jobs.Status(r.URL.Query().Get("status"))}
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			s.writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		filter.Limit = n
	}

	list, err := s.deps.Jobs.List(r.Context(), filter)
	if errors.Is(err, jobs.ErrInvalidStatus) {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		s.logger.Error("failed to list jobs", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to list jobs")
		return
	}
	if list == nil {
		list = []*jobs.Job{}
	}
	respondJSON(w, http.StatusOK, JobsResponse{Jobs: list})
}

// handleGetJob handles GET /jobs/{jobID}.
func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	if s.deps.Jobs == nil {
		s.writeError(w, http.StatusServiceUnavailable, "job store unavailable")
		return
	}

	jobID := chi.URLParam(r, "jobID")
	job, err := s.deps.Jobs.Get(r.Context(), jobID)
	if errors.Is(err, jobs.ErrJobNotFound) {
		s.writeError(w, http.StatusNotFound, "job not found")
		return
	}
	if err != nil {
		s.logger.Error("failed to get job", "job_id", jobID, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to get job")
		return
	}
	respondJSON(w, http.StatusOK, job)
}

// handleOpenAPI handles GET /openapi.json.
func (s *Server) handleOpenAPI(w http.ResponseWriter, r *http.Request) {
	var doc map[string]any
	if s.deps.Actions != nil {
		doc = buildOpenAPIDoc(s.deps.Actions.Descriptors())
	} else {
		doc = buildOpenAPIDoc(nil)
	}
	respondJSON(w, http.StatusOK, doc)
}

func (s *Server) writeError(w http.ResponseWriter, statusCode int, message string) {
	respondJSON(w, statusCode, ErrorResponse{Error: message})
}

func respondJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(v)
}
