package web

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"autoshorts/internal/domain"
	"autoshorts/internal/domain/model"
	"autoshorts/internal/domain/ports/repository"
	"autoshorts/internal/usecase"
)

const maxBodyBytes = 64 << 10

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: invalid request body: %v", domain.ErrInvalidArgument, err)
	}
	return nil
}

func parsePlatforms(in []string) ([]model.Platform, error) {
	out := make([]model.Platform, 0, len(in))
	for _, s := range in {
		p, err := model.ParsePlatform(s)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// createSession exchanges the admin key for a session token.
func (s *Server) createSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AdminKey string `json:"adminKey"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !secretEqual(req.AdminKey, s.opts.AdminKey) {
		s.reqLog(r).Warn().Msg("session refused")
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	token, exp, err := s.auth.Mint(w)
	if err != nil {
		s.failWith(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"token": token, "expiresAt": exp})
}

func (s *Server) deleteSession(w http.ResponseWriter, r *http.Request) {
	s.auth.Clear(w)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) stats(w http.ResponseWriter, r *http.Request) {
	st, err := s.Ledger.Stats(r.Context())
	if err != nil {
		s.failWith(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// listJobs accepts stage, limit and offset query parameters.
func (s *Server) listJobs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var filter repository.JobFilter
	if v := q.Get("stage"); v != "" {
		filter.Stage = model.Stage(strings.ToUpper(v))
		if !filter.Stage.Valid() {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown stage %q", v))
			return
		}
	}
	filter.Limit, _ = strconv.Atoi(q.Get("limit"))
	filter.Offset, _ = strconv.Atoi(q.Get("offset"))

	jobs, err := s.Ledger.List(r.Context(), filter)
	if err != nil {
		s.failWith(w, r, err)
		return
	}
	data := make([]jobView, 0, len(jobs))
	for _, j := range jobs {
		data = append(data, viewOf(j))
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": data, "limit": filter.Limit, "offset": filter.Offset})
}

func (s *Server) getJob(w http.ResponseWriter, r *http.Request) {
	job, err := s.Ledger.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.failWith(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(job))
}

// createJob queues a manual generation; the render runs on the worker pool.
func (s *Server) createJob(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Category  string   `json:"category"`
		ViralMode bool     `json:"viralMode"`
		Platforms []string `json:"platforms"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	category, err := model.ParseCategory(req.Category)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	platforms, err := parsePlatforms(req.Platforms)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	job, err := s.Generator.Enqueue(r.Context(), usecase.GenerateRequest{
		Category:  category,
		ViralMode: req.ViralMode,
		Platforms: platforms,
	}, nil)
	if err != nil {
		s.failWith(w, r, err)
		return
	}
	w.Header().Set("Location", "/api/v1/jobs/"+job.ID)
	writeJSON(w, http.StatusAccepted, map[string]any{"jobId": job.ID, "stage": job.Stage, "adInjected": job.AdInjected})
}

func (s *Server) publishJob(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Platforms []string `json:"platforms"`
	}
	if r.ContentLength != 0 {
		if err := decodeBody(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	platforms, err := parsePlatforms(req.Platforms)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	job, err := s.Ledger.MarkPublished(r.Context(), chi.URLParam(r, "id"), platforms)
	if err != nil {
		s.failWith(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(job))
}

func (s *Server) getAutomation(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.Scheduler.Config(r.Context())
	if err != nil {
		s.failWith(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"config": cfg, "pending": s.Scheduler.Pending()})
}

func (s *Server) updateAutomation(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Active      *bool   `json:"active"`
		MorningSlot *string `json:"morningSlot"`
		EveningSlot *string `json:"eveningSlot"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	patch := usecase.AutomationPatch{Active: req.Active}
	for _, f := range []struct {
		in  *string
		out **model.TimeOfDay
	}{{req.MorningSlot, &patch.MorningSlot}, {req.EveningSlot, &patch.EveningSlot}} {
		if f.in == nil {
			continue
		}
		t, err := model.ParseTimeOfDay(*f.in)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		*f.out = &t
	}

	cfg, err := s.Scheduler.UpdateConfig(r.Context(), patch)
	if err != nil {
		s.failWith(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"config": cfg, "pending": s.Scheduler.Pending()})
}

// evaluateAutomation forces one evaluation. A task raised here is picked
// up by the catch-up worker on its next tick.
func (s *Server) evaluateAutomation(w http.ResponseWriter, r *http.Request) {
	raised, err := s.Scheduler.Evaluate(r.Context())
	if err != nil {
		s.failWith(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"raised": raised != nil, "pending": s.Scheduler.Pending()})
}

func (s *Server) artifact(w http.ResponseWriter, r *http.Request) {
	ref := chi.URLParam(r, "*")
	rc, contentType, err := s.Artifacts.Open(r.Context(), ref)
	if err != nil {
		s.failWith(w, r, err)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, rc); err != nil && r.Context().Err() == nil {
		s.reqLog(r).Warn().Err(err).Str("ref", ref).Msg("artifact stream interrupted")
	}
}
