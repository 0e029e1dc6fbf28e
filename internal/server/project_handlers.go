package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"artiquity/internal/api"
	"artiquity/internal/logging"
	"artiquity/internal/store"
)

type createProjectRequest struct {
	BrandName string          `json:"brandName"`
	Inputs    json.RawMessage `json:"inputs,omitempty"`
}

func (s *Server) handleProjects(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		projects, err := s.store.ListProjects(r.Context(), s.ownerID(r))
		if err != nil {
			s.writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		s.writeJSON(w, http.StatusOK, api.ProjectListResponse{Projects: api.FromProjects(projects)})
	case http.MethodPost:
		var req createProjectRequest
		if !s.decodeBody(w, r, &req) {
			return
		}
		req.BrandName = strings.TrimSpace(req.BrandName)
		if req.BrandName == "" {
			s.writeError(w, http.StatusBadRequest, "brandName is required")
			return
		}
		inputs := "{}"
		if len(req.Inputs) > 0 {
			if !json.Valid(req.Inputs) {
				s.writeError(w, http.StatusBadRequest, "inputs must be a JSON object")
				return
			}
			inputs = string(req.Inputs)
		}
		project, err := s.store.CreateProject(r.Context(), s.ownerID(r), req.BrandName, inputs)
		if err != nil {
			s.writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		s.writeJSON(w, http.StatusCreated, api.ProjectResponse{Project: api.FromProject(project)})
	default:
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) handleProjectSubtree(w http.ResponseWriter, r *http.Request) {
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/projects/"), "/")
	parts := strings.Split(rest, "/")
	if rest == "" || len(parts) > 2 {
		s.writeError(w, http.StatusNotFound, "not found")
		return
	}
	id := parts[0]
	if len(parts) == 1 {
		s.handleProjectItem(w, r, id)
		return
	}

	switch parts[1] {
	case "inputs":
		s.handleProjectInputs(w, r, id)
	case "capsule":
		s.handleCapsule(w, r, id)
	case "dashboard":
		s.handleDashboard(w, r, id)
	case "campaign":
		s.handleCampaign(w, r, id)
	case "complete":
		s.handleComplete(w, r, id)
	case "retry":
		s.handleRetry(w, r, id)
	default:
		s.writeError(w, http.StatusNotFound, "not found")
	}
}

func (s *Server) handleProjectItem(w http.ResponseWriter, r *http.Request, id string) {
	switch r.Method {
	case http.MethodGet:
		project := s.loadProject(w, r, id)
		if project == nil {
			return
		}
		s.writeJSON(w, http.StatusOK, api.ProjectResponse{Project: api.FromProject(project)})
	case http.MethodDelete:
		if project := s.loadProject(w, r, id); project == nil {
			return
		}
		if err := s.store.DeleteProject(r.Context(), id); err != nil {
			s.writeStoreError(w, err)
			return
		}
		s.writeJSON(w, http.StatusNoContent, nil)
	default:
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) handleProjectInputs(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodPut && r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	project := s.loadProject(w, r, id)
	if project == nil {
		return
	}
	var req createProjectRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	brand := strings.TrimSpace(req.BrandName)
	if brand == "" {
		brand = project.BrandName
	}
	inputs := project.InputsJSON
	if len(req.Inputs) > 0 {
		if !json.Valid(req.Inputs) {
			s.writeError(w, http.StatusBadRequest, "inputs must be a JSON object")
			return
		}
		inputs = string(req.Inputs)
	}
	if err := s.store.UpdateProjectInputs(r.Context(), id, brand, inputs); err != nil {
		s.writeStoreError(w, err)
		return
	}
	project, err := s.store.GetProject(r.Context(), id)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.ProjectResponse{Project: api.FromProject(project)})
}

// handleCapsule generates or fetches the identity capsule.
func (s *Server) handleCapsule(w http.ResponseWriter, r *http.Request, id string) {
	switch r.Method {
	case http.MethodGet:
		s.writeLatestArtifact(w, r, id, store.ArtifactCapsule)
	case http.MethodPost:
		project := s.loadProject(w, r, id)
		if project == nil {
			return
		}
		if _, err := s.services.Capsules.Generate(r.Context(), project); err != nil {
			s.failAndReport(w, r, project, "capsule generation", err)
			return
		}
		s.writeLatestArtifact(w, r, id, store.ArtifactCapsule)
	default:
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// handleDashboard generates or fetches the synchronicity dashboard. The
// capsule step must have run first.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request, id string) {
	switch r.Method {
	case http.MethodGet:
		s.writeLatestArtifact(w, r, id, store.ArtifactDashboard)
	case http.MethodPost:
		project := s.loadProject(w, r, id)
		if project == nil {
			return
		}
		cap, err := s.services.Capsules.Latest(r.Context(), id)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				s.writeError(w, http.StatusConflict, "generate the identity capsule first")
				return
			}
			s.writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if _, err := s.services.Trends.Generate(r.Context(), project, cap); err != nil {
			s.failAndReport(w, r, project, "trend research", err)
			return
		}
		s.writeLatestArtifact(w, r, id, store.ArtifactDashboard)
	default:
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// handleCampaign generates or fetches the campaign. Both earlier wizard steps
// must have run first.
func (s *Server) handleCampaign(w http.ResponseWriter, r *http.Request, id string) {
	switch r.Method {
	case http.MethodGet:
		s.writeLatestArtifact(w, r, id, store.ArtifactCampaign)
	case http.MethodPost:
		project := s.loadProject(w, r, id)
		if project == nil {
			return
		}
		cap, err := s.services.Capsules.Latest(r.Context(), id)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				s.writeError(w, http.StatusConflict, "generate the identity capsule first")
				return
			}
			s.writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		dashboard, err := s.services.Trends.Latest(r.Context(), id)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				s.writeError(w, http.StatusConflict, "generate the trend dashboard first")
				return
			}
			s.writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		camp, err := s.services.Campaigns.Generate(r.Context(), project, cap, dashboard)
		if err != nil {
			s.failAndReport(w, r, project, "campaign generation", err)
			return
		}
		if err := s.services.Notifier.NotifyCampaignGenerated(r.Context(), project.BrandName, len(camp.Territories)); err != nil {
			s.logger.Warn("campaign notification failed", logging.Error(err))
		}
		s.writeLatestArtifact(w, r, id, store.ArtifactCampaign)
	default:
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) handleComplete(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	project := s.loadProject(w, r, id)
	if project == nil {
		return
	}
	if err := s.store.TransitionProject(r.Context(), id, store.StatusCampaignReady, store.StatusCompleted); err != nil {
		s.writeStoreError(w, err)
		return
	}
	if err := s.services.Notifier.NotifyProjectCompleted(r.Context(), project.BrandName); err != nil {
		s.logger.Warn("completion notification failed", logging.Error(err))
	}
	project, err := s.store.GetProject(r.Context(), id)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.ProjectResponse{Project: api.FromProject(project)})
}

func (s *Server) handleRetry(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if project := s.loadProject(w, r, id); project == nil {
		return
	}
	if err := s.store.RetryProject(r.Context(), id); err != nil {
		s.writeStoreError(w, err)
		return
	}
	project, err := s.store.GetProject(r.Context(), id)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.ProjectResponse{Project: api.FromProject(project)})
}

func (s *Server) writeLatestArtifact(w http.ResponseWriter, r *http.Request, id string, kind store.ArtifactKind) {
	if project := s.loadProject(w, r, id); project == nil {
		return
	}
	artifact, err := s.store.LatestArtifact(r.Context(), kind, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, fmt.Sprintf("no %s generated yet", kind))
			return
		}
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, api.ArtifactResponse{Artifact: api.FromArtifact(artifact)})
}

// failAndReport marks the project failed and surfaces the error. Generation
// services fall back internally, so an error here means persistence broke.
func (s *Server) failAndReport(w http.ResponseWriter, r *http.Request, project *store.Project, label string, err error) {
	if failErr := s.store.FailProject(r.Context(), project.ID, err.Error()); failErr != nil {
		s.logger.Warn("mark project failed", logging.String("project_id", project.ID), logging.Error(failErr))
	}
	if notifyErr := s.services.Notifier.NotifyError(r.Context(), err, label); notifyErr != nil {
		s.logger.Warn("error notification failed", logging.Error(notifyErr))
	}
	s.writeStoreError(w, err)
}
