package api

import (
	"errors"
	"net/http"

	"github.com/sprite-ai/capgate/internal/capsule"
	"github.com/sprite-ai/capgate/internal/classify"
	"github.com/sprite-ai/capgate/internal/diff"
)

// --- Health ---

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// --- Classify ---

type classifyRequest struct {
	Diff string `json:"diff"`
}

type classifyResponse struct {
	Risk                 string   `json:"risk"`
	Reasons              []string `json:"reasons"`
	TouchedFiles         []string `json:"touched_files"`
	PublicSurfaceChanges bool     `json:"public_surface_changes"`
}

func (s *Server) handleClassify(w http.ResponseWriter, r *http.Request) {
	var req classifyRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request: "+err.Error())
		return
	}

	if req.Diff == "" {
		writeError(w, http.StatusBadRequest, "diff is required")
		return
	}

	cls := classify.Classify(req.Diff)
	writeJSON(w, http.StatusOK, classifyResponse{
		Risk:                 cls.Risk.String(),
		Reasons:              cls.Reasons,
		TouchedFiles:         cls.TouchedFiles,
		PublicSurfaceChanges: cls.PublicSurfaceChanges,
	})
}

// --- Parse ---

type parseRequest struct {
	Diff string `json:"diff"`
}

type parseResponse struct {
	Files []fileJSON    `json:"files"`
	Stats diffStatsJSON `json:"stats"`
}

type fileJSON struct {
	Name         string `json:"name"`
	OldName      string `json:"old_name,omitempty"`
	NewName      string `json:"new_name,omitempty"`
	IsNew        bool   `json:"is_new,omitempty"`
	IsDeleted    bool   `json:"is_deleted,omitempty"`
	IsRenamed    bool   `json:"is_renamed,omitempty"`
	AddedLines   int    `json:"added_lines"`
	DeletedLines int    `json:"deleted_lines"`
	Fragments    int    `json:"fragments"`
}

type diffStatsJSON struct {
	Files   int `json:"files"`
	Added   int `json:"added"`
	Deleted int `json:"deleted"`
}

func (s *Server) handleParse(w http.ResponseWriter, r *http.Request) {
	var req parseRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request: "+err.Error())
		return
	}

	if req.Diff == "" {
		writeError(w, http.StatusBadRequest, "diff is required")
		return
	}

	ds, err := diff.Parse(req.Diff)
	if err != nil {
		writeError(w, http.StatusBadRequest, "parsing diff: "+err.Error())
		return
	}

	nFiles, added, deleted := ds.Stats()
	resp := parseResponse{
		Stats: diffStatsJSON{
			Files:   nFiles,
			Added:   added,
			Deleted: deleted,
		},
	}

	for _, f := range ds.Files {
		resp.Files = append(resp.Files, fileJSON{
			Name:         f.Name(),
			OldName:      f.OldName,
			NewName:      f.NewName,
			IsNew:        f.IsNew,
			IsDeleted:    f.IsDeleted,
			IsRenamed:    f.IsRenamed,
			AddedLines:   f.AddedLines,
			DeletedLines: f.DeletedLines,
			Fragments:    len(f.Fragments),
		})
	}

	writeJSON(w, http.StatusOK, resp)
}

// --- Capsules ---

type capsuleResponse struct {
	SessionID string       `json:"session_id"`
	Meta      capsule.Meta `json:"meta"`
	Diff      string       `json:"diff"`
}

func (s *Server) handleGetCapsule(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("session")
	capsuleID := r.PathValue("id")

	c, err := s.store.Load(sessionID, capsuleID)
	if err != nil {
		switch {
		case errors.Is(err, capsule.ErrNotFound):
			writeError(w, http.StatusNotFound, "capsule not found")
		case errors.Is(err, capsule.ErrCorrupt):
			writeError(w, http.StatusInternalServerError, "capsule record is corrupt")
		default:
			writeError(w, http.StatusInternalServerError, "loading capsule: "+err.Error())
		}
		return
	}

	writeJSON(w, http.StatusOK, capsuleResponse{
		SessionID: c.SessionID,
		Meta:      c.Meta,
		Diff:      c.Diff,
	})
}
