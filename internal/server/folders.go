package server

import (
	"net/http"

	"github.com/babarot/stowage/internal/core/types"
	"github.com/babarot/stowage/internal/storage"
)

type folderCreateRequest struct {
	Name     string   `json:"name"`
	ParentID types.ID `json:"parent_id"`
}

type folderUpdateRequest struct {
	Name     *string   `json:"name"`
	ParentID *types.ID `json:"parent_id"`
}

func (s *Server) createFolder(w http.ResponseWriter, r *http.Request) {
	var req folderCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	if !req.ParentID.IsZero() {
		if _, err := types.ParseID(string(req.ParentID)); err != nil {
			respondError(w, r, err)
			return
		}
	}
	f, err := s.storage.CreateFolder(r.Context(), req.ParentID, req.Name)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, f)
}

func (s *Server) listFolders(w http.ResponseWriter, r *http.Request) {
	parentID, err := queryID(r, "parent_id")
	if err != nil {
		respondError(w, r, err)
		return
	}
	folders, err := s.storage.ListFolders(parentID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, folders)
}

func (s *Server) getFolder(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	f, err := s.storage.GetFolder(id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, f)
}

func (s *Server) updateFolder(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	var req folderUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	f, err := s.storage.UpdateFolder(r.Context(), id, storage.FolderUpdate{Name: req.Name, ParentID: req.ParentID})
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, f)
}

func (s *Server) trashFolder(w http.ResponseWriter, r *http.Request) {
	s.moveToTrash(w, r, types.ItemFolder)
}
