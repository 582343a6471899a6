package server

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/babarot/stowage/internal/core/types"
	"github.com/babarot/stowage/internal/storage"
	"github.com/gabriel-vasile/mimetype"
)

// multipart overhead allowed on top of the upload limit
const formSlack = 1 << 20

func (s *Server) uploadFile(w http.ResponseWriter, r *http.Request) {
	if s.opts.MaxUploadSize > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadSize+formSlack)
	}
	folderID, err := queryID(r, "folder_id")
	if err != nil {
		respondError(w, r, err)
		return
	}

	mr, err := r.MultipartReader()
	if err != nil {
		respondError(w, r, types.NewError("upload", types.ErrInvalid, "request body", err))
		return
	}

	// fields may follow the file part, so the content is staged and only
	// committed once the whole body has been read
	var (
		staged *storage.Staged
		name   string
	)
	defer func() {
		if staged != nil {
			staged.Discard()
		}
	}()
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			respondError(w, r, types.NewError("upload", types.ErrInvalid, "request body", err))
			return
		}

		switch part.FormName() {
		case "folder_id":
			v, err := io.ReadAll(io.LimitReader(part, 128))
			if err != nil {
				respondError(w, r, types.NewError("upload", types.ErrInvalid, "folder_id", err))
				return
			}
			if folderID, err = types.ParseID(strings.TrimSpace(string(v))); err != nil {
				respondError(w, r, err)
				return
			}
		case "file":
			if staged != nil {
				respondError(w, r, types.NewError("upload", types.ErrInvalid, "request body", fmt.Errorf("more than one file part")))
				return
			}
			name = part.FileName()
			if err := types.ValidateName(name); err != nil {
				respondError(w, r, err)
				return
			}
			if staged, err = s.storage.Stage(r.Context(), part); err != nil {
				respondError(w, r, err)
				return
			}
		}
	}
	if staged == nil {
		respondError(w, r, types.NewError("upload", types.ErrInvalid, "request body", fmt.Errorf("missing file part")))
		return
	}

	f, err := staged.Commit(r.Context(), folderID, name)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, f)
}

func (s *Server) listFiles(w http.ResponseWriter, r *http.Request) {
	folderID, err := queryID(r, "folder_id")
	if err != nil {
		respondError(w, r, err)
		return
	}
	files, err := s.storage.ListFiles(folderID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, files)
}

func (s *Server) downloadFile(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	f, meta, err := s.storage.Open(id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	defer f.Close()

	mtype, err := mimetype.DetectReader(f)
	if err != nil {
		respondError(w, r, types.IOError("download", meta.Path, err))
		return
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		respondError(w, r, types.IOError("download", meta.Path, err))
		return
	}

	w.Header().Set("Content-Type", mtype.String())
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": meta.Name}))
	http.ServeContent(w, r, meta.Name, meta.ModTime, f)
}

type fileUpdateRequest struct {
	Name     *string   `json:"name"`
	FolderID *types.ID `json:"folder_id"`
}

func (s *Server) updateFile(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	var req fileUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	if req.FolderID != nil && !req.FolderID.IsZero() {
		if _, err := types.ParseID(string(*req.FolderID)); err != nil {
			respondError(w, r, err)
			return
		}
	}

	f, err := s.storage.UpdateFile(r.Context(), id, storage.FileUpdate{Name: req.Name, FolderID: req.FolderID})
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, f)
}

func (s *Server) trashFile(w http.ResponseWriter, r *http.Request) {
	s.moveToTrash(w, r, types.ItemFile)
}

func (s *Server) moveToTrash(w http.ResponseWriter, r *http.Request, kind types.ItemType) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	entry, err := s.trash.Trash(r.Context(), kind, id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, s.trashView(entry))
}
