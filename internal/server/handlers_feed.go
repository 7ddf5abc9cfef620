package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/meltforce/ironflow/internal/backend"
)

// Feed handlers are thin proxies to the remote backend. Unlike the
// completion pipeline these are user-initiated actions, so failures are
// surfaced as error strings for the UI to show.

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	profile, err := s.backend.FetchProfile(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.log.Error("profile fetch failed", "error", err)
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	var p backend.Profile
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	p.ID = chi.URLParam(r, "id")
	if err := s.backend.UpdateProfile(r.Context(), p); err != nil {
		s.log.Error("profile update failed", "error", err)
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleFollow(w http.ResponseWriter, r *http.Request) {
	if err := s.backend.Follow(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.log.Error("follow failed", "error", err)
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"following": true})
}

func (s *Server) handleUnfollow(w http.ResponseWriter, r *http.Request) {
	if err := s.backend.Unfollow(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.log.Error("unfollow failed", "error", err)
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"following": false})
}

func (s *Server) handleFeed(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	posts, err := s.backend.Feed(r.Context(), limit)
	if err != nil {
		s.log.Error("feed load failed", "error", err)
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, posts)
}

func (s *Server) handleCreatePost(w http.ResponseWriter, r *http.Request) {
	var post backend.Post
	if err := json.NewDecoder(r.Body).Decode(&post); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	if post.ID == uuid.Nil {
		post.ID = uuid.New()
	}
	created, err := s.backend.CreatePost(r.Context(), post)
	if err != nil {
		s.log.Error("post create failed", "error", err)
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// handleLikeToggle applies the like state the UI already shows
// optimistically. On failure the UI reverts its toggle, so the error body
// carries the state to revert to.
func (s *Server) handleLikeToggle(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid post id")
		return
	}
	var req struct {
		Liked bool `json:"liked"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	if req.Liked {
		err = s.backend.LikePost(r.Context(), id)
	} else {
		err = s.backend.UnlikePost(r.Context(), id)
	}
	if err != nil {
		s.log.Error("like toggle failed", "post", id, "liked", req.Liked, "error", err)
		writeJSON(w, http.StatusBadGateway, map[string]any{
			"error":     err.Error(),
			"revert_to": !req.Liked,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"liked": req.Liked})
}

func (s *Server) handleAddComment(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid post id")
		return
	}
	var req struct {
		Body string `json:"body"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	if req.Body == "" {
		writeError(w, http.StatusBadRequest, "comment body required")
		return
	}
	comment, err := s.backend.AddComment(r.Context(), id, req.Body)
	if err != nil {
		s.log.Error("comment failed", "post", id, "error", err)
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, comment)
}

func (s *Server) handleDeletePost(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid post id")
		return
	}
	if err := s.backend.DeletePost(r.Context(), id); err != nil {
		s.log.Error("post delete failed", "post", id, "error", err)
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// handleMediaUpload streams a captured image or video through to the
// backend and returns its public URL. The UI attaches the URL to a set
// record afterwards.
func (s *Server) handleMediaUpload(w http.ResponseWriter, r *http.Request) {
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file field required: "+err.Error())
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	url, err := s.backend.UploadMedia(r.Context(), header.Filename, contentType, file)
	if err != nil {
		s.log.Error("media upload failed", "file", header.Filename, "error", err)
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"url": url})
}
