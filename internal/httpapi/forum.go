package httpapi

import (
	"errors"
	"net/http"

	"github.com/p-n-ai/sinifplanim/internal/assist"
	"github.com/p-n-ai/sinifplanim/internal/forum"
)

// authorFields is the display part of the author; the id is always the
// signed-in teacher.
type authorFields struct {
	AuthorName string `json:"authorName" validate:"max=120"`
	AvatarURL  string `json:"avatarUrl,omitempty" validate:"omitempty,url"`
}

func (a authorFields) author(teacherID string) forum.Author {
	return forum.Author{ID: teacherID, Name: a.AuthorName, AvatarURL: a.AvatarURL}
}

type createPostRequest struct {
	authorFields
	Title       string `json:"title" validate:"required,max=200"`
	Description string `json:"description" validate:"required,max=10000"`
	Category    string `json:"category,omitempty" validate:"max=80"`
}

type contentRequest struct {
	authorFields
	Content string `json:"content" validate:"max=10000"`
}

type aiReplyResponse struct {
	Reply *forum.Reply `json:"reply,omitempty"`
	assist.Result
}

func (s *Server) handleListPosts(w http.ResponseWriter, r *http.Request) {
	posts, err := s.forum.Posts(r.Context())
	if err != nil {
		fail(w, r, err, "Gönderiler yüklenirken bir hata oluştu.")
		return
	}
	writeJSON(w, http.StatusOK, posts)
}

func (s *Server) handleCreatePost(w http.ResponseWriter, r *http.Request) {
	var req createPostRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	p, err := s.forum.CreatePost(r.Context(), req.author(teacherFrom(r.Context())), forum.NewPost{
		Title:       req.Title,
		Description: req.Description,
		Category:    req.Category,
	})
	if err != nil {
		fail(w, r, err, "Gönderi eklenirken bir hata oluştu.")
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (s *Server) handleGetThread(w http.ResponseWriter, r *http.Request) {
	th, err := s.forum.Thread(r.Context(), r.PathValue("postID"))
	if err != nil {
		fail(w, r, err, "Gönderi yüklenemedi.")
		return
	}
	writeJSON(w, http.StatusOK, th)
}

func (s *Server) handleDeletePost(w http.ResponseWriter, r *http.Request) {
	if err := s.forum.DeletePost(r.Context(), teacherFrom(r.Context()), r.PathValue("postID")); err != nil {
		fail(w, r, err, "Gönderi silinirken bir hata oluştu.")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAddReply(w http.ResponseWriter, r *http.Request) {
	var req contentRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	reply, err := s.forum.AddReply(r.Context(), r.PathValue("postID"), req.author(teacherFrom(r.Context())), req.Content)
	if errors.Is(err, forum.ErrInvalidInput) {
		writeError(w, http.StatusBadRequest, "Cevap içeriği veya yazar bilgisi eksik.")
		return
	}
	if err != nil {
		fail(w, r, err, "Cevap eklenirken bir hata oluştu.")
		return
	}
	writeJSON(w, http.StatusCreated, reply)
}

// handleAIReply answers the post with the model. A model failure is not an
// error: the response carries the notice and nothing is stored.
func (s *Server) handleAIReply(w http.ResponseWriter, r *http.Request) {
	reply, err := s.forum.ReplyWithAI(r.Context(), teacherFrom(r.Context()), r.PathValue("postID"))
	if errors.Is(err, forum.ErrNoAnswer) {
		writeJSON(w, http.StatusOK, aiReplyResponse{Result: assist.Result{Fallback: true, Notice: assist.NoticeForum}})
		return
	}
	if err != nil {
		fail(w, r, err, "Cevap eklenirken bir hata oluştu.")
		return
	}
	writeJSON(w, http.StatusCreated, aiReplyResponse{Reply: reply, Result: assist.Result{Text: reply.Content}})
}

func (s *Server) handleDeleteReply(w http.ResponseWriter, r *http.Request) {
	err := s.forum.DeleteReply(r.Context(), teacherFrom(r.Context()), r.PathValue("postID"), r.PathValue("replyID"))
	if err != nil {
		fail(w, r, err, "Cevap silinirken bir hata oluştu.")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleUpvote(w http.ResponseWriter, r *http.Request) {
	reply, err := s.forum.ToggleUpvote(r.Context(), teacherFrom(r.Context()), r.PathValue("postID"), r.PathValue("replyID"))
	if err != nil {
		fail(w, r, err, "Oy verilirken bir hata oluştu.")
		return
	}
	writeJSON(w, http.StatusOK, reply)
}

func (s *Server) handleAddComment(w http.ResponseWriter, r *http.Request) {
	var req contentRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	c, err := s.forum.AddComment(r.Context(), r.PathValue("postID"), r.PathValue("replyID"),
		req.author(teacherFrom(r.Context())), req.Content)
	if err != nil {
		fail(w, r, err, "Yorum eklenirken bir hata oluştu.")
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (s *Server) handleDeleteComment(w http.ResponseWriter, r *http.Request) {
	err := s.forum.DeleteComment(r.Context(), teacherFrom(r.Context()),
		r.PathValue("postID"), r.PathValue("replyID"), r.PathValue("commentID"))
	if err != nil {
		fail(w, r, err, "Yorum silinirken bir hata oluştu.")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
