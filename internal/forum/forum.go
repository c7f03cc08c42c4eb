// Package forum stores the teachers' question board: posts, replies to a
// post and comments under a reply.
package forum

import (
	"errors"
	"slices"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrForbidden    = errors.New("only the author may delete")
)

// Author identifies who wrote a post, reply or comment.
type Author struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatarUrl,omitempty"`
}

func (a Author) valid() bool {
	return strings.TrimSpace(a.ID) != "" && strings.TrimSpace(a.Name) != ""
}

// Post is a question on the board.
type Post struct {
	ID          string    `json:"id"`
	Author      Author    `json:"author"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Category    string    `json:"category,omitempty"`
	Date        time.Time `json:"date"`
}

// Reply answers a post. CommentCount always equals the number of comments
// stored under the reply.
type Reply struct {
	ID           string    `json:"id"`
	PostID       string    `json:"postId"`
	Author       Author    `json:"author"`
	Content      string    `json:"content"`
	Date         time.Time `json:"date"`
	UpvotedBy    []string  `json:"upvotedBy"`
	CommentCount int       `json:"commentCount"`
}

// Upvotes is the number of distinct users who upvoted the reply.
func (r *Reply) Upvotes() int {
	return len(r.UpvotedBy)
}

// UpvotedByUser reports whether userID has upvoted the reply.
func (r *Reply) UpvotedByUser(userID string) bool {
	return slices.Contains(r.UpvotedBy, userID)
}

// toggle flips userID's membership in UpvotedBy.
func (r *Reply) toggle(userID string) {
	if i := slices.Index(r.UpvotedBy, userID); i >= 0 {
		r.UpvotedBy = slices.Delete(slices.Clone(r.UpvotedBy), i, i+1)
		return
	}
	r.UpvotedBy = append(slices.Clone(r.UpvotedBy), userID)
}

// Comment is a short remark under a reply.
type Comment struct {
	ID      string    `json:"id"`
	PostID  string    `json:"postId"`
	ReplyID string    `json:"replyId"`
	Author  Author    `json:"author"`
	Content string    `json:"content"`
	Date    time.Time `json:"date"`
}

// Thread is a post with its replies and each reply's comments.
type Thread struct {
	Post     Post                 `json:"post"`
	Replies  []Reply              `json:"replies"`
	Comments map[string][]Comment `json:"comments"`
}

func clean(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}
