package forum

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/p-n-ai/sinifplanim/internal/assist"
	"github.com/p-n-ai/sinifplanim/internal/live"
)

// ErrNoAnswer is returned by ReplyWithAI when the model produced nothing.
var ErrNoAnswer = errors.New("AI produced no answer")

// BoardTopic carries post list changes.
const BoardTopic = "forum"

// PostTopic carries changes inside one thread.
func PostTopic(postID string) string {
	return "forum:" + postID
}

// AssistantAuthor signs replies written by the model.
var AssistantAuthor = Author{ID: "edubot", Name: "EduBot"}

// Answerer drafts forum answers. *assist.Service satisfies it.
type Answerer interface {
	ForumAnswer(ctx context.Context, userID, title, description string) (assist.Result, error)
}

// Service applies board mutations and announces them.
type Service struct {
	store    Store
	pub      live.Publisher
	answerer Answerer
	now      func() time.Time
}

// NewService creates a forum service. A nil publisher disables live updates
// and a nil answerer disables ReplyWithAI.
func NewService(store Store, pub live.Publisher, answerer Answerer) *Service {
	if pub == nil {
		pub = live.Nop{}
	}
	return &Service{store: store, pub: pub, answerer: answerer, now: time.Now}
}

// NewPost is the input for CreatePost.
type NewPost struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Category    string `json:"category,omitempty"`
}

// CreatePost adds a question to the board.
func (s *Service) CreatePost(ctx context.Context, author Author, in NewPost) (*Post, error) {
	p := Post{
		ID:          uuid.NewString(),
		Author:      author,
		Title:       clean(in.Title),
		Description: clean(in.Description),
		Category:    clean(in.Category),
		Date:        s.now().UTC(),
	}
	if !author.valid() || p.Title == "" || p.Description == "" {
		return nil, fmt.Errorf("%w: author, title and description are required", ErrInvalidInput)
	}
	if err := s.store.CreatePost(ctx, p); err != nil {
		slog.Error("failed to add forum post", "author_id", author.ID, "error", err)
		return nil, fmt.Errorf("create post: %w", err)
	}
	live.Notify(ctx, s.pub, BoardTopic, "post.created", p)
	return &p, nil
}

// Posts lists every post, newest first.
func (s *Service) Posts(ctx context.Context) ([]Post, error) {
	ps, err := s.store.ListPosts(ctx)
	if err != nil {
		slog.Error("failed to list forum posts", "error", err)
		return nil, fmt.Errorf("list posts: %w", err)
	}
	return ps, nil
}

// Thread loads a post with its replies and comments.
func (s *Service) Thread(ctx context.Context, postID string) (*Thread, error) {
	p, err := s.store.GetPost(ctx, postID)
	if err != nil {
		return nil, fmt.Errorf("get post: %w", err)
	}
	replies, err := s.store.ListReplies(ctx, postID)
	if err != nil {
		slog.Error("failed to list replies", "post_id", postID, "error", err)
		return nil, fmt.Errorf("list replies: %w", err)
	}
	comments, err := s.store.ListComments(ctx, postID)
	if err != nil {
		slog.Error("failed to list comments", "post_id", postID, "error", err)
		return nil, fmt.Errorf("list comments: %w", err)
	}
	return &Thread{Post: *p, Replies: replies, Comments: comments}, nil
}

// DeletePost removes a post with all of its replies and comments. Only the
// post's author may delete it.
func (s *Service) DeletePost(ctx context.Context, userID, postID string) error {
	p, err := s.store.GetPost(ctx, postID)
	if err != nil {
		return fmt.Errorf("delete post: %w", err)
	}
	if p.Author.ID != userID {
		return ErrForbidden
	}
	if err := s.store.DeletePost(ctx, postID); err != nil {
		slog.Error("failed to delete forum post", "post_id", postID, "error", err)
		return fmt.Errorf("delete post: %w", err)
	}
	ref := map[string]string{"id": postID}
	live.Notify(ctx, s.pub, BoardTopic, "post.deleted", ref)
	live.Notify(ctx, s.pub, PostTopic(postID), "post.deleted", ref)
	return nil
}

// AddReply answers a post.
func (s *Service) AddReply(ctx context.Context, postID string, author Author, content string) (*Reply, error) {
	r := Reply{
		ID:        uuid.NewString(),
		PostID:    postID,
		Author:    author,
		Content:   clean(content),
		Date:      s.now().UTC(),
		UpvotedBy: []string{},
	}
	if !author.valid() || r.Content == "" {
		return nil, fmt.Errorf("%w: author and content are required", ErrInvalidInput)
	}
	if err := s.store.CreateReply(ctx, r); err != nil {
		if !errors.Is(err, ErrNotFound) {
			slog.Error("failed to add reply", "post_id", postID, "error", err)
		}
		return nil, fmt.Errorf("add reply: %w", err)
	}
	live.Notify(ctx, s.pub, PostTopic(postID), "reply.created", r)
	return &r, nil
}

// ReplyWithAI asks the model to answer the post and stores the answer as a
// reply signed by AssistantAuthor. The credit is charged to userID.
func (s *Service) ReplyWithAI(ctx context.Context, userID, postID string) (*Reply, error) {
	if s.answerer == nil {
		return nil, ErrNoAnswer
	}
	p, err := s.store.GetPost(ctx, postID)
	if err != nil {
		return nil, fmt.Errorf("reply with AI: %w", err)
	}
	res, err := s.answerer.ForumAnswer(ctx, userID, p.Title, p.Description)
	if err != nil {
		return nil, fmt.Errorf("reply with AI: %w", err)
	}
	if res.Fallback {
		return nil, ErrNoAnswer
	}
	return s.AddReply(ctx, postID, AssistantAuthor, res.Text)
}

// DeleteReply removes a reply and its comments. Only the reply's author may
// delete it.
func (s *Service) DeleteReply(ctx context.Context, userID, postID, replyID string) error {
	r, err := s.store.GetReply(ctx, postID, replyID)
	if err != nil {
		return fmt.Errorf("delete reply: %w", err)
	}
	if r.Author.ID != userID {
		return ErrForbidden
	}
	if err := s.store.DeleteReply(ctx, postID, replyID); err != nil {
		slog.Error("failed to delete reply", "post_id", postID, "reply_id", replyID, "error", err)
		return fmt.Errorf("delete reply: %w", err)
	}
	live.Notify(ctx, s.pub, PostTopic(postID), "reply.deleted", map[string]string{"id": replyID})
	return nil
}

// ToggleUpvote adds userID's upvote to the reply, or removes it when it is
// already there. Calling it twice leaves the reply as it was.
func (s *Service) ToggleUpvote(ctx context.Context, userID, postID, replyID string) (*Reply, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user is required", ErrInvalidInput)
	}
	r, err := s.store.ToggleUpvote(ctx, postID, replyID, userID)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			slog.Error("failed to toggle upvote", "post_id", postID, "reply_id", replyID, "error", err)
		}
		return nil, fmt.Errorf("toggle upvote: %w", err)
	}
	live.Notify(ctx, s.pub, PostTopic(postID), "reply.updated", r)
	return r, nil
}

// AddComment comments on a reply and bumps its comment count in the same
// write.
func (s *Service) AddComment(ctx context.Context, postID, replyID string, author Author, content string) (*Comment, error) {
	c := Comment{
		ID:      uuid.NewString(),
		PostID:  postID,
		ReplyID: replyID,
		Author:  author,
		Content: clean(content),
		Date:    s.now().UTC(),
	}
	if !author.valid() || c.Content == "" {
		return nil, fmt.Errorf("%w: author and content are required", ErrInvalidInput)
	}
	if err := s.store.CreateComment(ctx, c); err != nil {
		if !errors.Is(err, ErrNotFound) {
			slog.Error("failed to add comment", "post_id", postID, "reply_id", replyID, "error", err)
		}
		return nil, fmt.Errorf("add comment: %w", err)
	}
	live.Notify(ctx, s.pub, PostTopic(postID), "comment.created", c)
	return &c, nil
}

// DeleteComment removes a comment and lowers its reply's comment count in
// the same write. Only the comment's author may delete it.
func (s *Service) DeleteComment(ctx context.Context, userID, postID, replyID, commentID string) error {
	c, err := s.store.GetComment(ctx, postID, replyID, commentID)
	if err != nil {
		return fmt.Errorf("delete comment: %w", err)
	}
	if c.Author.ID != userID {
		return ErrForbidden
	}
	if err := s.store.DeleteComment(ctx, postID, replyID, commentID); err != nil {
		slog.Error("failed to delete comment", "post_id", postID, "comment_id", commentID, "error", err)
		return fmt.Errorf("delete comment: %w", err)
	}
	live.Notify(ctx, s.pub, PostTopic(postID), "comment.deleted", map[string]string{"id": commentID, "replyId": replyID})
	return nil
}

// IsUserError reports errors caused by the caller rather than storage.
func IsUserError(err error) bool {
	return errors.Is(err, ErrInvalidInput) || errors.Is(err, ErrNotFound) || errors.Is(err, ErrForbidden)
}
