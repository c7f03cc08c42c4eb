package forum

import (
	"context"
	"slices"
	"sort"
	"sync"
)

// Store persists the board. Deleting a post removes its replies and their
// comments. Comment writes keep Reply.CommentCount in step.
type Store interface {
	CreatePost(ctx context.Context, p Post) error
	GetPost(ctx context.Context, id string) (*Post, error)
	// ListPosts returns every post, newest first.
	ListPosts(ctx context.Context) ([]Post, error)
	DeletePost(ctx context.Context, id string) error

	CreateReply(ctx context.Context, r Reply) error
	GetReply(ctx context.Context, postID, replyID string) (*Reply, error)
	// ListReplies returns a post's replies, oldest first.
	ListReplies(ctx context.Context, postID string) ([]Reply, error)
	DeleteReply(ctx context.Context, postID, replyID string) error
	ToggleUpvote(ctx context.Context, postID, replyID, userID string) (*Reply, error)

	CreateComment(ctx context.Context, c Comment) error
	GetComment(ctx context.Context, postID, replyID, commentID string) (*Comment, error)
	// ListComments returns a post's comments keyed by reply id, oldest first.
	ListComments(ctx context.Context, postID string) (map[string][]Comment, error)
	DeleteComment(ctx context.Context, postID, replyID, commentID string) error
}

// MemoryStore is an in-memory implementation of Store.
type MemoryStore struct {
	posts    []Post
	replies  []Reply
	comments []Comment
	mu       sync.RWMutex
}

// NewMemoryStore creates an empty in-memory board.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) CreatePost(_ context.Context, p Post) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.posts = append(s.posts, p)
	return nil
}

func (s *MemoryStore) postIndex(id string) int {
	return slices.IndexFunc(s.posts, func(p Post) bool { return p.ID == id })
}

func (s *MemoryStore) replyIndex(postID, replyID string) int {
	return slices.IndexFunc(s.replies, func(r Reply) bool { return r.ID == replyID && r.PostID == postID })
}

func (s *MemoryStore) GetPost(_ context.Context, id string) (*Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := s.postIndex(id)
	if i < 0 {
		return nil, ErrNotFound
	}
	p := s.posts[i]
	return &p, nil
}

func (s *MemoryStore) ListPosts(_ context.Context) ([]Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := slices.Clone(s.posts)
	slices.Reverse(out)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })
	if out == nil {
		out = []Post{}
	}
	return out, nil
}

func (s *MemoryStore) DeletePost(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.postIndex(id)
	if i < 0 {
		return ErrNotFound
	}
	s.posts = slices.Delete(s.posts, i, i+1)
	s.replies = slices.DeleteFunc(s.replies, func(r Reply) bool { return r.PostID == id })
	s.comments = slices.DeleteFunc(s.comments, func(c Comment) bool { return c.PostID == id })
	return nil
}

func (s *MemoryStore) CreateReply(_ context.Context, r Reply) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.postIndex(r.PostID) < 0 {
		return ErrNotFound
	}
	r.UpvotedBy = slices.Clone(r.UpvotedBy)
	s.replies = append(s.replies, r)
	return nil
}

func (s *MemoryStore) GetReply(_ context.Context, postID, replyID string) (*Reply, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := s.replyIndex(postID, replyID)
	if i < 0 {
		return nil, ErrNotFound
	}
	r := s.replies[i]
	r.UpvotedBy = slices.Clone(r.UpvotedBy)
	return &r, nil
}

func (s *MemoryStore) ListReplies(_ context.Context, postID string) ([]Reply, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []Reply{}
	for _, r := range s.replies {
		if r.PostID == postID {
			r.UpvotedBy = slices.Clone(r.UpvotedBy)
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (s *MemoryStore) DeleteReply(_ context.Context, postID, replyID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.replyIndex(postID, replyID)
	if i < 0 {
		return ErrNotFound
	}
	s.replies = slices.Delete(s.replies, i, i+1)
	s.comments = slices.DeleteFunc(s.comments, func(c Comment) bool { return c.ReplyID == replyID })
	return nil
}

func (s *MemoryStore) ToggleUpvote(_ context.Context, postID, replyID, userID string) (*Reply, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.replyIndex(postID, replyID)
	if i < 0 {
		return nil, ErrNotFound
	}
	s.replies[i].toggle(userID)
	r := s.replies[i]
	r.UpvotedBy = slices.Clone(r.UpvotedBy)
	return &r, nil
}

func (s *MemoryStore) CreateComment(_ context.Context, c Comment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.replyIndex(c.PostID, c.ReplyID)
	if i < 0 {
		return ErrNotFound
	}
	s.comments = append(s.comments, c)
	s.replies[i].CommentCount++
	return nil
}

func (s *MemoryStore) GetComment(_ context.Context, postID, replyID, commentID string) (*Comment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.comments {
		if c.ID == commentID && c.ReplyID == replyID && c.PostID == postID {
			return &c, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) ListComments(_ context.Context, postID string) (map[string][]Comment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string][]Comment)
	for _, c := range s.comments {
		if c.PostID == postID {
			out[c.ReplyID] = append(out[c.ReplyID], c)
		}
	}
	for _, cs := range out {
		sort.SliceStable(cs, func(i, j int) bool { return cs[i].Date.Before(cs[j].Date) })
	}
	return out, nil
}

func (s *MemoryStore) DeleteComment(_ context.Context, postID, replyID, commentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ri := s.replyIndex(postID, replyID)
	ci := slices.IndexFunc(s.comments, func(c Comment) bool {
		return c.ID == commentID && c.ReplyID == replyID && c.PostID == postID
	})
	if ri < 0 || ci < 0 {
		return ErrNotFound
	}
	s.comments = slices.Delete(s.comments, ci, ci+1)
	s.replies[ri].CommentCount--
	return nil
}

// Counts returns how many posts, replies and comments are stored.
func (s *MemoryStore) Counts() (posts, replies, comments int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.posts), len(s.replies), len(s.comments)
}
