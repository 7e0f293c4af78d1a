package devapi

import (
	"sort"
	"sync"
	"time"

	"chub/internal/models"
)

type userRecord struct {
	models.User
	passwordHash []byte
}

type postRecord struct {
	models.Post
	userID  uint
	likedBy map[uint]bool
}

type commentRecord struct {
	models.Comment
	likedBy map[uint]bool
}

// store is the in-memory state behind the fake backend.
type store struct {
	mu       sync.Mutex
	now      func() time.Time
	nextID   uint
	users    map[uint]*userRecord
	posts    map[uint]*postRecord
	comments map[uint]*commentRecord
	saved    map[uint]map[uint]models.SavedPost // user -> post -> row
	prayers  map[uint]models.PrayerRequest
	uploads  map[string]upload
}

type upload struct {
	mime string
	data []byte
}

func newStore(now func() time.Time) *store {
	return &store{
		now:      now,
		users:    make(map[uint]*userRecord),
		posts:    make(map[uint]*postRecord),
		comments: make(map[uint]*commentRecord),
		saved:    make(map[uint]map[uint]models.SavedPost),
		prayers:  make(map[uint]models.PrayerRequest),
		uploads:  make(map[string]upload),
	}
}

// id hands out one sequence shared by every resource, so ids never collide
// across kinds. Callers hold mu.
func (s *store) id() uint {
	s.nextID++
	return s.nextID
}

func (s *store) userByEmail(email string) *userRecord {
	for _, u := range s.users {
		if u.Email == email {
			return u
		}
	}
	return nil
}

func (s *store) userByName(username string) *userRecord {
	for _, u := range s.users {
		if u.Username == username {
			return u
		}
	}
	return nil
}

func (s *store) publicUser(id uint) *models.User {
	u, ok := s.users[id]
	if !ok {
		return nil
	}
	out := u.User
	out.PostCount = 0
	for _, p := range s.posts {
		if p.userID == id {
			out.PostCount++
		}
	}
	return &out
}

func (s *store) isSaved(viewer, postID uint) bool {
	_, ok := s.saved[viewer][postID]
	return ok
}

// postView renders p as seen by viewer; 0 is an anonymous viewer.
func (s *store) postView(p *postRecord, viewer uint) models.Post {
	out := p.Post
	out.Likes = len(p.likedBy)
	out.IsLiked = p.likedBy[viewer]
	out.IsSaved = s.isSaved(viewer, p.ID)
	out.User = s.publicUser(p.userID)
	out.CommentCount = 0
	for _, c := range s.comments {
		if c.PostID == p.ID {
			out.CommentCount++
		}
	}
	if p.Tags != nil {
		out.Tags = append([]string(nil), p.Tags...)
	}
	return out
}

// postsWhere returns matching posts newest first.
func (s *store) postsWhere(viewer uint, match func(*postRecord) bool) []models.Post {
	out := make([]models.Post, 0)
	for _, p := range s.posts {
		if match(p) {
			out = append(out, s.postView(p, viewer))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out
}

func (s *store) commentView(c *commentRecord, viewer uint) models.Comment {
	out := c.Comment
	out.Likes = len(c.likedBy)
	out.IsLiked = c.likedBy[viewer]
	out.User = s.publicUser(c.UserID)
	out.Replies = nil
	out.ReplyCount = 0
	for _, r := range s.comments {
		if r.ParentID != nil && *r.ParentID == c.ID {
			out.ReplyCount++
			out.Replies = append(out.Replies, s.commentView(r, viewer))
		}
	}
	sort.Slice(out.Replies, func(i, j int) bool { return out.Replies[i].ID < out.Replies[j].ID })
	return out
}

// thread returns a post's top-level comments oldest first, replies nested.
func (s *store) thread(postID, viewer uint) []models.Comment {
	out := make([]models.Comment, 0)
	for _, c := range s.comments {
		if c.PostID == postID && c.ParentID == nil {
			out = append(out, s.commentView(c, viewer))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *store) deletePost(id uint) {
	delete(s.posts, id)
	for cid, c := range s.comments {
		if c.PostID == id {
			delete(s.comments, cid)
		}
	}
	for _, rows := range s.saved {
		delete(rows, id)
	}
}

func (s *store) deleteComment(id uint) {
	delete(s.comments, id)
	for cid, c := range s.comments {
		if c.ParentID != nil && *c.ParentID == id {
			delete(s.comments, cid)
		}
	}
}
