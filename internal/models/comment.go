package models

import "time"

// Comment is a post comment. Replies holds at most one level of nesting.
// ReplyCount is a server rollup and is never incremented locally.
type Comment struct {
	ID         uint      `json:"id"`
	Content    string    `json:"content"`
	UserID     uint      `json:"user_id,omitempty"`
	PostID     uint      `json:"post_id,omitempty"`
	ParentID   *uint     `json:"parent_id,omitempty"`
	User       *User     `json:"user,omitempty"`
	Replies    []Comment `json:"replies,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
	Likes      int       `json:"likes"`
	ReplyCount int       `json:"reply_count"`
	IsLiked    bool      `json:"is_liked"`
}

// CreateCommentRequest creates a comment or, with ParentID set, a reply.
// PostID travels in the path, not the body.
type CreateCommentRequest struct {
	PostID   uint   `json:"-"`
	Content  string `json:"content"`
	ParentID *uint  `json:"parent_id,omitempty"`
}

// UpdateCommentRequest is the payload for PUT /comments/{id}.
type UpdateCommentRequest struct {
	Content string `json:"content"`
}
