package models

import "time"

// Post represents a feed post. IsLiked and IsSaved describe the current
// viewer's relationship to the post only.
type Post struct {
	ID           uint      `json:"id"`
	Title        string    `json:"title"`
	Content      string    `json:"content"`
	ImageURL     string    `json:"image_url,omitempty"`
	LinkURL      string    `json:"link_url,omitempty"`
	Likes        int       `json:"likes"`
	IsLiked      bool      `json:"is_liked"`
	IsSaved      bool      `json:"is_saved"`
	CommentCount int       `json:"comment_count"`
	User         *User     `json:"user,omitempty"`
	Tags         []string  `json:"tags,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// SavedPost is the join row for "current user bookmarked Post".
type SavedPost struct {
	ID        uint      `json:"id"`
	UserID    uint      `json:"user_id"`
	PostID    uint      `json:"post_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Post      *Post     `json:"post,omitempty"`
}

// CreatePostRequest is the payload for POST /posts.
type CreatePostRequest struct {
	Title    string   `json:"title"`
	Content  string   `json:"content"`
	ImageURL string   `json:"image_url,omitempty"`
	LinkURL  string   `json:"link_url,omitempty"`
	Tags     []string `json:"tags,omitempty"`
}

// UpdatePostRequest is the payload for PUT /posts/{id}. Empty fields are left
// untouched by the backend.
type UpdatePostRequest struct {
	Title    string   `json:"title,omitempty"`
	Content  string   `json:"content,omitempty"`
	ImageURL string   `json:"image_url,omitempty"`
	LinkURL  string   `json:"link_url,omitempty"`
	Tags     []string `json:"tags,omitempty"`
}

// LikeResponse is returned by POST/DELETE /posts/{id}/like.
type LikeResponse struct {
	Message string `json:"message"`
	Likes   int    `json:"likes"`
	IsLiked bool   `json:"is_liked"`
}

// SavedPostsResponse wraps GET /saved-posts.
type SavedPostsResponse struct {
	SavedPosts []SavedPost `json:"saved_posts"`
}

// SavedCheckResponse is returned by GET /saved-posts/{id}/check.
type SavedCheckResponse struct {
	IsSaved bool `json:"is_saved"`
}
