package devapi

import (
	"sort"

	"chub/internal/models"
	"chub/internal/validation"

	"github.com/gofiber/fiber/v2"
)

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
)

func parseID(c *fiber.Ctx, param string) (uint, error) {
	id, err := c.ParamsInt(param)
	if err != nil || id <= 0 {
		return 0, fiber.NewError(fiber.StatusBadRequest, "Invalid ID")
	}
	return uint(id), nil
}

// paginate applies ?page and ?limit to items; page counts from 1.
func paginate[T any](c *fiber.Ctx, items []T) []T {
	limit := c.QueryInt("limit", defaultPageLimit)
	if limit <= 0 {
		limit = defaultPageLimit
	}
	limit = min(limit, maxPageLimit)
	page := max(c.QueryInt("page", 1), 1)
	start := (page - 1) * limit
	if start >= len(items) {
		return make([]T, 0)
	}
	end := min(start+limit, len(items))
	return items[start:end]
}

// GetPosts handles GET /posts.
func (s *Server) GetPosts(c *fiber.Ctx) error {
	viewer := userID(c)
	s.data.mu.Lock()
	posts := s.data.postsWhere(viewer, func(*postRecord) bool { return true })
	s.data.mu.Unlock()
	return c.JSON(paginate(c, posts))
}

// GetUserPosts handles GET /users/:id/posts.
func (s *Server) GetUserPosts(c *fiber.Ctx) error {
	author, err := parseID(c, "id")
	if err != nil {
		return err
	}
	viewer := userID(c)
	s.data.mu.Lock()
	defer s.data.mu.Unlock()
	if _, ok := s.data.users[author]; !ok {
		return fiber.NewError(fiber.StatusNotFound, "User not found")
	}
	posts := s.data.postsWhere(viewer, func(p *postRecord) bool { return p.userID == author })
	return c.JSON(paginate(c, posts))
}

// GetPost handles GET /posts/:id.
func (s *Server) GetPost(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	s.data.mu.Lock()
	defer s.data.mu.Unlock()
	p, ok := s.data.posts[id]
	if !ok {
		return fiber.NewError(fiber.StatusNotFound, "Post not found")
	}
	return c.JSON(s.data.postView(p, userID(c)))
}

// CreatePost handles POST /posts.
func (s *Server) CreatePost(c *fiber.Ctx) error {
	var req models.CreatePostRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	if err := validation.ValidatePost(req); err != nil {
		return badRequest(err)
	}
	viewer := userID(c)

	s.data.mu.Lock()
	defer s.data.mu.Unlock()
	now := s.data.now()
	p := &postRecord{
		Post: models.Post{
			ID:        s.data.id(),
			Title:     req.Title,
			Content:   req.Content,
			ImageURL:  req.ImageURL,
			LinkURL:   req.LinkURL,
			Tags:      req.Tags,
			CreatedAt: now,
			UpdatedAt: now,
		},
		userID:  viewer,
		likedBy: make(map[uint]bool),
	}
	s.data.posts[p.ID] = p
	return c.Status(fiber.StatusCreated).JSON(s.data.postView(p, viewer))
}

// ownedPost loads post id and checks that viewer wrote it. Callers hold data.mu.
func (s *Server) ownedPost(id, viewer uint) (*postRecord, error) {
	p, ok := s.data.posts[id]
	if !ok {
		return nil, fiber.NewError(fiber.StatusNotFound, "Post not found")
	}
	if p.userID != viewer {
		return nil, fiber.NewError(fiber.StatusForbidden, "You can only modify your own posts")
	}
	return p, nil
}

// UpdatePost handles PUT /posts/:id. Empty fields are left unchanged.
func (s *Server) UpdatePost(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	var req models.UpdatePostRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	if err := validation.ValidatePostUpdate(req); err != nil {
		return badRequest(err)
	}
	viewer := userID(c)

	s.data.mu.Lock()
	defer s.data.mu.Unlock()
	p, err := s.ownedPost(id, viewer)
	if err != nil {
		return err
	}
	if req.Title != "" {
		p.Title = req.Title
	}
	if req.Content != "" {
		p.Content = req.Content
	}
	if req.ImageURL != "" {
		p.ImageURL = req.ImageURL
	}
	if req.LinkURL != "" {
		p.LinkURL = req.LinkURL
	}
	if req.Tags != nil {
		p.Tags = req.Tags
	}
	p.UpdatedAt = s.data.now()
	return c.JSON(s.data.postView(p, viewer))
}

// DeletePost handles DELETE /posts/:id.
func (s *Server) DeletePost(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	s.data.mu.Lock()
	defer s.data.mu.Unlock()
	if _, err := s.ownedPost(id, userID(c)); err != nil {
		return err
	}
	s.data.deletePost(id)
	return c.JSON(models.MessageResponse{Message: "Post deleted successfully"})
}

// LikePost handles POST /posts/:id/like. Liking twice is not an error.
func (s *Server) LikePost(c *fiber.Ctx) error {
	return s.setPostLike(c, true)
}

// UnlikePost handles DELETE /posts/:id/like.
func (s *Server) UnlikePost(c *fiber.Ctx) error {
	return s.setPostLike(c, false)
}

func (s *Server) setPostLike(c *fiber.Ctx, liked bool) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	viewer := userID(c)
	s.data.mu.Lock()
	defer s.data.mu.Unlock()
	p, ok := s.data.posts[id]
	if !ok {
		return fiber.NewError(fiber.StatusNotFound, "Post not found")
	}
	msg := "Post liked"
	if liked {
		p.likedBy[viewer] = true
	} else {
		delete(p.likedBy, viewer)
		msg = "Post unliked"
	}
	return c.JSON(models.LikeResponse{Message: msg, Likes: len(p.likedBy), IsLiked: liked})
}

// GetSavedPosts handles GET /saved-posts, newest bookmark first.
func (s *Server) GetSavedPosts(c *fiber.Ctx) error {
	viewer := userID(c)
	s.data.mu.Lock()
	defer s.data.mu.Unlock()
	out := make([]models.SavedPost, 0, len(s.data.saved[viewer]))
	for postID, row := range s.data.saved[viewer] {
		if p, ok := s.data.posts[postID]; ok {
			view := s.data.postView(p, viewer)
			row.Post = &view
		}
		out = append(out, row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return c.JSON(models.SavedPostsResponse{SavedPosts: out})
}

// CheckSavedPost handles GET /saved-posts/:id/check.
func (s *Server) CheckSavedPost(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	s.data.mu.Lock()
	defer s.data.mu.Unlock()
	return c.JSON(models.SavedCheckResponse{IsSaved: s.data.isSaved(userID(c), id)})
}

// SavePost handles POST /saved-posts/:id.
func (s *Server) SavePost(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	viewer := userID(c)
	s.data.mu.Lock()
	defer s.data.mu.Unlock()
	if _, ok := s.data.posts[id]; !ok {
		return fiber.NewError(fiber.StatusNotFound, "Post not found")
	}
	if s.data.isSaved(viewer, id) {
		return fiber.NewError(fiber.StatusConflict, "Post already saved")
	}
	if s.data.saved[viewer] == nil {
		s.data.saved[viewer] = make(map[uint]models.SavedPost)
	}
	now := s.data.now()
	s.data.saved[viewer][id] = models.SavedPost{
		ID:        s.data.id(),
		UserID:    viewer,
		PostID:    id,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return c.Status(fiber.StatusCreated).JSON(models.MessageResponse{Message: "Post saved successfully"})
}

// UnsavePost handles DELETE /saved-posts/:id.
func (s *Server) UnsavePost(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	viewer := userID(c)
	s.data.mu.Lock()
	defer s.data.mu.Unlock()
	if !s.data.isSaved(viewer, id) {
		return fiber.NewError(fiber.StatusNotFound, "Saved post not found")
	}
	delete(s.data.saved[viewer], id)
	return c.JSON(models.MessageResponse{Message: "Post removed from saved posts"})
}
