package devapi

import (
	"chub/internal/models"
	"chub/internal/validation"

	"github.com/gofiber/fiber/v2"
)

// GetComments handles GET /posts/:id/comments.
func (s *Server) GetComments(c *fiber.Ctx) error {
	postID, err := parseID(c, "id")
	if err != nil {
		return err
	}
	s.data.mu.Lock()
	defer s.data.mu.Unlock()
	if _, ok := s.data.posts[postID]; !ok {
		return fiber.NewError(fiber.StatusNotFound, "Post not found")
	}
	return c.JSON(paginate(c, s.data.thread(postID, userID(c))))
}

// CreateComment handles POST /posts/:id/comments. A reply's parent must be a
// top-level comment on the same post.
func (s *Server) CreateComment(c *fiber.Ctx) error {
	postID, err := parseID(c, "id")
	if err != nil {
		return err
	}
	var req models.CreateCommentRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	if err := validation.ValidateComment(req.Content); err != nil {
		return badRequest(err)
	}
	viewer := userID(c)

	s.data.mu.Lock()
	defer s.data.mu.Unlock()
	if _, ok := s.data.posts[postID]; !ok {
		return fiber.NewError(fiber.StatusNotFound, "Post not found")
	}
	if req.ParentID != nil {
		parent, ok := s.data.comments[*req.ParentID]
		if !ok || parent.PostID != postID {
			return fiber.NewError(fiber.StatusNotFound, "Parent comment not found")
		}
		if parent.ParentID != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Replies cannot be nested further")
		}
	}
	now := s.data.now()
	cm := &commentRecord{
		Comment: models.Comment{
			ID:        s.data.id(),
			Content:   req.Content,
			UserID:    viewer,
			PostID:    postID,
			ParentID:  req.ParentID,
			CreatedAt: now,
			UpdatedAt: now,
		},
		likedBy: make(map[uint]bool),
	}
	s.data.comments[cm.ID] = cm
	return c.Status(fiber.StatusCreated).JSON(s.data.commentView(cm, viewer))
}

func (s *Server) ownedComment(id, viewer uint) (*commentRecord, error) {
	cm, ok := s.data.comments[id]
	if !ok {
		return nil, fiber.NewError(fiber.StatusNotFound, "Comment not found")
	}
	if cm.UserID != viewer {
		return nil, fiber.NewError(fiber.StatusForbidden, "You can only modify your own comments")
	}
	return cm, nil
}

// UpdateComment handles PUT /comments/:id.
func (s *Server) UpdateComment(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	var req models.UpdateCommentRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	if err := validation.ValidateComment(req.Content); err != nil {
		return badRequest(err)
	}
	viewer := userID(c)
	s.data.mu.Lock()
	defer s.data.mu.Unlock()
	cm, err := s.ownedComment(id, viewer)
	if err != nil {
		return err
	}
	cm.Content = req.Content
	cm.UpdatedAt = s.data.now()
	return c.JSON(s.data.commentView(cm, viewer))
}

// DeleteComment handles DELETE /comments/:id, removing its replies too.
func (s *Server) DeleteComment(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	s.data.mu.Lock()
	defer s.data.mu.Unlock()
	if _, err := s.ownedComment(id, userID(c)); err != nil {
		return err
	}
	s.data.deleteComment(id)
	return c.JSON(models.MessageResponse{Message: "Comment deleted successfully"})
}

// LikeComment handles POST /comments/:id/like.
func (s *Server) LikeComment(c *fiber.Ctx) error {
	return s.setCommentLike(c, true)
}

// UnlikeComment handles DELETE /comments/:id/like.
func (s *Server) UnlikeComment(c *fiber.Ctx) error {
	return s.setCommentLike(c, false)
}

func (s *Server) setCommentLike(c *fiber.Ctx, liked bool) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	viewer := userID(c)
	s.data.mu.Lock()
	defer s.data.mu.Unlock()
	cm, ok := s.data.comments[id]
	if !ok {
		return fiber.NewError(fiber.StatusNotFound, "Comment not found")
	}
	msg := "Comment liked"
	if liked {
		cm.likedBy[viewer] = true
	} else {
		delete(cm.likedBy, viewer)
		msg = "Comment unliked"
	}
	return c.JSON(models.LikeResponse{Message: msg, Likes: len(cm.likedBy), IsLiked: liked})
}
