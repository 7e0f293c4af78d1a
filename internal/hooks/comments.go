package hooks

import (
	"context"
	"fmt"
	"net/http"

	"chub/internal/models"
	"chub/internal/optimistic"
	"chub/internal/querycache"
	"chub/internal/validation"
)

// Comments covers a post's comment thread.
type Comments struct {
	c *core
}

func commentLikeKey(id uint) string {
	return optimistic.ResourceKey("comment", id, optimistic.RelLike)
}

func overlayComments(comments []models.Comment, overlay overlayFunc) []models.Comment {
	if comments == nil {
		return nil
	}
	out := make([]models.Comment, len(comments))
	copy(out, comments)
	for i := range out {
		overlay(commentLikeKey(out[i].ID), &out[i].IsLiked, &out[i].Likes)
		out[i].Replies = overlayComments(out[i].Replies, overlay)
	}
	return out
}

// List reads a post's comments. The gate stays closed for postID 0.
func (cm *Comments) List(postID uint, page, limit int) *Query[[]models.Comment] {
	return newQuery(cm.c, CommentsPageKey(postID, page, limit), postID != 0, "Failed to load comments",
		func(ctx context.Context, token string) ([]models.Comment, error) {
			var out []models.Comment
			err := cm.c.call(ctx, http.MethodGet, "/posts/{id}/comments", fmt.Sprintf("/posts/%d/comments", postID), token, pageQuery(page, limit), nil, &out)
			return out, err
		}).withView(overlayComments)
}

// Create posts a comment, or a reply when ParentID is set. A reply is added
// to its parent's cached replies; the parent's reply count is left to the server.
func (cm *Comments) Create(ctx context.Context, req models.CreateCommentRequest) (models.Comment, error) {
	m := &Mutation[models.CreateCommentRequest, models.Comment]{
		c:      cm.c,
		action: "comment",
		validate: func(in models.CreateCommentRequest) error {
			if in.PostID == 0 {
				return models.NewValidationError("Post ID is required")
			}
			if in.ParentID != nil && *in.ParentID == 0 {
				return models.NewValidationError("Parent comment ID is invalid")
			}
			return validation.ValidateComment(in.Content)
		},
		do: func(ctx context.Context, token string, in models.CreateCommentRequest) (models.Comment, error) {
			var out models.Comment
			err := cm.c.call(ctx, http.MethodPost, "/posts/{id}/comments", fmt.Sprintf("/posts/%d/comments", in.PostID), token, nil, in, &out)
			return out, err
		},
		settled: func(_ context.Context, in models.CreateCommentRequest, out models.Comment, err error) {
			if err != nil || in.ParentID == nil {
				return
			}
			reply := out
			cm.c.patchComment(*in.ParentID, func(parent *models.Comment) {
				replies := make([]models.Comment, 0, len(parent.Replies)+1)
				replies = append(replies, parent.Replies...)
				parent.Replies = append(replies, reply)
			})
		},
		keysFor: func(in models.CreateCommentRequest, _ models.Comment) []querycache.Key {
			return []querycache.Key{CommentsKey(in.PostID)}
		},
		success: "Comment posted successfully!",
		failure: "Failed to post comment",
	}
	return m.Run(ctx, req)
}

// Reply answers comment parentID on post postID.
func (cm *Comments) Reply(ctx context.Context, postID, parentID uint, content string) (models.Comment, error) {
	return cm.Create(ctx, models.CreateCommentRequest{PostID: postID, ParentID: &parentID, Content: content})
}

type updateCommentInput struct {
	id      uint
	content string
}

// Update edits a comment's content.
func (cm *Comments) Update(ctx context.Context, id uint, content string) (models.Comment, error) {
	m := &Mutation[updateCommentInput, models.Comment]{
		c:      cm.c,
		action: "edit a comment",
		validate: func(in updateCommentInput) error {
			if err := requireID("Comment")(in.id); err != nil {
				return err
			}
			return validation.ValidateComment(in.content)
		},
		do: func(ctx context.Context, token string, in updateCommentInput) (models.Comment, error) {
			var out models.Comment
			err := cm.c.call(ctx, http.MethodPut, "/comments/{id}", fmt.Sprintf("/comments/%d", in.id), token, nil,
				models.UpdateCommentRequest{Content: in.content}, &out)
			return out, err
		},
		invalidates: []querycache.Key{KeyComments},
		success:     "Comment updated successfully!",
		failure:     "Failed to update comment",
	}
	return m.Run(ctx, updateCommentInput{id: id, content: content})
}

// Delete removes a comment.
func (cm *Comments) Delete(ctx context.Context, id uint) error {
	m := &Mutation[uint, models.MessageResponse]{
		c:        cm.c,
		action:   "delete a comment",
		validate: requireID("Comment"),
		do: func(ctx context.Context, token string, id uint) (models.MessageResponse, error) {
			var out models.MessageResponse
			err := cm.c.call(ctx, http.MethodDelete, "/comments/{id}", fmt.Sprintf("/comments/%d", id), token, nil, nil, &out)
			return out, err
		},
		invalidates: []querycache.Key{KeyComments},
		success:     "Comment deleted successfully!",
		failure:     "Failed to delete comment",
		onSuccess: func(context.Context, uint, models.MessageResponse) {
			cm.c.tracker.Forget(commentLikeKey(id))
		},
	}
	_, err := m.Run(ctx, id)
	return err
}

// Like likes a comment.
func (cm *Comments) Like(ctx context.Context, id uint) (models.LikeResponse, error) {
	return cm.setLike(ctx, id, true)
}

// Unlike removes the viewer's like from a comment.
func (cm *Comments) Unlike(ctx context.Context, id uint) (models.LikeResponse, error) {
	return cm.setLike(ctx, id, false)
}

// ToggleLike flips the displayed like state of a cached comment.
func (cm *Comments) ToggleLike(ctx context.Context, id uint) (models.LikeResponse, error) {
	comment, ok := cm.c.findComment(id)
	if !ok {
		err := models.NewValidationError("Comment is not loaded")
		cm.c.notifier.Error(ctx, err.Message)
		return models.LikeResponse{}, err
	}
	liked := comment.IsLiked
	cm.c.tracker.Overlay(commentLikeKey(id), &liked, nil)
	return cm.setLike(ctx, id, !liked)
}

func (cm *Comments) setLike(ctx context.Context, id uint, want bool) (models.LikeResponse, error) {
	run := &toggleRun{c: cm.c, want: want, target: toggleTarget{
		key:     commentLikeKey(id),
		label:   "Comment like",
		counted: true,
		read: func() (bool, int, bool) {
			comment, ok := cm.c.findComment(id)
			return comment.IsLiked, comment.Likes, ok
		},
		write: func(flag bool, count int) {
			cm.c.patchComment(id, func(comment *models.Comment) {
				comment.IsLiked = flag
				comment.Likes = count
			})
		},
	}}
	method, action := http.MethodPost, "like a comment"
	success, failure := "Comment liked!", "Failed to like comment"
	if !want {
		method, action = http.MethodDelete, "unlike a comment"
		success, failure = "Comment unliked!", "Failed to unlike comment"
	}

	m := &Mutation[uint, likeBody]{
		c:        cm.c,
		action:   action,
		validate: requireID("Comment"),
		prepare:  func(ctx context.Context, _ uint) error { return run.begin(ctx) },
		do: func(ctx context.Context, token string, id uint) (likeBody, error) {
			var body likeBody
			err := cm.c.call(ctx, method, "/comments/{id}/like", fmt.Sprintf("/comments/%d/like", id), token, nil, nil, &body)
			return body, err
		},
		settled: func(_ context.Context, _ uint, body likeBody, err error) {
			run.settle(body.outcome(want, err))
		},
		invalidates: []querycache.Key{KeyComments},
		success:     success,
		failure:     failure,
	}
	body, err := m.Run(ctx, id)
	if err != nil {
		return models.LikeResponse{}, err
	}
	return body.response(want), nil
}
