package devapi

import (
	"math/rand/v2"
	"path"
	"strings"

	"chub/internal/models"
	"chub/internal/validation"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const maxRandomPrayers = 20

// RandomPrayerRequests handles GET /prayer-requests/random?limit=N.
func (s *Server) RandomPrayerRequests(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 3)
	if limit <= 0 {
		limit = 3
	}
	limit = min(limit, maxRandomPrayers)

	s.data.mu.Lock()
	all := make([]models.PrayerRequest, 0, len(s.data.prayers))
	for _, pr := range s.data.prayers {
		all = append(all, pr)
	}
	s.data.mu.Unlock()

	rand.Shuffle(len(all), func(i, j int) { all[i], all[j] = all[j], all[i] })
	if len(all) > limit {
		all = all[:limit]
	}
	return c.JSON(models.PrayerRequestsResponse{PrayerRequests: all})
}

// GetPrayerRequest handles GET /prayer-requests/:id.
func (s *Server) GetPrayerRequest(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	s.data.mu.Lock()
	defer s.data.mu.Unlock()
	pr, ok := s.data.prayers[id]
	if !ok {
		return fiber.NewError(fiber.StatusNotFound, "Prayer request not found")
	}
	return c.JSON(pr)
}

// CreatePrayerRequest handles POST /prayer-requests. The author is not stored.
func (s *Server) CreatePrayerRequest(c *fiber.Ctx) error {
	var req models.CreatePrayerRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	if err := validation.ValidatePrayerRequest(req.Content); err != nil {
		return badRequest(err)
	}
	s.data.mu.Lock()
	defer s.data.mu.Unlock()
	pr := models.PrayerRequest{ID: s.data.id(), Content: req.Content, CreatedAt: s.data.now()}
	s.data.prayers[pr.ID] = pr
	return c.Status(fiber.StatusCreated).JSON(pr)
}

// Upload handles POST /upload with the image in multipart field "file".
func (s *Server) Upload(c *fiber.Ctx) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "No file uploaded")
	}
	f, err := fh.Open()
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Unreadable file")
	}
	defer f.Close()

	data, mime, err := validation.ReadImage(f)
	if err != nil {
		return badRequest(err)
	}
	name := uuid.NewString() + strings.ToLower(path.Ext(fh.Filename))
	s.data.mu.Lock()
	s.data.uploads[name] = upload{mime: mime, data: data}
	s.data.mu.Unlock()
	return c.JSON(models.UploadResponse{URL: c.BaseURL() + Prefix + "/uploads/" + name})
}

// GetUpload serves a previously uploaded image.
func (s *Server) GetUpload(c *fiber.Ctx) error {
	s.data.mu.Lock()
	up, ok := s.data.uploads[c.Params("name")]
	s.data.mu.Unlock()
	if !ok {
		return fiber.NewError(fiber.StatusNotFound, "Upload not found")
	}
	c.Set(fiber.HeaderContentType, up.mime)
	return c.Send(up.data)
}
