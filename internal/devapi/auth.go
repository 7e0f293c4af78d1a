package devapi

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"chub/internal/models"
	"chub/internal/validation"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const (
	tokenIssuer   = "chub-devapi"
	tokenAudience = "chub-client"
	localsUserID  = "userID"
)

// CreateUser adds an account directly, bypassing the HTTP layer.
func (s *Server) CreateUser(username, email, password string) (models.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		return models.User{}, fmt.Errorf("hash password: %w", err)
	}
	s.data.mu.Lock()
	defer s.data.mu.Unlock()
	if s.data.userByEmail(email) != nil {
		return models.User{}, fiber.NewError(fiber.StatusConflict, "Email already registered")
	}
	if s.data.userByName(username) != nil {
		return models.User{}, fiber.NewError(fiber.StatusConflict, "Username already taken")
	}
	now := s.data.now()
	u := &userRecord{
		User: models.User{
			ID:        s.data.id(),
			Username:  username,
			Email:     email,
			CreatedAt: now,
			UpdatedAt: now,
		},
		passwordHash: hash,
	}
	s.data.users[u.ID] = u
	return u.User, nil
}

// AddToken makes token authenticate as userID without JWT verification.
func (s *Server) AddToken(token string, userID uint) {
	s.mu.Lock()
	s.tokens[token] = userID
	s.mu.Unlock()
}

// IssueToken signs a JWT for userID.
func (s *Server) IssueToken(userID uint, username string) (string, error) {
	now := s.opts.Clock()
	claims := jwt.MapClaims{
		"sub":      strconv.FormatUint(uint64(userID), 10),
		"username": username,
		"iss":      tokenIssuer,
		"aud":      tokenAudience,
		"exp":      now.Add(s.opts.TokenTTL).Unix(),
		"iat":      now.Unix(),
		"nbf":      now.Unix(),
		"jti":      uuid.NewString(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.opts.JWTSecret))
}

// Register handles POST /register. It answers with the new user only; the
// client logs in separately.
func (s *Server) Register(c *fiber.Ctx) error {
	var req models.RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	if err := validation.ValidateRegister(req); err != nil {
		return badRequest(err)
	}
	user, err := s.CreateUser(req.Username, req.Email, req.Password)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(user)
}

// Login handles POST /login.
func (s *Server) Login(c *fiber.Ctx) error {
	var req models.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}

	s.data.mu.Lock()
	u := s.data.userByEmail(req.Email)
	var hash []byte
	var user models.User
	if u != nil {
		hash = u.passwordHash
		user = *s.data.publicUser(u.ID)
	}
	s.data.mu.Unlock()

	if u == nil || bcrypt.CompareHashAndPassword(hash, []byte(req.Password)) != nil {
		return fiber.NewError(fiber.StatusUnauthorized, "Invalid credentials")
	}
	token, err := s.IssueToken(user.ID, user.Username)
	if err != nil {
		return fmt.Errorf("sign token: %w", err)
	}
	return c.JSON(models.LoginResponse{Token: token, User: user})
}

// GetProfile handles GET /profile.
func (s *Server) GetProfile(c *fiber.Ctx) error {
	id := userID(c)
	s.data.mu.Lock()
	defer s.data.mu.Unlock()
	user := s.data.publicUser(id)
	if user == nil {
		return fiber.NewError(fiber.StatusNotFound, "User not found")
	}
	return c.JSON(user)
}

// AuthRequired accepts a registered static token or a JWT signed with the
// server secret, and stores the user ID in locals.
func (s *Server) AuthRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		header := c.Get(fiber.HeaderAuthorization)
		tokenString, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || tokenString == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "Authorization required")
		}

		s.mu.Lock()
		id, static := s.tokens[tokenString]
		s.mu.Unlock()
		if !static {
			var err error
			if id, err = s.verifyToken(tokenString); err != nil {
				return fiber.NewError(fiber.StatusUnauthorized, "Invalid or expired token")
			}
		}

		s.data.mu.Lock()
		_, exists := s.data.users[id]
		s.data.mu.Unlock()
		if !exists {
			return fiber.NewError(fiber.StatusUnauthorized, "User no longer exists")
		}
		c.Locals(localsUserID, id)
		return c.Next()
	}
}

func (s *Server) verifyToken(tokenString string) (uint, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return []byte(s.opts.JWTSecret), nil
	},
		jwt.WithIssuer(tokenIssuer),
		jwt.WithAudience(tokenAudience),
		jwt.WithTimeFunc(s.opts.Clock),
	)
	if err != nil {
		return 0, err
	}
	sub, err := token.Claims.GetSubject()
	if err != nil {
		return 0, err
	}
	id, err := strconv.ParseUint(sub, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid subject %q: %w", sub, err)
	}
	return uint(id), nil
}

func userID(c *fiber.Ctx) uint {
	id, _ := c.Locals(localsUserID).(uint)
	return id
}

func badRequest(err error) error {
	msg := err.Error()
	var appErr *models.AppError
	if errors.As(err, &appErr) {
		msg = appErr.Message
	}
	return fiber.NewError(fiber.StatusBadRequest, msg)
}
