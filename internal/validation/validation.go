// Package validation checks user input before it is sent to the backend.
// Every failure is a models.AppError with CodeValidation.
package validation

import (
	"net/mail"
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"

	"chub/internal/models"
)

// Limits shared with the backend.
const (
	MinTitleLength    = 3
	MaxTitleLength    = 255
	MaxCommentLength  = 5000
	MaxPrayerLength   = 2000
	MinUsernameLength = 3
	MaxUsernameLength = 30
	MinPasswordLength = 6
	MaxTags           = 10
)

var usernameRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

func invalid(msg string) error {
	return models.NewValidationError(msg)
}

// ValidatePost checks a new post.
func ValidatePost(req models.CreatePostRequest) error {
	if err := validateTitle(req.Title); err != nil {
		return err
	}
	if strings.TrimSpace(req.Content) == "" {
		return invalid("Content is required")
	}
	if err := validateOptionalURL("Image URL", req.ImageURL); err != nil {
		return err
	}
	if err := validateOptionalURL("Link URL", req.LinkURL); err != nil {
		return err
	}
	return validateTags(req.Tags)
}

// ValidatePostUpdate checks a partial post update. Empty fields are left alone.
func ValidatePostUpdate(req models.UpdatePostRequest) error {
	if req.Title != "" {
		if err := validateTitle(req.Title); err != nil {
			return err
		}
	}
	if err := validateOptionalURL("Image URL", req.ImageURL); err != nil {
		return err
	}
	if err := validateOptionalURL("Link URL", req.LinkURL); err != nil {
		return err
	}
	return validateTags(req.Tags)
}

func validateTitle(title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return invalid("Title is required")
	}
	n := utf8.RuneCountInString(title)
	if n < MinTitleLength || n > MaxTitleLength {
		return invalid("Title must be between 3 and 255 characters")
	}
	return nil
}

func validateOptionalURL(field, raw string) error {
	if raw == "" {
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return invalid(field + " must be a valid http(s) URL")
	}
	return nil
}

func validateTags(tags []string) error {
	if len(tags) > MaxTags {
		return invalid("A post can have at most 10 tags")
	}
	return nil
}

// ParseTags splits a comma-separated tag list, trimming blanks and duplicates.
func ParseTags(raw string) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, part := range strings.Split(raw, ",") {
		tag := strings.TrimSpace(part)
		if tag == "" {
			continue
		}
		key := strings.ToLower(tag)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, tag)
	}
	return out
}

// ValidateRegister checks a signup request.
func ValidateRegister(req models.RegisterRequest) error {
	if err := ValidateUsername(req.Username); err != nil {
		return err
	}
	if err := ValidateEmail(req.Email); err != nil {
		return err
	}
	return ValidatePassword(req.Password)
}

// ValidateLogin checks a login request.
func ValidateLogin(req models.LoginRequest) error {
	if err := ValidateEmail(req.Email); err != nil {
		return err
	}
	if req.Password == "" {
		return invalid("Password is required")
	}
	return nil
}

// ValidateUsername enforces 3-30 letters, digits, underscores or hyphens.
func ValidateUsername(username string) error {
	n := len(username)
	if n < MinUsernameLength || n > MaxUsernameLength {
		return invalid("Username must be between 3 and 30 characters")
	}
	if !usernameRegex.MatchString(username) {
		return invalid("Username may only contain letters, numbers, underscores and hyphens")
	}
	return nil
}

// ValidateEmail checks for a bare address such as a@b.com.
func ValidateEmail(email string) error {
	if strings.TrimSpace(email) == "" {
		return invalid("Email is required")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || !strings.Contains(email, "@") {
		return invalid("Email is invalid")
	}
	return nil
}

// ValidatePassword enforces the backend's minimum length.
func ValidatePassword(password string) error {
	if utf8.RuneCountInString(password) < MinPasswordLength {
		return invalid("Password must be at least 6 characters")
	}
	return nil
}

// ValidateComment checks comment or reply content.
func ValidateComment(content string) error {
	return validateContent("Comment", content, MaxCommentLength)
}

// ValidatePrayerRequest checks prayer request content.
func ValidatePrayerRequest(content string) error {
	return validateContent("Prayer request", content, MaxPrayerLength)
}

func validateContent(field, content string, limit int) error {
	if strings.TrimSpace(content) == "" {
		return invalid(field + " cannot be empty")
	}
	if utf8.RuneCountInString(content) > limit {
		return invalid(field + " is too long")
	}
	return nil
}
