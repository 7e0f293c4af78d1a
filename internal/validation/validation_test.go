package validation

import (
	"bytes"
	"strings"
	"testing"

	"chub/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidatePost(t *testing.T) {
	t.Parallel()
	valid := models.CreatePostRequest{Title: "Morning prayer", Content: "Grateful today"}

	tests := []struct {
		name    string
		mutate  func(*models.CreatePostRequest)
		wantErr string
	}{
		{"Valid", func(*models.CreatePostRequest) {}, ""},
		{"Missing Title", func(r *models.CreatePostRequest) { r.Title = "  " }, "Title is required"},
		{"Short Title", func(r *models.CreatePostRequest) { r.Title = "Hi" }, "Title must be between 3 and 255 characters"},
		{"Long Title", func(r *models.CreatePostRequest) { r.Title = strings.Repeat("a", 256) }, "Title must be between 3 and 255 characters"},
		{"Missing Content", func(r *models.CreatePostRequest) { r.Content = "" }, "Content is required"},
		{"Relative Image URL", func(r *models.CreatePostRequest) { r.ImageURL = "/img.png" }, "Image URL must be a valid http(s) URL"},
		{"FTP Link", func(r *models.CreatePostRequest) { r.LinkURL = "ftp://x.org/a" }, "Link URL must be a valid http(s) URL"},
		{"Good URLs", func(r *models.CreatePostRequest) {
			r.ImageURL = "https://cdn.example.com/a.png"
			r.LinkURL = "http://example.com"
		}, ""},
		{"Too Many Tags", func(r *models.CreatePostRequest) { r.Tags = make([]string, 11) }, "A post can have at most 10 tags"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := valid
			tt.mutate(&req)
			err := ValidatePost(req)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, models.HasCode(err, models.CodeValidation))
			assert.Equal(t, tt.wantErr, err.Error())
		})
	}
}

func TestValidatePostUpdate_AllowsPartial(t *testing.T) {
	assert.NoError(t, ValidatePostUpdate(models.UpdatePostRequest{Content: "only content"}))
	assert.Error(t, ValidatePostUpdate(models.UpdatePostRequest{Title: "ab"}))
}

func TestParseTags(t *testing.T) {
	assert.Equal(t, []string{"faith", "Hope", "love"}, ParseTags(" faith, Hope ,,love, hope "))
	assert.Nil(t, ParseTags(""))
}

func TestValidateRegister(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		req     models.RegisterRequest
		wantErr bool
	}{
		{"Valid", models.RegisterRequest{Username: "ruth_98", Email: "a@b.com", Password: "secret1"}, false},
		{"Short Username", models.RegisterRequest{Username: "ru", Email: "a@b.com", Password: "secret1"}, true},
		{"Bad Username Chars", models.RegisterRequest{Username: "ruth!", Email: "a@b.com", Password: "secret1"}, true},
		{"Bad Email", models.RegisterRequest{Username: "ruth", Email: "not-an-email", Password: "secret1"}, true},
		{"Display Name Email", models.RegisterRequest{Username: "ruth", Email: "Ruth <a@b.com>", Password: "secret1"}, true},
		{"Short Password", models.RegisterRequest{Username: "ruth", Email: "a@b.com", Password: "12345"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateRegister(tt.req)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateLogin(t *testing.T) {
	assert.NoError(t, ValidateLogin(models.LoginRequest{Email: "a@b.com", Password: "secret1"}))
	assert.Error(t, ValidateLogin(models.LoginRequest{Email: "a@b.com"}))
	assert.Error(t, ValidateLogin(models.LoginRequest{Password: "x"}))
}

func TestValidateContent(t *testing.T) {
	assert.Error(t, ValidateComment("   "))
	assert.Error(t, ValidateComment(strings.Repeat("x", MaxCommentLength+1)))
	assert.NoError(t, ValidateComment("Amen"))
	assert.Error(t, ValidatePrayerRequest(""))
	assert.NoError(t, ValidatePrayerRequest("Please pray for my family"))
}

func TestReadImage(t *testing.T) {
	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00")
	gif := []byte("GIF89a\x01\x00\x01\x00\x80\x00\x00")

	data, mtype, err := ReadImage(bytes.NewReader(png))
	require.NoError(t, err)
	assert.Equal(t, "image/png", mtype)
	assert.Equal(t, png, data)

	_, mtype, err = ReadImage(bytes.NewReader(gif))
	require.NoError(t, err)
	assert.Equal(t, "image/gif", mtype)

	_, _, err = ReadImage(strings.NewReader("just some text"))
	assert.True(t, models.HasCode(err, models.CodeValidation))

	_, _, err = ReadImage(strings.NewReader(""))
	assert.Error(t, err)

	big := append(append([]byte{}, png...), make([]byte, MaxImageBytes)...)
	_, _, err = ReadImage(bytes.NewReader(big))
	assert.EqualError(t, err, "Image must be 10 MB or smaller")
}
