package hooks

import (
	"bytes"
	"context"
	"io"

	"chub/internal/upload"
	"chub/internal/validation"
)

// Uploads sends images and returns the URL to store in a post's image_url.
type Uploads struct {
	c        *core
	uploader upload.Uploader
}

type imageInput struct {
	filename string
	r        io.Reader
	data     []byte
}

// UploadImage checks that r holds a png, jpeg or gif of at most 10 MB and uploads it.
func (up *Uploads) UploadImage(ctx context.Context, filename string, r io.Reader) (string, error) {
	m := &Mutation[*imageInput, string]{
		c:      up.c,
		action: "upload an image",
		validate: func(in *imageInput) error {
			data, _, err := validation.ReadImage(in.r)
			if err != nil {
				return err
			}
			in.data = data
			return nil
		},
		do: func(ctx context.Context, token string, in *imageInput) (string, error) {
			return up.uploader.Upload(ctx, token, in.filename, bytes.NewReader(in.data))
		},
		success: "Image uploaded",
		failure: "Failed to upload image",
	}
	return m.Run(ctx, &imageInput{filename: filename, r: r})
}
