package validation

import (
	"fmt"
	"io"

	"github.com/gabriel-vasile/mimetype"
)

// MaxImageBytes is the largest accepted upload.
const MaxImageBytes = 10 << 20

var allowedImageTypes = []string{"image/png", "image/jpeg", "image/gif"}

// ReadImage reads an upload fully, enforcing the size limit and sniffing the
// content type. It returns the bytes and the detected MIME type.
func ReadImage(r io.Reader) ([]byte, string, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxImageBytes+1))
	if err != nil {
		return nil, "", fmt.Errorf("read image: %w", err)
	}
	if len(data) == 0 {
		return nil, "", invalid("Image is empty")
	}
	if len(data) > MaxImageBytes {
		return nil, "", invalid("Image must be 10 MB or smaller")
	}
	mtype := mimetype.Detect(data)
	if !mimetype.EqualsAny(mtype.String(), allowedImageTypes...) {
		return nil, "", invalid(fmt.Sprintf("Unsupported image type %s", mtype.String()))
	}
	return data, mtype.String(), nil
}
