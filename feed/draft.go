package feed

import (
	"strings"

	"github.com/hirosato/petsgram/domain"
	"github.com/hirosato/petsgram/photo"
)

// MaxPayloadBytes caps the decoded size of a post image.
const MaxPayloadBytes = 900000

var (
	ErrImageRequired = domain.Invalid("please select an image")
	ErrTitleRequired = domain.Invalid("please enter a title")
	ErrPayloadTooBig = domain.Invalid("compressed image is still too large, please try a smaller image")
)

// Draft is a post before submission.
type Draft struct {
	Title       string
	Caption     string
	Description string
	Image       *photo.Normalized
}

// PayloadSize estimates the decoded byte length of a base64 text.
func PayloadSize(text string) int {
	return (len(text)*3 + 3) / 4
}

func ValidateDraft(draft Draft) error {
	if draft.Image == nil || draft.Image.DataURL == "" {
		return ErrImageRequired
	}
	if strings.TrimSpace(draft.Title) == "" {
		return ErrTitleRequired
	}
	if PayloadSize(draft.Image.DataURL) > MaxPayloadBytes {
		return ErrPayloadTooBig
	}
	return nil
}
