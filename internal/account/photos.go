package account

import (
	"context"
	"io"
)

// DefaultAvatarURL is served whenever a user has no stored photo reference.
const DefaultAvatarURL = "/img/default-avatar.png"

// MaxPhotoBytes is the upload ceiling. The user-facing message talks about
// "5MB"; the enforced boundary is 5 MiB.
const MaxPhotoBytes = 5 * 1024 * 1024

var allowedPhotoTypes = map[string]struct{}{
	"image/jpeg": {},
	"image/png":  {},
	"image/gif":  {},
	"image/webp": {},
}

// PhotoUpload is one file extracted from a multipart submission.
type PhotoUpload struct {
	Filename    string
	ContentType string
	Size        int64
	Content     io.Reader
}

// PhotoStore persists a validated photo and returns its public URL.
type PhotoStore interface {
	Store(ctx context.Context, ownerID string, contentType string, content io.Reader) (string, error)
}

// ResolvePhotoURL maps a stored photo reference to the URL a client should
// display: the reference verbatim, or the default avatar when absent.
func ResolvePhotoURL(stored *string) string {
	if stored == nil || *stored == "" {
		return DefaultAvatarURL
	}
	return *stored
}
