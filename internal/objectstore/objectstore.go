// Package objectstore is the destination bucket that migrated images are
// uploaded to.
package objectstore

import (
	"context"
	"errors"
	"fmt"
)

// ContentTypeJPEG is the single content type every migrated image is stored as.
const ContentTypeJPEG = "image/jpeg"

// ErrExists is returned by Upload when the object was created concurrently.
var ErrExists = errors.New("object already exists")

// Bucket stores objects by path.
type Bucket interface {
	Exists(ctx context.Context, path string) (bool, error)
	Upload(ctx context.Context, path string, data []byte, contentType string) error
	// PublicURL is the URL the app stores for an uploaded object.
	PublicURL(path string) string
}

// ProfilePath is where a student's profile picture lives.
func ProfilePath(studentID string) string {
	return fmt.Sprintf("profile/%s/avatar.jpg", studentID)
}

// ProgressPath is where a progress photo lives.
func ProgressPath(studioID, studentID, photoID string) string {
	return fmt.Sprintf("progress/%s/%s/%s.jpg", studioID, studentID, photoID)
}
