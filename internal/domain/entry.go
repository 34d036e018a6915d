package domain

import "time"

const (
	// MaxImages is the most images attached to a single analysis.
	MaxImages = 3
	// DefaultImageMIMEType applies when an image arrives without a type.
	DefaultImageMIMEType = "image/jpeg"
)

// Image is an encoded still image. Data is standard base64 without a data: prefix.
type Image struct {
	MIMEType string `json:"mimeType,omitempty"`
	Data     string `json:"data"`
}

// ContentType returns the image MIME type, defaulting to JPEG.
func (i Image) ContentType() string {
	if i.MIMEType == "" {
		return DefaultImageMIMEType
	}
	return i.MIMEType
}

// JournalEntry is the digest of a stored diary entry used for review reports.
type JournalEntry struct {
	ID        string    `json:"id"`
	Date      time.Time `json:"date"`
	Title     string    `json:"title"`
	Content   string    `json:"content,omitempty"`
	MoodGlyph string    `json:"mood,omitempty"`
	Tags      []string  `json:"tags,omitempty"`
	Summary   string    `json:"summary,omitempty"`
}
