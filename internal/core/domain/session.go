package domain

import (
	"net/url"
	"strings"
	"time"
)

// FeedbackSession groups a document and all annotations attached to it
// for one feedback exchange
type FeedbackSession struct {
	ID          string    `json:"id"`
	DocumentURL string    `json:"document_url"`
	Title       string    `json:"title"`
	OwnerID     string    `json:"owner_id"`
	CreatedAt   time.Time `json:"created_at"`
}

// SessionWithAnnotations is the payload of GET /feedback-sessions/{id}
type SessionWithAnnotations struct {
	Session     *FeedbackSession `json:"session"`
	Annotations []*Annotation    `json:"annotations"`
}

// CreateSessionRequest opens a new feedback session on a document
type CreateSessionRequest struct {
	DocumentURL string `json:"document_url"`
	Title       string `json:"title"`
}

// Validate checks that the document URL is an absolute http(s) URL
func (r CreateSessionRequest) Validate() error {
	raw := strings.TrimSpace(r.DocumentURL)
	if raw == "" {
		return ErrInvalidInput
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return ErrInvalidInput
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ErrInvalidInput
	}
	return nil
}
