// Package entity defines the entities and errors used in the application.
// It includes the URL struct, which represents a shortened URL together with
// its lifecycle flags and metadata, the ClickEvent produced on redirects,
// and the sentinel errors shared across layers.
package entity

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrShortCodeExists is returned when attempting to create a URL with a short code that already exists.
	ErrShortCodeExists = errors.New("short code exists")
	// ErrURLNotFound is returned when no active URL exists for the specified short code.
	// Expired and deactivated records are reported with the same error as absent ones.
	ErrURLNotFound = errors.New("url not found")
	// ErrInvalidURL is returned when the original URL fails syntactic validation.
	ErrInvalidURL = errors.New("invalid url")
	// ErrInvalidCustomCode is returned when a caller-supplied short code violates the code rules.
	ErrInvalidCustomCode = errors.New("invalid custom code")
	// ErrCacheMiss is returned by the cache layer when no usable entry exists
	// for a key. It is internal: resolution treats it as a fall-through to
	// the durable store, never as a failure.
	ErrCacheMiss = errors.New("cache miss")
)

// URL represents a shortened URL.
type URL struct {
	ID          uuid.UUID      // ID is the store-assigned identifier of the record.
	ShortCode   string         // ShortCode is the unique code the original URL resolves from.
	OriginalURL string         // OriginalURL is the normalized full URL the short code points to.
	IsActive    bool           // IsActive allows manual deactivation independent of expiration.
	ExpiresAt   *time.Time     // ExpiresAt, when set and in the past, marks the record inactive.
	Metadata    map[string]any // Metadata is caller-supplied and never interpreted by resolution.
	CreatedAt   time.Time      // CreatedAt is the timestamp when the URL was created.
	UpdatedAt   time.Time      // UpdatedAt is the timestamp when the URL was last updated.
}

// Resolvable reports whether the record may serve a redirect at the given time.
func (u *URL) Resolvable(now time.Time) bool {
	if !u.IsActive {
		return false
	}
	if u.ExpiresAt != nil && now.After(*u.ExpiresAt) {
		return false
	}
	return true
}

// URLStats contains statistics related to a shortened URL.
type URLStats struct {
	URL         *URL
	TotalClicks int64
}

// ClickEvent is the event published to the click stream after a successful
// resolution. EventType and EmittedAt are filled in by the emitter.
type ClickEvent struct {
	URLID     uuid.UUID `json:"url_id"`
	ShortCode string    `json:"short_code"`
	ClickedAt time.Time `json:"clicked_at"`
	IPAddress string    `json:"ip_address,omitempty"`
	UserAgent string    `json:"user_agent,omitempty"`
	Referer   string    `json:"referer,omitempty"`
	EventType string    `json:"event_type"`
	EmittedAt time.Time `json:"emitted_at"`
}
