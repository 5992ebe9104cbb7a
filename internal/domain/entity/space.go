package entity

import (
	"errors"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"
)

// SpaceID uniquely identifies a space. It is allocated once when the space is
// first observed and never reused, even after the space is destroyed.
type SpaceID string

// MaxNameLength is the maximum rune length accepted for a space name.
const MaxNameLength = 100

// Space is the durable record of one logical browser window: a user-assigned
// name plus the ordered list of tab URLs the window holds.
type Space struct {
	ID           SpaceID   `json:"id"`
	Name         string    `json:"name"`
	URLs         []string  `json:"urls"`
	LastModified time.Time `json:"last_modified"`
}

// NewSpace creates a space for a window whose tabs were just observed.
// The name defaults to a label derived from the first tab.
func NewSpace(id SpaceID, urls []string, now time.Time) *Space {
	return &Space{
		ID:           id,
		Name:         DeriveName(urls),
		URLs:         append([]string(nil), urls...),
		LastModified: now,
	}
}

// SetURLs replaces the full tab sequence. LastModified only moves forward.
func (s *Space) SetURLs(urls []string, now time.Time) {
	s.URLs = append([]string(nil), urls...)
	s.Touch(now)
}

// Touch bumps LastModified, keeping it monotonically non-decreasing.
func (s *Space) Touch(now time.Time) {
	if now.After(s.LastModified) {
		s.LastModified = now
	}
}

// Rename validates and applies a new user-assigned name.
// Surrounding whitespace is trimmed before validation and storage.
func (s *Space) Rename(name string, now time.Time) error {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return ErrNameRejected
	}
	if utf8.RuneCountInString(trimmed) > MaxNameLength {
		return ErrNameRejected
	}
	s.Name = trimmed
	s.Touch(now)
	return nil
}

// Signature returns the ordered URL sequence as a single comparable key.
// Two windows match for restore purposes iff their signatures are equal.
func (s *Space) Signature() string {
	return URLSignature(s.URLs)
}

// Clone returns a deep copy safe to hand to an asynchronous writer.
func (s *Space) Clone() *Space {
	if s == nil {
		return nil
	}
	cp := *s
	cp.URLs = append([]string(nil), s.URLs...)
	return &cp
}

// Validate checks structural invariants on a record loaded from storage.
func (s *Space) Validate() error {
	if s == nil || s.ID == "" {
		return ErrInvalidSpace
	}
	if s.LastModified.IsZero() {
		return ErrInvalidSpace
	}
	return nil
}

// URLSignature joins an ordered URL sequence into a comparable key.
// The separator cannot appear in a valid URL.
func URLSignature(urls []string) string {
	return strings.Join(urls, "\n")
}

// DeriveName produces the default space name from the first tab's URL host,
// falling back to the raw URL, then to a generic label.
func DeriveName(urls []string) string {
	if len(urls) == 0 {
		return "Untitled Space"
	}
	first := urls[0]
	if u, err := url.Parse(first); err == nil && u.Host != "" {
		return strings.TrimPrefix(u.Host, "www.")
	}
	if trimmed := strings.TrimSpace(first); trimmed != "" {
		if utf8.RuneCountInString(trimmed) > MaxNameLength {
			return string([]rune(trimmed)[:MaxNameLength])
		}
		return trimmed
	}
	return "Untitled Space"
}

var (
	// ErrSpaceNotFound is returned when an operation references an unknown space id.
	ErrSpaceNotFound = errors.New("space not found")

	// ErrNameRejected is returned when a rename fails validation.
	ErrNameRejected = errors.New("space name rejected")

	// ErrInvalidSpace is returned for structurally broken records.
	ErrInvalidSpace = errors.New("invalid space")
)
