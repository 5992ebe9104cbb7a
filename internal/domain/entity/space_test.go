package entity_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mocraimer/chrome-spaces/internal/domain/entity"
)

func TestSpace_Rename(t *testing.T) {
	now := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	s := entity.NewSpace("sp-1", []string{"https://google.com"}, now)

	later := now.Add(time.Minute)
	require.NoError(t, s.Rename("  Work  ", later))
	assert.Equal(t, "Work", s.Name)
	assert.True(t, s.LastModified.Equal(later))
}

func TestSpace_Rename_RejectsEmptyAndWhitespace(t *testing.T) {
	now := time.Now()
	s := entity.NewSpace("sp-1", []string{"https://google.com"}, now)
	original := s.Name

	for _, name := range []string{"", "   ", "\t\n"} {
		err := s.Rename(name, now.Add(time.Minute))
		assert.ErrorIs(t, err, entity.ErrNameRejected)
		assert.Equal(t, original, s.Name, "rejected rename must not change the stored name")
	}
}

func TestSpace_Rename_RejectsOverlongName(t *testing.T) {
	now := time.Now()
	s := entity.NewSpace("sp-1", []string{"https://google.com"}, now)

	long := make([]rune, entity.MaxNameLength+1)
	for i := range long {
		long[i] = 'x'
	}
	assert.ErrorIs(t, s.Rename(string(long), now), entity.ErrNameRejected)
}

func TestSpace_TouchIsMonotonic(t *testing.T) {
	now := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	s := entity.NewSpace("sp-1", []string{"https://a.com"}, now)

	s.Touch(now.Add(-time.Hour))
	assert.True(t, s.LastModified.Equal(now), "LastModified must never move backwards")

	s.Touch(now.Add(time.Hour))
	assert.True(t, s.LastModified.Equal(now.Add(time.Hour)))
}

func TestDeriveName(t *testing.T) {
	tests := []struct {
		name string
		urls []string
		want string
	}{
		{"host", []string{"https://github.com/mocraimer"}, "github.com"},
		{"strips www", []string{"https://www.example.org/page"}, "example.org"},
		{"empty", nil, "Untitled Space"},
		{"opaque", []string{"about:blank"}, "about:blank"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, entity.DeriveName(tt.urls))
		})
	}
}

func TestSpace_CloneIsIndependent(t *testing.T) {
	now := time.Now()
	s := entity.NewSpace("sp-1", []string{"https://a.com", "https://b.com"}, now)

	cp := s.Clone()
	s.SetURLs([]string{"https://c.com"}, now.Add(time.Second))

	assert.Equal(t, []string{"https://a.com", "https://b.com"}, cp.URLs)
}

func TestURLSignature_OrderSensitive(t *testing.T) {
	a := entity.URLSignature([]string{"https://a.com", "https://b.com"})
	b := entity.URLSignature([]string{"https://b.com", "https://a.com"})
	assert.NotEqual(t, a, b)
}
