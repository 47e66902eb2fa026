package binder

import (
	"fmt"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type urlParams struct {
	Link string `json:"link" validate:"url"`
}

type dateParams struct {
	Day string `json:"day" validate:"date"`
}

func TestURLValidator(t *testing.T) {
	t.Parallel()
	b, err := New()
	require.NoError(t, err)

	tests := []struct {
		name  string
		value string
		valid bool
	}{
		{"https url", "https://example.com/cover.jpg", true},
		{"http url", "http://example.com", true},
		{"empty string clears the value", "", true},
		{"bare word", "notaurl", false},
		{"missing host", "https://", false},
		{"unsupported scheme", "ftp://example.com/file", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(tt2 *testing.T) {
			c := newContext(fmt.Sprintf(`{"link":%q}`, tt.value), echo.MIMEApplicationJSON)
			p := urlParams{}
			err := b.Bind(&p, c)
			if tt.valid {
				assert.NoError(tt2, err)
			} else {
				assert.Error(tt2, err)
			}
		})
	}
}

func TestDateValidator(t *testing.T) {
	t.Parallel()
	b, err := New()
	require.NoError(t, err)

	tests := []struct {
		name  string
		value string
		valid bool
	}{
		{"valid date", "2026-08-30", true},
		{"empty string clears the value", "", true},
		{"month name", "August 30", false},
		{"missing day", "2026-08", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(tt2 *testing.T) {
			c := newContext(fmt.Sprintf(`{"day":%q}`, tt.value), echo.MIMEApplicationJSON)
			p := dateParams{}
			err := b.Bind(&p, c)
			if tt.valid {
				assert.NoError(tt2, err)
			} else {
				assert.Error(tt2, err)
			}
		})
	}
}
