package ratelimit

import "time"

// Providers holds one limiter per external metadata service so that all
// callers of a given service share a single budget.
type Providers struct {
	jikan       *Limiter
	metron      *Limiter
	googleBooks *Limiter
	openLibrary *Limiter
	comicVine   *Limiter
}

func NewProviders() *Providers {
	return &Providers{
		jikan:       New(45, time.Minute),
		metron:      New(30, time.Minute),
		googleBooks: New(30, time.Minute),
		openLibrary: New(30, time.Minute),
		comicVine:   New(200, time.Hour),
	}
}

// For returns the limiter for a provider key. Unknown keys fall back to the
// jikan limiter, which carries the most conservative spacing.
func (p *Providers) For(key string) *Limiter {
	switch key {
	case "metron":
		return p.metron
	case "googlebooks":
		return p.googleBooks
	case "openlibrary":
		return p.openLibrary
	case "comicvine":
		return p.comicVine
	default:
		return p.jikan
	}
}

func (p *Providers) GoogleBooks() *Limiter { return p.googleBooks }
func (p *Providers) OpenLibrary() *Limiter { return p.openLibrary }
