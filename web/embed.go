// Package web embeds the page templates and static assets served by internal/http.
package web

import "embed"

// TemplatesFS holds every page template; layout.html defines the shared blocks.
//
//go:embed templates/*.html
var TemplatesFS embed.FS

// StaticFS holds the stylesheet served under /static/.
//
//go:embed static/*
var StaticFS embed.FS
