package api

import (
	"embed"
	"html/template"
)

//go:embed templates/*.html
var templateFS embed.FS

// pages holds index.html and error.html.
var pages = template.Must(template.ParseFS(templateFS, "templates/*.html"))
