// Package frontend serves the embedded viewer page. The page is plain
// glue: it opens a websocket back to /viewer and hands payloads to the
// renderer; nothing in the core depends on its contents.
package frontend

import (
	"embed"
	"io/fs"
	"net/http"
)

//go:embed static/*
var staticFiles embed.FS

func Handler() http.Handler {
	sub, err := fs.Sub(staticFiles, "static")
	if err != nil {
		panic(err)
	}
	return http.FileServer(http.FS(sub))
}
