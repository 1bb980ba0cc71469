// Package static embeds the attendance kiosk page.
package static

import (
	"embed"
	"io/fs"
	"net/http"
)

//go:embed kiosk/*
var kioskFS embed.FS

// FileSystem returns an http.FileSystem rooted at the kiosk directory.
func FileSystem() http.FileSystem {
	fsys, err := fs.Sub(kioskFS, "kiosk")
	if err != nil {
		panic(err)
	}
	return http.FS(fsys)
}
