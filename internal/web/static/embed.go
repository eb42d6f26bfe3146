// Package static embeds the attendance kiosk page.
package static

import (
	"embed"
	"io/fs"
	"net/http"
)

//go:embed dist
var distFS embed.FS

// Handler serves the kiosk page at / and its assets by name.
func Handler() http.Handler {
	page, err := fs.Sub(distFS, "dist")
	if err != nil {
		panic(err)
	}
	return http.FileServerFS(page)
}
