package web

import (
	"embed"
	"io/fs"
	"net/http"
)

//go:embed static templates
var assets embed.FS

// subFS returns the named directory of the embedded assets. The directories
// are fixed at compile time, so a failure is a build error.
func subFS(dir string) http.FileSystem {
	sub, err := fs.Sub(assets, dir)
	if err != nil {
		panic("web: embedded " + dir + " missing: " + err.Error())
	}

	return http.FS(sub)
}

func staticFS() http.FileSystem { return subFS("static") }
func templatesFS() http.FileSystem { return subFS("templates") }
