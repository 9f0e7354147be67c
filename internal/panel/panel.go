package panel

import (
	"embed"
	"fmt"
	"io/fs"
	"net/http"
	"path"
)

//go:embed web/*
var content embed.FS

// Handler returns an http.Handler that serves the embedded control panel.
//
// It implements SPA fallback: if a requested file doesn't exist,
// index.html is served so client-side routing works correctly.
// Panics if the embedded web assets cannot be loaded (build error).
func Handler() http.Handler {
	webFS, err := fs.Sub(content, "web")
	if err != nil {
		panic(fmt.Sprintf("panel: failed to load embedded web assets: %v", err))
	}
	fileSystem := http.FS(webFS)
	fileServer := http.FileServer(fileSystem)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Prevent aggressive caching of mutable assets.
		w.Header().Set("Cache-Control", "no-cache, must-revalidate")

		upath := path.Clean(r.URL.Path)
		if upath == "." {
			upath = "/"
		}

		// For root, let FileServer handle it (serves index.html automatically)
		if upath == "/" {
			fileServer.ServeHTTP(w, r)
			return
		}

		// Try to open the requested file
		f, err := fileSystem.Open(upath[1:]) // strip leading /
		if err != nil {
			// File not found: SPA fallback, serve index.html with 200
			r.URL.Path = "/"
			fileServer.ServeHTTP(w, r)
			return
		}
		f.Close()

		fileServer.ServeHTTP(w, r)
	})
}
