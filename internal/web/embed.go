package web

import (
	"embed"
	"io/fs"
)

var (
	//go:embed static
	embeddedStaticFiles embed.FS

	//go:embed templates
	embeddedTemplates embed.FS
)

// subFS returns the named directory of an embedded tree.
func subFS(content embed.FS, dir string) fs.FS {
	sub, err := fs.Sub(content, dir)
	if err != nil {
		panic(err)
	}

	return sub
}
