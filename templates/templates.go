// Package templates embeds the templates that ship with hatch.
//
// Each top-level directory under builtin/ is one template in the layout
// registry.LoadFS reads.
package templates

import (
	"embed"
	"io/fs"
)

//go:embed all:builtin
var builtin embed.FS

// FS returns the built-in templates rooted at their ids.
func FS() fs.FS {
	sub, err := fs.Sub(builtin, "builtin")
	if err != nil {
		panic(err)
	}
	return sub
}
