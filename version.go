// Package hatch generates project skeletons from layered templates.
package hatch

// Version is set at build time with -ldflags "-X github.com/simonhull/firebird-suite/hatch.Version=...".
var Version = "dev"
