package materialize

import (
	"encoding/binary"
	"encoding/hex"
	"io/fs"

	"github.com/zeebo/blake3"

	"github.com/simonhull/firebird-suite/hatch/internal/manifest"
)

const (
	fileMode       fs.FileMode = 0o644
	executableMode fs.FileMode = 0o755
)

// Entry is one file the plan would write.
type Entry struct {
	Path     string // slash-separated, relative to the project root
	Content  []byte
	Mode     fs.FileMode
	Manifest bool // produced by merging manifest fragments
}

// Plan is the side-effect-free description of a generation: every file
// with its final content, sorted by path, plus the merged manifests.
type Plan struct {
	Files     []Entry
	Manifests []*manifest.Manifest // sorted by path
	Digest    string               // hex BLAKE3 over paths, modes and contents
}

// Paths returns the planned file paths in order.
func (p *Plan) Paths() []string {
	paths := make([]string, len(p.Files))
	for i, f := range p.Files {
		paths[i] = f.Path
	}
	return paths
}

// Size returns the total number of content bytes.
func (p *Plan) Size() int64 {
	var n int64
	for _, f := range p.Files {
		n += int64(len(f.Content))
	}
	return n
}

// Manifest returns the merged manifest written at path.
func (p *Plan) Manifest(path string) (*manifest.Manifest, bool) {
	for _, m := range p.Manifests {
		if m.Path == path {
			return m, true
		}
	}
	return nil, false
}

// digest hashes the sorted entries. Every field is length-prefixed so no
// two distinct plans share an encoding.
func digest(files []Entry) string {
	h := blake3.New()
	var buf [8]byte
	write := func(b []byte) {
		binary.BigEndian.PutUint64(buf[:], uint64(len(b)))
		h.Write(buf[:])
		h.Write(b)
	}

	for _, f := range files {
		write([]byte(f.Path))
		binary.BigEndian.PutUint32(buf[:4], uint32(f.Mode))
		h.Write(buf[:4])
		write(f.Content)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// ContentHash returns the hex BLAKE3 hash of content.
func ContentHash(content []byte) string {
	sum := blake3.Sum256(content)
	return hex.EncodeToString(sum[:])
}
