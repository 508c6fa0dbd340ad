package resources

import (
	"embed"
	"errors"
	"io/fs"
)

//go:embed bundle/files
var embedded embed.FS

// Embedded returns the resources compiled into the binary: the permission
// document and the default icon.
func Embedded() fs.FS {
	sub, err := fs.Sub(embedded, "bundle")
	if err != nil {
		panic(err)
	}
	return sub
}

type layered []fs.FS

// Layered composes several filesystems; the first one holding a path wins.
func Layered(layers ...fs.FS) fs.FS {
	return layered(layers)
}

func (l layered) Open(name string) (fs.File, error) {
	for _, fsys := range l {
		if fsys == nil {
			continue
		}
		f, err := fsys.Open(name)
		if err == nil {
			return f, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}
	return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrNotExist}
}
