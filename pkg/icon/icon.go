// Package icon prepares the launcher icon of a built application
package icon

import (
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"os"
	"path/filepath"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"

	"github.com/apkforge/apkforge/pkg/logger"
	"github.com/apkforge/apkforge/pkg/resources"
	"github.com/apkforge/apkforge/pkg/types"
)

// ErrIconDecode indicates the user's chosen icon is not a usable image
var ErrIconDecode = errors.New("icon cannot be used")

// DecodeError names the icon that could not be used
type DecodeError struct {
	Icon string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("icon %s: %v", e.Icon, e.Err)
}

func (e *DecodeError) Unwrap() []error {
	return []error{ErrIconDecode, e.Err}
}

// Resolver materializes bundled resources. Satisfied by *resources.Cache.
type Resolver interface {
	Resolve(logicalPath string) (string, error)
}

// Preparer writes the application icon as a PNG file
type Preparer struct {
	resources Resolver
	logger    logger.Logger
}

// NewPreparer creates a preparer that falls back to the bundled default icon
func NewPreparer(res Resolver, log logger.Logger) *Preparer {
	if log == nil {
		log = logger.Discard()
	}
	return &Preparer{resources: res, logger: log}
}

// Prepare writes the project's icon to outputPath. A user-chosen icon that
// cannot be read or decoded is an error. Problems with the default icon are
// only logged.
func (p *Preparer) Prepare(project *types.Project, outputPath string) error {
	if project.Icon != "" {
		src := filepath.Join(project.AssetsDir, project.Icon)
		if err := convert(src, outputPath); err != nil {
			return &DecodeError{Icon: project.Icon, Err: err}
		}
		return nil
	}

	src, err := p.resources.Resolve(resources.DefaultIcon)
	if err == nil {
		err = convert(src, outputPath)
	}
	if err != nil {
		p.logger.Warn("Default icon unavailable, continuing without it",
			logger.WithField("project", project.Name),
			logger.WithError(err))
	}
	return nil
}

func convert(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	img, _, err := image.Decode(in)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if err := png.Encode(out, img); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
