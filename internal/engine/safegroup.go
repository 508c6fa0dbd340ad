package engine

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"

	"golang.org/x/sync/errgroup"

	"github.com/apkforge/apkforge/pkg/logger"
)

// ErrPanic indicates a goroutine of a SafeGroup panicked
var ErrPanic = errors.New("goroutine panic")

// PanicError carries the label of the goroutine that panicked and the
// recovered value
type PanicError struct {
	Label string
	Value interface{}
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("%s: %v", e.Label, e.Value)
}

func (e *PanicError) Unwrap() error {
	return ErrPanic
}

// SafeGroup wraps errgroup.Group with panic recovery so one misbehaving
// build cannot take the process down with it.
type SafeGroup struct {
	group  *errgroup.Group
	logger logger.Logger
}

// NewSafeGroup creates a new SafeGroup with panic recovery
func NewSafeGroup(ctx context.Context, log logger.Logger) (*SafeGroup, context.Context) {
	g, ctx := errgroup.WithContext(ctx)
	if log == nil {
		log = logger.Discard()
	}
	return &SafeGroup{
		group:  g,
		logger: log,
	}, ctx
}

// Go runs fn in a new goroutine. A panic becomes a *PanicError labeled
// with label and is logged with its stack trace.
func (sg *SafeGroup) Go(label string, fn func() error) {
	sg.group.Go(func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				sg.logger.Error("Goroutine panic recovered",
					logger.WithField("label", label),
					logger.WithField("panic", r),
					logger.WithField("stack_trace", string(debug.Stack())))

				err = &PanicError{Label: label, Value: r}
			}
		}()

		return fn()
	})
}

// SetLimit caps the number of goroutines running at once. Go blocks while
// the group is full.
func (sg *SafeGroup) SetLimit(n int) {
	sg.group.SetLimit(n)
}

// Wait blocks until every goroutine has returned and reports the first error
func (sg *SafeGroup) Wait() error {
	return sg.group.Wait()
}
