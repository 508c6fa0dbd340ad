package engine

import (
	"errors"
	"io/fs"
	"os"
	"sync"

	"github.com/apkforge/apkforge/pkg/icon"
	"github.com/apkforge/apkforge/pkg/logger"
	"github.com/apkforge/apkforge/pkg/notifier"
	"github.com/apkforge/apkforge/pkg/permissions"
	"github.com/apkforge/apkforge/pkg/pipeline"
	"github.com/apkforge/apkforge/pkg/resources"
	"github.com/apkforge/apkforge/pkg/state"
	"github.com/apkforge/apkforge/pkg/toolexec"
	"github.com/apkforge/apkforge/pkg/types"
)

// DependencyFactory creates the process-wide collaborators of every build.
// Each collaborator is created once and shared, so all pipelines of a
// process resolve resources through one cache and run heavy tools under
// one lock.
type DependencyFactory struct {
	config *types.Config
	logger logger.Logger

	mu       sync.Mutex
	lock     *toolexec.HeavyLock
	cache    *resources.Cache
	registry *permissions.Registry
	pipe     *pipeline.Pipeline
	store    *state.Store
}

// NewDependencyFactory creates a new dependency factory
func NewDependencyFactory(config *types.Config, log logger.Logger) *DependencyFactory {
	if log == nil {
		log = logger.Discard()
	}
	return &DependencyFactory{
		config: config,
		logger: log,
		lock:   toolexec.NewHeavyLock(),
	}
}

// CreateDefaults creates the engine dependencies the configuration asks for.
// History is kept only when a state directory is configured.
func (f *DependencyFactory) CreateDefaults() (Dependencies, error) {
	deps := Dependencies{Builder: f.Pipeline()}

	if f.config.StateDir != "" {
		store, err := f.History()
		if err != nil {
			return Dependencies{}, err
		}
		deps.History = store
	}

	if f.config.Notifications {
		deps.Notifier = notifier.New(notifier.Config{Enabled: true}, f.logger)
	}
	return deps, nil
}

// CreateWithOverrides creates dependencies with specific overrides.
// Non-nil overrides replace the defaults.
func (f *DependencyFactory) CreateWithOverrides(overrides Dependencies) (Dependencies, error) {
	deps, err := f.CreateDefaults()
	if err != nil {
		return Dependencies{}, err
	}

	if overrides.Builder != nil {
		deps.Builder = overrides.Builder
	}
	if overrides.History != nil {
		deps.History = overrides.History
	}
	if overrides.Notifier != nil {
		deps.Notifier = overrides.Notifier
	}
	return deps, nil
}

// Resources returns the shared resource cache. A configured resource
// directory takes precedence over the embedded bundle.
func (f *DependencyFactory) Resources() *resources.Cache {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.cache == nil {
		layers := []fs.FS{}
		if f.config.ResourceDir != "" {
			layers = append(layers, os.DirFS(f.config.ResourceDir))
		}
		layers = append(layers, resources.Embedded())
		f.cache = resources.NewCache(resources.Layered(layers...), "", f.logger)
	}
	return f.cache
}

// Permissions returns the shared permission registry
func (f *DependencyFactory) Permissions() *permissions.Registry {
	cache := f.Resources()

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.registry == nil {
		f.registry = permissions.NewRegistry(cache, f.logger)
	}
	return f.registry
}

// Pipeline returns the shared build pipeline
func (f *DependencyFactory) Pipeline() *pipeline.Pipeline {
	cache := f.Resources()
	registry := f.Permissions()

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pipe == nil {
		invoker := toolexec.NewInvoker(f.lock,
			toolexec.WithTimeout(f.config.ToolTimeout),
			toolexec.WithLogger(f.logger))

		f.pipe = pipeline.New(pipeline.Dependencies{
			Resources:   cache,
			Permissions: registry,
			Icons:       icon.NewPreparer(cache, f.logger),
			Tools:       invoker,
			Logger:      f.logger,
		})
	}
	return f.pipe
}

// History opens the build history in the configured state directory
func (f *DependencyFactory) History() (*state.Store, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.store == nil {
		if f.config.StateDir == "" {
			return nil, errors.New("no state directory configured")
		}
		store, err := state.Open(f.config.StateDir, f.logger)
		if err != nil {
			return nil, err
		}
		f.store = store
	}
	return f.store, nil
}

// Options translates the configuration into pipeline options
func (f *DependencyFactory) Options(mode types.BuildMode) pipeline.Options {
	return pipeline.Options{
		Mode:              mode,
		KeystorePath:      f.config.Keystore,
		StorePass:         f.config.StorePass,
		KeyAlias:          f.config.KeyAlias,
		ChildProcessRAMMB: f.config.ChildProcessRAMMB,
		JavaHome:          f.config.JavaHome,
	}
}

// Close releases the history database and the extracted resources
func (f *DependencyFactory) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	var errs []error
	if f.store != nil {
		errs = append(errs, f.store.Close())
		f.store = nil
	}
	if f.cache != nil {
		errs = append(errs, f.cache.Cleanup())
	}
	return errors.Join(errs...)
}
