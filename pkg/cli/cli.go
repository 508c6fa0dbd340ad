// Package cli provides the command-line interface for apkforge
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/apkforge/apkforge/internal/engine"
	"github.com/apkforge/apkforge/pkg/config"
	"github.com/apkforge/apkforge/pkg/logger"
	"github.com/apkforge/apkforge/pkg/types"
)

var (
	// ErrBuildFailed indicates at least one requested build failed
	ErrBuildFailed = errors.New("build failed")

	// ErrInvalidProject indicates a project or the tool configuration did not validate
	ErrInvalidProject = errors.New("validation failed")
)

// CLI holds the command tree and everything it shares. No package state.
type CLI struct {
	config   *Config
	viper    *viper.Viper
	rootCmd  *cobra.Command
	logger   logger.Logger
	output   io.Writer
	errorOut io.Writer

	// tool is the loaded tool configuration, set before any command runs
	tool *types.Config

	// builder replaces the build pipeline when set
	builder engine.Builder
}

// NewCLI creates a new CLI instance with the given configuration
func NewCLI(cfg *Config) *CLI {
	if cfg == nil {
		cfg = NewConfig()
	}

	c := &CLI{
		config:   cfg,
		viper:    viper.New(),
		output:   &syncWriter{w: os.Stdout},
		errorOut: &syncWriter{w: os.Stderr},
		logger:   logger.Discard(),
	}

	c.setupCommands()
	return c
}

// NewCLIWithOutput creates a CLI with custom output writers (for testing)
func NewCLIWithOutput(cfg *Config, output, errorOut io.Writer) *CLI {
	c := NewCLI(cfg)
	c.output = &syncWriter{w: output}
	c.errorOut = &syncWriter{w: errorOut}
	c.rootCmd.SetOut(output)
	c.rootCmd.SetErr(errorOut)
	return c
}

// WithBuilder makes every build go through b instead of the tool pipeline
func (c *CLI) WithBuilder(b engine.Builder) *CLI {
	c.builder = b
	return c
}

// Execute runs the CLI with the given arguments
func (c *CLI) Execute(args []string) error {
	return c.ExecuteContext(context.Background(), args)
}

// ExecuteContext runs the CLI with context support
func (c *CLI) ExecuteContext(ctx context.Context, args []string) error {
	c.rootCmd.SetArgs(args)
	return c.rootCmd.ExecuteContext(ctx)
}

func (c *CLI) setupCommands() {
	c.rootCmd = &cobra.Command{
		Use:   "apkforge",
		Short: "Build signed Android packages from App Inventor projects",
		Long: `apkforge turns App Inventor projects into signed Android packages.

It writes the manifest and icon, compiles the screens, translates the
classes to Dalvik bytecode, then packages and signs the result.`,

		SilenceUsage:      true,
		PersistentPreRunE: c.initializeConfig,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	c.setupFlags()

	c.rootCmd.Version = c.config.Version
	c.rootCmd.SetVersionTemplate("apkforge v{{.Version}}\n")

	c.rootCmd.AddCommand(c.newBuildCmd())
	c.rootCmd.AddCommand(c.newWatchCmd())
	c.rootCmd.AddCommand(c.newHistoryCmd())
	c.rootCmd.AddCommand(c.newPermissionsCmd())
	c.rootCmd.AddCommand(c.newVersionCmd())
}

func (c *CLI) setupFlags() {
	flags := c.rootCmd.PersistentFlags()

	flags.StringVar(&c.config.ConfigFile, "config", "", "config file (default: apkforge.{yaml,json,toml} in . or ~/.apkforge)")
	flags.StringVarP(&c.config.Verbosity, "verbosity", "v", "info", "log level (debug, info, warn, error)")
	flags.StringVar(&c.config.LogFile, "log-file", "", "also write the log to this file")

	_ = c.viper.BindPFlag("log_level", flags.Lookup("verbosity"))
	_ = c.viper.BindPFlag("log_file", flags.Lookup("log-file"))
}

func (c *CLI) initializeConfig(cmd *cobra.Command, args []string) error {
	tool, err := config.Load(c.viper, c.config.ConfigFile)
	if err != nil {
		return err
	}
	c.tool = tool

	c.logger = logger.CreateLoggerWithOutput(tool.LogFile, string(tool.LogLevel), c.errorOut)
	if used := c.viper.ConfigFileUsed(); used != "" {
		c.logger.Debug("Using config file", logger.WithField("file", used))
	}
	return nil
}

func (c *CLI) newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number of apkforge",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(c.output, "apkforge v%s\n", c.config.Version)
		},
	}
}

// Helper methods for structured output

func (c *CLI) printSuccess(message string) {
	fmt.Fprintf(c.output, "%s %s\n", color.GreenString("✓"), message)
}

func (c *CLI) printFailure(message string) {
	fmt.Fprintf(c.output, "%s %s\n", color.RedString("✗"), message)
}

func (c *CLI) printInfo(message string) {
	fmt.Fprintf(c.output, "%s %s\n", color.CyanString("[apkforge]"), message)
}

// syncWriter serializes writes from concurrent builds
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}

// ExecuteWithVersion runs the CLI on the process arguments
func ExecuteWithVersion(ctx context.Context, version string) error {
	cfg := NewConfig()
	cfg.Version = version
	return NewCLI(cfg).ExecuteContext(ctx, os.Args[1:])
}
