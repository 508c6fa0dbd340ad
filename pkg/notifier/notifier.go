// Package notifier provides build notification functionality
package notifier

import (
	"fmt"
	"time"

	"github.com/gen2brain/beeep"

	"github.com/apkforge/apkforge/pkg/logger"
	"github.com/apkforge/apkforge/pkg/types"
)

// BuildNotifier sends desktop notifications about builds
type BuildNotifier struct {
	enabled     bool
	beepOnError bool
	logger      logger.Logger

	notify func(title, message, icon string) error
	beep   func(freq float64, duration int) error
}

// Config represents notification configuration
type Config struct {
	Enabled bool
	// BeepOnError plays the system beep after a failure notification.
	BeepOnError bool
}

// New creates a new build notifier
func New(config Config, log logger.Logger) *BuildNotifier {
	if log == nil {
		log = logger.Discard()
	}
	return &BuildNotifier{
		enabled:     config.Enabled,
		beepOnError: config.BeepOnError,
		logger:      log,
		notify:      beeep.Notify,
		beep:        beeep.Beep,
	}
}

// NotifyBuildStart notifies that a build has started
func (n *BuildNotifier) NotifyBuildStart(project string) {
	if !n.enabled {
		return
	}
	n.send("apkforge", fmt.Sprintf("Building %s...", project))
}

// NotifyBuildSuccess notifies that a build succeeded
func (n *BuildNotifier) NotifyBuildSuccess(project string, duration time.Duration) {
	if !n.enabled {
		return
	}
	n.send("Build Succeeded", fmt.Sprintf("%s built in %s", project, formatDuration(duration)))
}

// NotifyBuildFailure notifies that a build failed in stage
func (n *BuildNotifier) NotifyBuildFailure(project string, stage types.Stage, err error) {
	if !n.enabled {
		return
	}

	message := fmt.Sprintf("%s failed in %s", project, stage)
	if err != nil {
		message = fmt.Sprintf("%s: %v", message, err)
	}
	n.send("Build Failed", message)

	if n.beepOnError {
		if err := n.beep(beeep.DefaultFreq, beeep.DefaultDuration); err != nil {
			n.logger.Debug("Failed to play sound", logger.WithError(err))
		}
	}
}

func (n *BuildNotifier) send(title, message string) {
	if err := n.notify(title, message, ""); err != nil {
		// Headless machines have no notification daemon.
		n.logger.Debug("Failed to send notification",
			logger.WithField("title", title),
			logger.WithError(err))
	}
}

func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
}
