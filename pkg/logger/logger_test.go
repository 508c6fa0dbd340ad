package logger_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	pcontext "github.com/apkforge/apkforge/pkg/context"
	"github.com/apkforge/apkforge/pkg/logger"
)

func TestCreateLogger(t *testing.T) {
	log := logger.CreateLogger("", "info")
	if log == nil {
		t.Fatal("expected logger to be created")
	}
}

func TestLogger_LevelFiltering(t *testing.T) {
	tests := []struct {
		level   string
		visible []string
		hidden  []string
	}{
		{"debug", []string{"d-msg", "i-msg", "w-msg", "e-msg"}, nil},
		{"info", []string{"i-msg", "w-msg", "e-msg"}, []string{"d-msg"}},
		{"warn", []string{"w-msg", "e-msg"}, []string{"d-msg", "i-msg"}},
		{"error", []string{"e-msg"}, []string{"d-msg", "i-msg", "w-msg"}},
		{"bogus", []string{"i-msg"}, []string{"d-msg"}},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			var buf bytes.Buffer
			log := logger.CreateLoggerWithOutput("", tt.level, &buf)

			log.Debug("d-msg")
			log.Info("i-msg")
			log.Warn("w-msg")
			log.Error("e-msg")

			output := buf.String()
			for _, m := range tt.visible {
				if !strings.Contains(output, m) {
					t.Errorf("expected %q in output at level %s", m, tt.level)
				}
			}
			for _, m := range tt.hidden {
				if strings.Contains(output, m) {
					t.Errorf("did not expect %q in output at level %s", m, tt.level)
				}
			}
		})
	}
}

func TestLogger_WithTarget(t *testing.T) {
	var buf bytes.Buffer
	log := logger.CreateLoggerWithOutput("", "info", &buf)

	log.WithTarget("HelloPurr").Info("building project")

	if !strings.Contains(buf.String(), "[HelloPurr] building project") {
		t.Errorf("expected project prefix in output, got %q", buf.String())
	}
}

func TestLogger_FieldsAreSorted(t *testing.T) {
	var buf bytes.Buffer
	log := logger.CreateLoggerWithOutput("", "info", &buf)

	log.Info("stage done",
		logger.WithField("zeta", 1),
		logger.WithField("alpha", "x"),
		logger.WithError(errors.New("boom")),
	)

	if !strings.Contains(buf.String(), "{alpha=x, error=boom, zeta=1}") {
		t.Errorf("unexpected field rendering: %q", buf.String())
	}
}

func TestLogger_Success(t *testing.T) {
	var buf bytes.Buffer
	log := logger.CreateLoggerWithOutput("", "info", &buf)

	log.Success("build completed")

	if !strings.Contains(buf.String(), "build completed") {
		t.Error("expected success message in log output")
	}
}

func TestLogger_LogFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "apkforge.log")
	var buf bytes.Buffer
	log := logger.CreateLoggerWithOutput(path, "info", &buf)

	log.Info("to both sinks")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}
	if !strings.Contains(string(data), "to both sinks") {
		t.Error("expected message in log file")
	}
	if !strings.Contains(buf.String(), "to both sinks") {
		t.Error("expected message in writer")
	}
}

func TestLogger_Discard(t *testing.T) {
	log := logger.Discard()
	log.Error("nothing happens")
	log.WithTarget("x").Info("still nothing")
}

func TestWithContext_AddsBuildFields(t *testing.T) {
	var buf bytes.Buffer
	base := logger.CreateLoggerWithOutput("", "info", &buf)

	ctx := pcontext.WithBuildID(context.Background(), "bld_123")
	ctx = pcontext.WithStage(ctx, "Compile")

	logger.WithContext(ctx, base).WithTarget("HelloPurr").Info("compiling")

	output := buf.String()
	for _, want := range []string{"[HelloPurr]", "build_id=bld_123", "stage=Compile"} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %q in %q", want, output)
		}
	}
	if strings.Contains(output, "correlation_id") {
		t.Error("correlation id should be omitted when absent")
	}
}

func TestWithContext_EveryLevel(t *testing.T) {
	var buf bytes.Buffer
	base := logger.CreateLoggerWithOutput("", "debug", &buf)

	ctx := pcontext.WithCorrelationID(context.Background(), "cor_9")
	log := logger.WithContext(ctx, base)

	log.Debug("d")
	log.Info("i")
	log.Warn("w")
	log.Error("e")
	log.Success("s", logger.WithField("apk", "HelloPurr.apk"))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 5 {
		t.Fatalf("got %d lines: %q", len(lines), buf.String())
	}
	for _, line := range lines {
		if !strings.Contains(line, "correlation_id=cor_9") {
			t.Errorf("missing correlation id in %q", line)
		}
	}
	if !strings.Contains(lines[4], "apk=HelloPurr.apk") {
		t.Errorf("caller field dropped in %q", lines[4])
	}
}
