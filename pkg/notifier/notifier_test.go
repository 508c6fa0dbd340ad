package notifier

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apkforge/apkforge/pkg/logger"
	"github.com/apkforge/apkforge/pkg/types"
)

type sent struct {
	title, message string
}

type recorder struct {
	mu    sync.Mutex
	sent  []sent
	beeps int
	err   error
}

func (r *recorder) notify(title, message, _ string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, sent{title, message})
	return r.err
}

func (r *recorder) beep(float64, int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.beeps++
	return nil
}

func newTestNotifier(config Config) (*BuildNotifier, *recorder) {
	rec := &recorder{}
	n := New(config, logger.Discard())
	n.notify = rec.notify
	n.beep = rec.beep
	return n, rec
}

func TestNotifier_Messages(t *testing.T) {
	n, rec := newTestNotifier(Config{Enabled: true})

	n.NotifyBuildStart("HelloPurr")
	n.NotifyBuildSuccess("HelloPurr", 1500*time.Millisecond)
	n.NotifyBuildFailure("PaintPot", types.StageCompile, errors.New("compiling Screen2"))

	require.Len(t, rec.sent, 3)
	assert.Equal(t, sent{"apkforge", "Building HelloPurr..."}, rec.sent[0])
	assert.Equal(t, sent{"Build Succeeded", "HelloPurr built in 1.5s"}, rec.sent[1])
	assert.Equal(t, sent{"Build Failed", "PaintPot failed in Compile: compiling Screen2"}, rec.sent[2])
	assert.Zero(t, rec.beeps)
}

func TestNotifier_Disabled(t *testing.T) {
	n, rec := newTestNotifier(Config{Enabled: false, BeepOnError: true})

	n.NotifyBuildStart("Test")
	n.NotifyBuildSuccess("Test", time.Second)
	n.NotifyBuildFailure("Test", types.StageSign, fmt.Errorf("test error"))

	assert.Empty(t, rec.sent)
	assert.Zero(t, rec.beeps)
}

func TestNotifier_BeepOnError(t *testing.T) {
	n, rec := newTestNotifier(Config{Enabled: true, BeepOnError: true})

	n.NotifyBuildSuccess("Test", time.Second)
	assert.Zero(t, rec.beeps)

	n.NotifyBuildFailure("Test", types.StagePackage, nil)
	assert.Equal(t, 1, rec.beeps)
	assert.Equal(t, "Test failed in Package", rec.sent[1].message)
}

func TestNotifier_DeliveryFailureIsNotFatal(t *testing.T) {
	n, rec := newTestNotifier(Config{Enabled: true})
	rec.err = errors.New("no notification daemon")

	assert.NotPanics(t, func() {
		n.NotifyBuildStart("Test")
	})
	assert.Len(t, rec.sent, 1)
}

func TestNotifier_Concurrent(t *testing.T) {
	n, rec := newTestNotifier(Config{Enabled: true})

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			n.NotifyBuildSuccess(fmt.Sprintf("Project-%d", idx), time.Second)
		}(i)
	}
	wg.Wait()

	assert.Len(t, rec.sent, 5)
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{250 * time.Millisecond, "250ms"},
		{2500 * time.Millisecond, "2.5s"},
		{90 * time.Second, "1m30s"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, formatDuration(tt.in))
	}
}

func BenchmarkNotifier_Disabled(b *testing.B) {
	n := New(Config{Enabled: false}, logger.Discard())

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		n.NotifyBuildFailure("Benchmark", types.StageCompile, fmt.Errorf("test error"))
	}
}
