package orchestrator

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestHelperProcess is not a real test. It is the child process started by
// the service manager tests.
func TestHelperProcess(t *testing.T) {
	if os.Getenv("HOLDMED_HELPER_PROCESS") != "1" {
		return
	}

	switch os.Getenv("HOLDMED_HELPER_MODE") {
	case "exit0":
		os.Exit(0)
	case "exit1":
		os.Exit(1)
	case "serve":
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGTERM)
		<-sig
		os.Exit(0)
	case "stubborn":
		signal.Ignore(syscall.SIGTERM)
		time.Sleep(time.Minute)
		os.Exit(0)
	}
	os.Exit(2)
}

func helper(name, mode string) Service {
	return Service{
		Name: name,
		Path: os.Args[0],
		Args: []string{"-test.run=TestHelperProcess"},
		Env:  []string{"HOLDMED_HELPER_PROCESS=1", "HOLDMED_HELPER_MODE=" + mode},
	}
}

func skipOnWindows(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("services are stopped with SIGTERM")
	}
}

func TestBinaryPath(t *testing.T) {
	want := filepath.Join("bin", "api")
	if runtime.GOOS == "windows" {
		want += ".exe"
	}
	assert.Equal(t, want, BinaryPath("bin", "api"))
}

func TestServiceManager(t *testing.T) {
	skipOnWindows(t)

	tests := []struct {
		name     string
		services []Service
		cancel   bool
		wantErr  string
	}{
		{
			name:     "one-shot services completing end the wait cleanly",
			services: []Service{withOneShot(helper("ingest", "exit0"))},
		},
		{
			name:     "failing one-shot service stops the others",
			services: []Service{withOneShot(helper("ingest", "exit1")), helper("api", "serve")},
			wantErr:  "ingest exited",
		},
		{
			name:     "long-running service exiting stops the others",
			services: []Service{helper("api", "exit0"), helper("worker", "serve")},
			wantErr:  "api exited unexpectedly",
		},
		{
			name:     "cancellation terminates running services",
			services: []Service{withOneShot(helper("ingest", "exit0")), helper("api", "serve")},
			cancel:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
			defer cancel()

			sm := NewServiceManager(2*time.Second, tt.services...)
			require.NoError(t, sm.Start(ctx))

			waitCtx, stop := context.WithCancel(ctx)
			defer stop()
			if tt.cancel {
				time.AfterFunc(200*time.Millisecond, stop)
			}

			err := sm.Wait(waitCtx)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			} else {
				assert.NoError(t, err)
			}

			for _, p := range sm.procs {
				assert.True(t, p.exited(), "%s still running", p.service.Name)
			}
		})
	}
}

func TestServiceManagerKillsStubbornService(t *testing.T) {
	skipOnWindows(t)

	sm := NewServiceManager(200*time.Millisecond, helper("api", "stubborn"))
	require.NoError(t, sm.Start(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(300*time.Millisecond, cancel)

	start := time.Now()
	require.NoError(t, sm.Wait(ctx))
	assert.Less(t, time.Since(start), 10*time.Second)
	assert.True(t, sm.procs[0].exited())
}

func TestServiceManagerStartFailure(t *testing.T) {
	skipOnWindows(t)

	missing := Service{Name: "api", Path: filepath.Join(t.TempDir(), "does-not-exist")}
	sm := NewServiceManager(time.Second, helper("worker", "serve"), missing)

	err := sm.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to start api")
	require.Len(t, sm.procs, 1)
	assert.True(t, sm.procs[0].exited())
}

func TestSignalHandler(t *testing.T) {
	sh := NewSignalHandler()
	defer sh.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sh.HandleSignals(ctx, cancel)

	sh.sigChan <- syscall.SIGTERM

	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("context was not cancelled on signal")
	}
}

func withOneShot(s Service) Service {
	s.OneShot = true
	return s
}
