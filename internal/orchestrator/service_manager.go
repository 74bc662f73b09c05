package orchestrator

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
)

// DefaultGracePeriod is how long services get to exit after SIGTERM
const DefaultGracePeriod = 5 * time.Second

// Service is a child process run by the ServiceManager
type Service struct {
	Name string
	Path string
	Args []string
	Env  []string

	// OneShot services are expected to exit; a clean exit doesn't stop the others.
	OneShot bool
	// StartDelay is waited after starting the service, before the next one.
	StartDelay time.Duration
}

// BinaryPath returns the path of a service binary built into dir.
func BinaryPath(dir, name string) string {
	if runtime.GOOS == "windows" {
		name += ".exe"
	}
	return filepath.Join(dir, name)
}

type exitEvent struct {
	service Service
	err     error
}

type process struct {
	service Service
	cmd     *exec.Cmd
	done    chan struct{}
}

// ServiceManager manages the lifecycle of the ingest and API services
type ServiceManager struct {
	services []Service
	grace    time.Duration

	procs []*process
	exits chan exitEvent
}

// NewServiceManager creates a service manager for services, started in order
func NewServiceManager(grace time.Duration, services ...Service) *ServiceManager {
	if grace <= 0 {
		grace = DefaultGracePeriod
	}
	return &ServiceManager{
		services: services,
		grace:    grace,
		exits:    make(chan exitEvent, len(services)),
	}
}

// Start starts every service. If one fails to start, the ones already
// running are shut down.
func (sm *ServiceManager) Start(ctx context.Context) error {
	for _, svc := range sm.services {
		log.Info().Str("service", svc.Name).Str("path", svc.Path).Msg("Starting service...")

		cmd := exec.Command(svc.Path, svc.Args...)
		cmd.Stdout = log.Logger
		cmd.Stderr = log.Logger
		if len(svc.Env) > 0 {
			cmd.Env = append(os.Environ(), svc.Env...)
		}

		if err := cmd.Start(); err != nil {
			sm.shutdownServices()
			return fmt.Errorf("failed to start %s: %w", svc.Name, err)
		}

		p := &process{service: svc, cmd: cmd, done: make(chan struct{})}
		sm.procs = append(sm.procs, p)
		go func() {
			err := p.cmd.Wait()
			close(p.done)
			sm.exits <- exitEvent{service: p.service, err: err}
		}()

		if svc.StartDelay > 0 {
			select {
			case <-time.After(svc.StartDelay):
			case <-ctx.Done():
				sm.shutdownServices()
				return ctx.Err()
			}
		}
	}
	return nil
}

// Wait blocks until a long-running service exits, a one-shot service fails,
// every service has exited, or ctx is cancelled. The remaining services are
// then shut down. The error names the service that ended the wait.
func (sm *ServiceManager) Wait(ctx context.Context) error {
	log.Info().Int("services", len(sm.procs)).Msg("Services started, waiting for completion...")

	running := len(sm.procs)
	for running > 0 {
		select {
		case ev := <-sm.exits:
			running--
			if ev.err != nil {
				log.Error().Err(ev.err).Str("service", ev.service.Name).Msg("Service exited with error")
				sm.shutdownServices()
				return fmt.Errorf("%s exited: %w", ev.service.Name, ev.err)
			}
			if ev.service.OneShot {
				log.Info().Str("service", ev.service.Name).Msg("Service completed successfully")
				continue
			}
			log.Info().Str("service", ev.service.Name).Msg("Service exited")
			sm.shutdownServices()
			return fmt.Errorf("%s exited unexpectedly", ev.service.Name)
		case <-ctx.Done():
			log.Info().Msg("Shutting down services...")
			sm.shutdownServices()
			return nil
		}
	}
	return nil
}

// shutdownServices sends SIGTERM to running services and kills the ones
// still running after the grace period
func (sm *ServiceManager) shutdownServices() {
	for _, p := range sm.procs {
		if p.exited() {
			continue
		}
		if err := p.cmd.Process.Signal(syscall.SIGTERM); err != nil {
			log.Warn().Err(err).Str("service", p.service.Name).Msg("Failed to signal service")
		}
	}

	deadline := time.NewTimer(sm.grace)
	defer deadline.Stop()

	for _, p := range sm.procs {
		select {
		case <-p.done:
		case <-deadline.C:
			sm.killRemaining()
			return
		}
	}
}

func (sm *ServiceManager) killRemaining() {
	for _, p := range sm.procs {
		if p.exited() {
			continue
		}
		log.Warn().Str("service", p.service.Name).Msg("Service did not stop in time, killing")
		p.cmd.Process.Kill()
		<-p.done
	}
}

func (p *process) exited() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}
