package domain

import (
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
)

// shutdownRegistry runs registered hooks when the process is asked to stop.
// The signal handler is installed at most once per registry.
//
// Hooks run on the first signal and must not block: they stop the runner and
// let the sync publish what it collected. A second signal ends the process.
type shutdownRegistry struct {
	once    sync.Once
	mu      sync.Mutex
	hooks   []func()
	install func(run func())
}

var processShutdown = &shutdownRegistry{install: installSignalHandler}

func newShutdownRegistry(install func(run func())) *shutdownRegistry {
	return &shutdownRegistry{install: install}
}

func (r *shutdownRegistry) register(hook func()) {
	r.once.Do(func() {
		r.install(r.run)
	})

	r.mu.Lock()
	defer r.mu.Unlock()

	r.hooks = append(r.hooks, hook)
}

func (r *shutdownRegistry) run() {
	r.mu.Lock()
	hooks := append([]func(){}, r.hooks...)
	r.mu.Unlock()

	for _, hook := range hooks {
		hook()
	}
}

func installSignalHandler(run func()) {
	signals := make(chan os.Signal, 2)
	signal.Notify(signals, os.Interrupt, syscall.SIGTERM)

	go func() {
		sig := <-signals
		slog.Info("shutdown signal received, stopping runner", "signal", sig)

		run()

		sig = <-signals
		slog.Warn("second shutdown signal received, exiting without publishing", "signal", sig)

		// Restore the default handler so the exit status reflects the signal.
		signal.Stop(signals)

		if process, err := os.FindProcess(os.Getpid()); err == nil && process.Signal(sig) == nil {
			return
		}

		os.Exit(1)
	}()
}
