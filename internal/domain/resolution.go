package domain

import (
	"context"
	"errors"
	"fmt"
	"sync"

	m "qtsync.dev/pkg/qtsync/internal/model"
)

// ErrResolutionFailed wraps the cause of a failed suite resolution.
var ErrResolutionFailed = errors.New("suite resolution failed")

// ResolutionState is the lifecycle of a Resolution.
type ResolutionState int

// Resolution states.
const (
	ResolutionPending ResolutionState = iota
	ResolutionReady
	ResolutionFailed
)

func (s ResolutionState) String() string {
	switch s {
	case ResolutionPending:
		return "pending"
	case ResolutionReady:
		return "ready"
	case ResolutionFailed:
		return "failed"
	}

	return "unknown"
}

// Resolution is the single deferred suite resolution of a sync. It settles
// exactly once, either Ready with a value or Failed with an error.
type Resolution struct {
	done  chan struct{}
	once  sync.Once
	value m.SuiteResolution
	err   error
}

func newResolution() *Resolution {
	return &Resolution{done: make(chan struct{})}
}

// ReadyResolution returns an already settled successful resolution.
func ReadyResolution(value m.SuiteResolution) *Resolution {
	r := newResolution()
	r.settle(value, nil)

	return r
}

// FailedResolution returns an already settled failed resolution.
func FailedResolution(err error) *Resolution {
	r := newResolution()
	r.settle(m.SuiteResolution{}, err)

	return r
}

func (r *Resolution) settle(value m.SuiteResolution, err error) {
	r.once.Do(func() {
		if value.Runs == nil {
			value.Runs = m.RunMapping{}
		}

		r.value = value
		r.err = err
		close(r.done)
	})
}

// Done is closed once the resolution has settled.
func (r *Resolution) Done() <-chan struct{} {
	return r.done
}

// State reports the current state without blocking.
func (r *Resolution) State() ResolutionState {
	select {
	case <-r.done:
		if r.err != nil {
			return ResolutionFailed
		}

		return ResolutionReady
	default:
		return ResolutionPending
	}
}

// Value returns the resolved suite if the resolution is Ready.
func (r *Resolution) Value() (m.SuiteResolution, bool) {
	if r.State() != ResolutionReady {
		return m.SuiteResolution{}, false
	}

	return r.value, true
}

// Await blocks until the resolution settles or ctx is done.
func (r *Resolution) Await(ctx context.Context) (m.SuiteResolution, error) {
	select {
	case <-ctx.Done():
		return m.SuiteResolution{}, ctx.Err()
	case <-r.done:
	}

	if r.err != nil {
		return m.SuiteResolution{}, fmt.Errorf("%w: %w", ErrResolutionFailed, r.err)
	}

	return r.value, nil
}
