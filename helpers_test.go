package pgfixture

import (
	"context"
	"errors"
	"net"
	"os"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/pressly/pgfixture/pkg/dockermanage"
	"github.com/stretchr/testify/require"
)

// withBudget shrinks the readiness budget so tests do not wait seconds.
func withBudget(attempts int, interval time.Duration) Option {
	return optionFunc(func(o *options) error {
		o.attempts = attempts
		o.interval = interval
		return nil
	})
}

// withAttemptTimeout shortens the time a single connection attempt may take.
func withAttemptTimeout(d time.Duration) Option {
	return optionFunc(func(o *options) error {
		o.attemptTimeout = d
		return nil
	})
}

func refusedErr() error {
	return &net.OpError{
		Op:  "dial",
		Net: "tcp",
		Err: os.NewSyscallError("connect", syscall.ECONNREFUSED),
	}
}

// serveTCP accepts connections on a loopback port and passes each one to handle, which may be
// nil. Accepted connections stay open until the test ends. It returns the listen address and a
// func reporting how many connections were accepted so far.
func serveTCP(t *testing.T, handle func(net.Conn)) (string, func() int) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	var (
		mu    sync.Mutex
		conns []net.Conn
	)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			mu.Lock()
			conns = append(conns, c)
			mu.Unlock()
			if handle != nil {
				go handle(c)
			}
		}
	}()
	t.Cleanup(func() {
		_ = ln.Close()
		<-done
		mu.Lock()
		defer mu.Unlock()
		for _, c := range conns {
			_ = c.Close()
		}
	})
	accepted := func() int {
		mu.Lock()
		defer mu.Unlock()
		return len(conns)
	}
	return ln.Addr().String(), accepted
}

// recorder keeps the order in which fakes were called.
type recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *recorder) add(event string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recorder) list() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

// fakeRuntime is an in-memory ContainerRuntime.
type fakeRuntime struct {
	rec *recorder

	startErr  error
	removeErr error
	closeErr  error

	mu      sync.Mutex
	spec    dockermanage.Spec
	removed []string
	closes  int
}

var _ ContainerRuntime = (*fakeRuntime)(nil)

func newFakeRuntime() *fakeRuntime {
	return &fakeRuntime{rec: &recorder{}}
}

func (f *fakeRuntime) Start(_ context.Context, options ...dockermanage.Option) (*dockermanage.Container, error) {
	f.rec.add("start")
	spec, err := dockermanage.BuildSpec(options...)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	f.spec = spec
	f.mu.Unlock()
	if f.startErr != nil {
		return nil, f.startErr
	}
	return &dockermanage.Container{
		ID:     "c0ffee",
		Name:   spec.Name,
		Image:  spec.Image,
		Host:   spec.HostIP,
		Port:   spec.HostPort,
		Labels: spec.Labels,
	}, nil
}

func (f *fakeRuntime) Remove(_ context.Context, containerID string) error {
	f.rec.add("remove")
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removed = append(f.removed, containerID)
	return f.removeErr
}

func (f *fakeRuntime) Close() error {
	f.rec.add("close runtime")
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closes++
	return f.closeErr
}

func (f *fakeRuntime) startedSpec() dockermanage.Spec {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.spec
}

func (f *fakeRuntime) removedIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.removed...)
}

func (f *fakeRuntime) closeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closes
}

// fakeProbe refuses connections before attempt acceptAt and returns final from then on. A zero
// acceptAt refuses forever.
type fakeProbe struct {
	rec      *recorder
	acceptAt int
	final    error

	mu    sync.Mutex
	calls int
	urls  []string
}

func (p *fakeProbe) probe(_ context.Context, url string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	p.urls = append(p.urls, url)
	if p.rec != nil {
		p.rec.add("probe")
	}
	if p.acceptAt == 0 || p.calls < p.acceptAt {
		return refusedErr()
	}
	return p.final
}

func (p *fakeProbe) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

var errBody = errors.New("body failed")
