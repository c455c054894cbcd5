package pgfixture

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/pressly/pgfixture/pkg/dockermanage"
	"github.com/stretchr/testify/require"
)

func TestStartContainerSpec(t *testing.T) {
	t.Parallel()

	rt := newFakeRuntime()
	cfg := NewConfig("127.0.0.1", 15432, "user", "secret", "demo")
	c, err := StartContainer(t.Context(), cfg,
		WithRuntime(rt),
		WithLabels(map[string]string{"suite": "unit"}),
	)
	require.NoError(t, err)
	require.Equal(t, "c0ffee", c.ID)
	require.Equal(t, cfg, c.Config)
	require.Equal(t, cfg.URL(), c.URL())

	spec := rt.startedSpec()
	require.Equal(t, DefaultImage, spec.Image)
	require.Equal(t, postgresPort, spec.ContainerPort)
	require.Equal(t, "127.0.0.1", spec.HostIP)
	require.Equal(t, 15432, spec.HostPort)
	require.Equal(t, []string{
		"POSTGRES_DB=demo",
		"POSTGRES_PASSWORD=secret",
		"POSTGRES_USER=user",
	}, spec.Env)
	require.Equal(t, "postgres", spec.Labels[dockermanage.ManagedLabelKey])
	require.Equal(t, "unit", spec.Labels["suite"])
	require.True(t, strings.HasPrefix(spec.Name, "pgfixture-"))
	require.Equal(t, spec.Name, c.Name)

	require.NoError(t, c.Close(t.Context()))
	require.Equal(t, []string{"c0ffee"}, rt.removedIDs())
	require.Equal(t, 1, rt.closeCount())
}

func TestStartContainerImageOverride(t *testing.T) {
	t.Parallel()

	rt := newFakeRuntime()
	c, err := StartContainer(t.Context(), NewConfig("127.0.0.1", 15432, "u", "p", "d"),
		WithRuntime(rt),
		WithImage("postgres:16-alpine"),
	)
	require.NoError(t, err)
	require.Equal(t, "postgres:16-alpine", rt.startedSpec().Image)
	require.NoError(t, c.Close(t.Context()))
}

func TestContainerCloseOnce(t *testing.T) {
	t.Parallel()

	rt := newFakeRuntime()
	rt.removeErr = errors.New("daemon unreachable")
	c, err := StartContainer(t.Context(), NewConfig("127.0.0.1", 15432, "u", "p", "d"), WithRuntime(rt))
	require.NoError(t, err)

	first := c.Close(t.Context())
	second := c.Close(t.Context())
	require.ErrorContains(t, first, "daemon unreachable")
	require.Equal(t, first, second)
	require.Len(t, rt.removedIDs(), 1)
	require.Equal(t, 1, rt.closeCount())
}

func TestStartContainerFailure(t *testing.T) {
	t.Parallel()

	rt := newFakeRuntime()
	rt.startErr = errors.New("port is already allocated")
	c, err := StartContainer(t.Context(), NewConfig("127.0.0.1", 15432, "u", "p", "d"), WithRuntime(rt))
	require.Nil(t, c)
	require.ErrorContains(t, err, "start postgres container")
	require.ErrorIs(t, err, rt.startErr)
	// No container exists, so nothing is removed, but the runtime client is released.
	require.Empty(t, rt.removedIDs())
	require.Equal(t, 1, rt.closeCount())
}

func TestStartContainerMalformedConfig(t *testing.T) {
	t.Parallel()

	rt := newFakeRuntime()
	_, err := StartContainer(t.Context(), NewConfig("", 0, "u", "p", "d"), WithRuntime(rt))
	require.Error(t, err)
	require.Empty(t, rt.removedIDs())
	require.Equal(t, 1, rt.closeCount())
}

func TestStartContainerRuntimeUnavailable(t *testing.T) {
	t.Parallel()

	errNoDocker := errors.New("cannot connect to the Docker daemon")
	noDocker := optionFunc(func(o *options) error {
		o.newRuntime = func(*slog.Logger) (ContainerRuntime, error) { return nil, errNoDocker }
		return nil
	})
	_, err := StartContainer(t.Context(), NewConfig("127.0.0.1", 15432, "u", "p", "d"), noDocker)
	require.ErrorIs(t, err, errNoDocker)
}

func TestUpContainer(t *testing.T) {
	t.Parallel()

	t.Run("removes after success", func(t *testing.T) {
		t.Parallel()
		rt := newFakeRuntime()
		err := UpContainer(t.Context(), NewConfig("127.0.0.1", 15432, "u", "p", "d"), func(ctx context.Context) error {
			rt.rec.add("body")
			return nil
		}, WithRuntime(rt))
		require.NoError(t, err)
		require.Equal(t, []string{"start", "body", "remove", "close runtime"}, rt.rec.list())
	})
	t.Run("removes after body error", func(t *testing.T) {
		t.Parallel()
		rt := newFakeRuntime()
		err := UpContainer(t.Context(), NewConfig("127.0.0.1", 15432, "u", "p", "d"), func(ctx context.Context) error {
			rt.rec.add("body")
			return errBody
		}, WithRuntime(rt))
		require.ErrorIs(t, err, errBody)
		require.Equal(t, []string{"start", "body", "remove", "close runtime"}, rt.rec.list())
	})
	t.Run("removes after panic", func(t *testing.T) {
		t.Parallel()
		rt := newFakeRuntime()
		require.PanicsWithValue(t, "boom", func() {
			_ = UpContainer(t.Context(), NewConfig("127.0.0.1", 15432, "u", "p", "d"), func(ctx context.Context) error {
				panic("boom")
			}, WithRuntime(rt))
		})
		require.Equal(t, []string{"c0ffee"}, rt.removedIDs())
	})
	t.Run("teardown error does not mask body error", func(t *testing.T) {
		t.Parallel()
		rt := newFakeRuntime()
		rt.removeErr = errors.New("remove failed")
		rt.closeErr = errors.New("close failed")
		err := UpContainer(t.Context(), NewConfig("127.0.0.1", 15432, "u", "p", "d"), func(ctx context.Context) error {
			return errBody
		}, WithRuntime(rt))
		require.ErrorIs(t, err, errBody)
		require.ErrorIs(t, err, rt.removeErr)
		require.ErrorIs(t, err, rt.closeErr)
	})
	t.Run("start failure skips body", func(t *testing.T) {
		t.Parallel()
		rt := newFakeRuntime()
		rt.startErr = errors.New("no such image")
		called := false
		err := UpContainer(t.Context(), NewConfig("127.0.0.1", 15432, "u", "p", "d"), func(ctx context.Context) error {
			called = true
			return nil
		}, WithRuntime(rt))
		require.ErrorIs(t, err, rt.startErr)
		require.False(t, called)
		require.Empty(t, rt.removedIDs())
	})
	t.Run("nil body", func(t *testing.T) {
		t.Parallel()
		rt := newFakeRuntime()
		require.Error(t, UpContainer(t.Context(), NewConfig("127.0.0.1", 15432, "u", "p", "d"), nil, WithRuntime(rt)))
		require.Empty(t, rt.rec.list())
	})
}
