package readiness

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeExecer struct {
	out     string
	err     error
	service string
	command []string
}

func (f *fakeExecer) Exec(_ context.Context, service string, command []string) ([]byte, error) {
	f.service, f.command = service, command
	return []byte(f.out), f.err
}

func TestExecCheckFor(t *testing.T) {
	tests := []struct {
		name    string
		service string
		image   string
		want    string
		ok      bool
	}{
		{name: "image with tag", service: "db", image: "postgres:15-alpine", want: "pg_isready", ok: true},
		{name: "registry path and digest", service: "cache", image: "docker.io/library/redis:7@sha256:abc", want: "redis-cli", ok: true},
		{name: "built service falls back to name", service: "postgres", image: "", want: "pg_isready", ok: true},
		{name: "unknown image falls back to name", service: "redis", image: "bitnami/valkey:8", want: "redis-cli", ok: true},
		{name: "unknown", service: "rabbitmq", image: "rabbitmq:3", ok: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, ok := ExecCheckFor(tt.service, tt.image)
			require.Equal(t, tt.ok, ok)
			if ok {
				assert.Equal(t, tt.want, c.Command[0])
			}
		})
	}
}

func TestExecProbe(t *testing.T) {
	redis, _ := ExecCheckFor("redis", "redis:7")

	t.Run("pong", func(t *testing.T) {
		e := &fakeExecer{out: "PONG\n"}
		p := &ExecProbe{Execer: e, Service: "redis", Check: redis}
		assert.NoError(t, p.Probe(context.Background()))
		assert.Equal(t, "redis", e.service)
		assert.Equal(t, []string{"redis-cli", "ping"}, e.command)
		assert.Equal(t, "redis redis-cli", p.Name())
	})

	t.Run("loading", func(t *testing.T) {
		p := &ExecProbe{Execer: &fakeExecer{out: "LOADING Redis is loading the dataset in memory\n"}, Service: "redis", Check: redis}
		assert.ErrorContains(t, p.Probe(context.Background()), "LOADING")
	})

	t.Run("command fails", func(t *testing.T) {
		pg, _ := ExecCheckFor("postgres", "")
		p := &ExecProbe{Execer: &fakeExecer{err: errors.New("pg_isready -q: exit status 2")}, Service: "postgres", Check: pg}
		assert.ErrorContains(t, p.Probe(context.Background()), "exit status 2")
	})
}
