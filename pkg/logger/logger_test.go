package logger

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/localstall/stallmarket-backend/pkg/config"
)

func TestLoggerErrorIncludesContextFields(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{ServiceName: "test", Level: ParseLevel("debug"), Output: buf})

	ctx := context.Background()
	ctx = log.WithRequestID(ctx, "req-123")
	ctx = log.WithActor(ctx, "user-1", "seller", "stall-9")

	log.Error(ctx, "boom", errors.New("boom"))

	require.Contains(t, buf.String(), `"request_id":"req-123"`)
	require.Contains(t, buf.String(), `"stall_id":"stall-9"`)
	require.Contains(t, buf.String(), `"actor_role":"seller"`)
	require.Contains(t, buf.String(), `"stack"`)
}

func TestLoggerWarnStackToggle(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{ServiceName: "test", Level: ParseLevel("debug"), Output: buf, WarnStack: true})
	log.Warn(context.Background(), "warny")
	require.Contains(t, buf.String(), `"stack"`)

	buf.Reset()
	quiet := New(Options{ServiceName: "test", Output: buf})
	quiet.Warn(context.Background(), "warny")
	require.NotContains(t, buf.String(), `"stack"`)
}

func TestLoggerRespectsLevel(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{ServiceName: "test", Level: zerolog.WarnLevel, Output: buf})
	log.Info(context.Background(), "hidden")
	require.Empty(t, buf.String())
}

func TestParseLevelDefaults(t *testing.T) {
	require.Equal(t, zerolog.InfoLevel, ParseLevel(""))
	require.Equal(t, zerolog.InfoLevel, ParseLevel("invalid"))
	require.Equal(t, zerolog.DebugLevel, ParseLevel(" DEBUG "))
}

func TestWithActorOmitsEmptyStall(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{ServiceName: "test", Output: buf})

	ctx := log.WithActor(context.Background(), "user-2", "buyer", "")
	ctx = log.WithEntity(ctx, "order", "order-7")
	log.Info(ctx, "hello")

	require.Contains(t, buf.String(), `"user_id":"user-2"`)
	require.Contains(t, buf.String(), `"order_id":"order-7"`)
	require.NotContains(t, buf.String(), `"stall_id"`)
}

func TestForAppAddsEnvAndConsoleMode(t *testing.T) {
	log := ForApp("api", config.AppConfig{Env: "dev", LogLevel: "warn", LogFormat: "console"})
	require.Equal(t, zerolog.WarnLevel, log.base.GetLevel())

	buf := &bytes.Buffer{}
	jsonLog := New(Options{ServiceName: "api", Env: "prod", Output: buf})
	jsonLog.Info(context.Background(), "up")
	require.Contains(t, buf.String(), `"env":"prod"`)
	require.Contains(t, buf.String(), `"service":"api"`)
}
