package db

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/localstall/stallmarket-backend/pkg/logger"
)

func captureQueryLog(t *testing.T, slow time.Duration) (gormlogger.Interface, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	logg := logger.New(logger.Options{ServiceName: "test", Level: zerolog.DebugLevel, Output: &buf})
	return newQueryLogger(logg, slow), &buf
}

func lastEntry(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[len(lines)-1]), &entry))
	return entry
}

func TestQueryLoggerReportsFailuresAndSlowStatements(t *testing.T) {
	ql, buf := captureQueryLog(t, 10*time.Millisecond)
	stmt := func() (string, int64) { return "SELECT 1", 3 }
	ctx := context.Background()

	ql.Trace(ctx, time.Now(), stmt, errors.New("relation missing"))
	entry := lastEntry(t, buf)
	require.Equal(t, "error", entry["level"])
	require.Equal(t, "db.query.failed", entry["message"])
	require.Equal(t, "SELECT 1", entry["sql"])

	ql.Trace(ctx, time.Now().Add(-time.Second), stmt, nil)
	entry = lastEntry(t, buf)
	require.Equal(t, "warn", entry["level"])
	require.Equal(t, "db.query.slow", entry["message"])
	require.EqualValues(t, 3, entry["rows"])
}

func TestQueryLoggerStaysQuietForFastAndNotFound(t *testing.T) {
	ql, buf := captureQueryLog(t, time.Second)
	stmt := func() (string, int64) { return "SELECT 1", 0 }

	ql.Trace(context.Background(), time.Now(), stmt, nil)
	ql.Trace(context.Background(), time.Now(), stmt, gorm.ErrRecordNotFound)
	require.Empty(t, buf.String())

	ql.LogMode(gormlogger.Info).Trace(context.Background(), time.Now(), stmt, nil)
	require.Equal(t, "db.query", lastEntry(t, buf)["message"])
}

func TestNewFromGormDetectsDriver(t *testing.T) {
	require.Equal(t, DriverSQLite, NewFromGorm(newTestDB(t)).Driver())
}
