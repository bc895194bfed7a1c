package database_test

import (
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/robalyx/guardian/internal/database"
	"github.com/stretchr/testify/assert"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestHookAfterQuery(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		event   *bun.QueryEvent
		level   zapcore.Level
		message string
	}{
		{
			name:    "success",
			event:   &bun.QueryEvent{Query: "SELECT 1", StartTime: time.Now()},
			level:   zapcore.DebugLevel,
			message: "Query executed",
		},
		{
			name:    "no rows is not an error",
			event:   &bun.QueryEvent{Query: "SELECT 1", StartTime: time.Now(), Err: sql.ErrNoRows},
			level:   zapcore.DebugLevel,
			message: "Query executed",
		},
		{
			name:    "failure",
			event:   &bun.QueryEvent{Query: "SELECT 1", StartTime: time.Now(), Err: errors.New("boom")},
			level:   zapcore.ErrorLevel,
			message: "Query failed",
		},
		{
			name:    "slow",
			event:   &bun.QueryEvent{Query: "SELECT pg_sleep(2)", StartTime: time.Now().Add(-2 * time.Second)},
			level:   zapcore.WarnLevel,
			message: "Slow query",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			core, logs := observer.New(zapcore.DebugLevel)
			hook := database.NewHook(zap.New(core))

			ctx := hook.BeforeQuery(t.Context(), tt.event)
			hook.AfterQuery(ctx, tt.event)

			entries := logs.All()
			if assert.Len(t, entries, 1) {
				assert.Equal(t, tt.level, entries[0].Level)
				assert.Equal(t, tt.message, entries[0].Message)
			}
		})
	}
}
