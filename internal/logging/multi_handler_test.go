package logging

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureHandler struct {
	level    slog.Level
	err      error
	messages []string
}

func (h *captureHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *captureHandler) Handle(_ context.Context, record slog.Record) error {
	if h.err != nil {
		return h.err
	}
	h.messages = append(h.messages, record.Message)
	return nil
}

func (h *captureHandler) WithAttrs([]slog.Attr) slog.Handler { return h }
func (h *captureHandler) WithGroup(string) slog.Handler      { return h }

func TestMultiHandlerRespectsSinkLevels(t *testing.T) {
	stdout := &captureHandler{level: slog.LevelInfo}
	db := &captureHandler{level: slog.LevelError}
	logger := slog.New(NewMultiHandler(stdout, db))

	logger.Info("run completed")
	logger.Error("record failed")

	assert.Equal(t, []string{"run completed", "record failed"}, stdout.messages)
	assert.Equal(t, []string{"record failed"}, db.messages)
}

func TestMultiHandlerFailingSinkDoesNotSilenceOthers(t *testing.T) {
	stdout := &captureHandler{level: slog.LevelInfo}
	db := &captureHandler{level: slog.LevelError, err: assert.AnError}
	h := NewMultiHandler(db, stdout)

	record := slog.NewRecord(time.Now(), slog.LevelError, "record failed", 0)
	err := h.Handle(context.Background(), record)

	require.Error(t, err)
	assert.Equal(t, []string{"record failed"}, stdout.messages)
}
