package logger_test

import (
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wardwatch/wardwatch/pkg/logger"
)

func TestGroup(t *testing.T) {
	attr := logger.Group("req", slog.String("id", "1"), slog.Int("n", 2))
	require.Equal(t, "req", attr.Key)
	require.Equal(t, slog.KindGroup, attr.Value.Kind())
	g := attr.Value.Group()
	require.Len(t, g, 2)
	assert.Equal(t, "id", g[0].Key)
	assert.Equal(t, "n", g[1].Key)
}

func TestErrors(t *testing.T) {
	err1 := errors.New("first")
	err2 := errors.New("second")

	attr := logger.Errors(err1, nil, err2)
	require.Equal(t, "errors", attr.Key)
	g := attr.Value.Group()
	require.Len(t, g, 2)
	assert.Equal(t, err1, g[0].Value.Any())
	assert.Equal(t, err2, g[1].Value.Any())

	assert.True(t, logger.Errors(nil).Equal(slog.Attr{}))
}

func TestError(t *testing.T) {
	err := errors.New("boom")
	attr := logger.Error(err)
	require.Equal(t, "error", attr.Key)
	assert.Equal(t, err, attr.Value.Any())
	assert.True(t, logger.Error(nil).Equal(slog.Attr{}))
}

func TestIdentifierAttrs(t *testing.T) {
	tests := []struct {
		name string
		attr slog.Attr
		key  string
	}{
		{"user", logger.UserID("u1"), "user_id"},
		{"alert", logger.AlertID("a1"), "alert_id"},
		{"hospital", logger.HospitalID("h1"), "hospital_id"},
		{"notification", logger.NotificationID("n1"), "notification_id"},
		{"queue entry", logger.QueueEntryID("q1"), "queue_entry_id"},
		{"message", logger.MessageID("m1"), "message_id"},
		{"role", logger.Role("doctor"), "role"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.key, tt.attr.Key)
			assert.NotEmpty(t, tt.attr.Value.String())
		})
	}

	assert.True(t, logger.AlertID("").Equal(slog.Attr{}))
	assert.True(t, logger.UserID("").Equal(slog.Attr{}))
}

func TestTier(t *testing.T) {
	attr := logger.Tier(1, 2)
	require.Equal(t, "tier", attr.Key)
	g := attr.Value.Group()
	require.Len(t, g, 2)
	assert.Equal(t, int64(1), g[0].Value.Int64())
	assert.Equal(t, int64(2), g[1].Value.Int64())
}

func TestScalarAttrs(t *testing.T) {
	assert.Equal(t, "sms", logger.Channel("sms").Value.String())
	assert.Equal(t, "critical", logger.Priority("critical").Value.String())
	assert.Equal(t, int64(3), logger.RetryCount(3).Value.Int64())
	assert.Equal(t, time.Second, logger.Duration(time.Second).Value.Duration())
	assert.Equal(t, "dispatcher", logger.Component("dispatcher").Value.String())
	assert.Equal(t, int64(7), logger.Count(7).Value.Int64())
}
