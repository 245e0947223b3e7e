package logger

import (
	"log/slog"
	"strconv"
	"time"
)

// Group creates a slog group attribute from the provided attributes.
func Group(name string, attrs ...slog.Attr) slog.Attr {
	return slog.Attr{Key: name, Value: slog.GroupValue(attrs...)}
}

// Errors groups multiple non-nil errors under the key "errors".
func Errors(errs ...error) slog.Attr {
	as := make([]slog.Attr, 0, len(errs))
	for i, err := range errs {
		if err != nil {
			as = append(as, slog.Any(strconv.Itoa(i), err))
		}
	}
	if len(as) == 0 {
		return slog.Attr{}
	}
	return slog.Attr{Key: "errors", Value: slog.GroupValue(as...)}
}

// Error records a single error under the key "error".
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any("error", err)
}

func UserID(id string) slog.Attr {
	return optionalString("user_id", id)
}

func AlertID(id string) slog.Attr {
	return optionalString("alert_id", id)
}

func HospitalID(id string) slog.Attr {
	return optionalString("hospital_id", id)
}

func NotificationID(id string) slog.Attr {
	return optionalString("notification_id", id)
}

func QueueEntryID(id string) slog.Attr {
	return optionalString("queue_entry_id", id)
}

func MessageID(id string) slog.Attr {
	return optionalString("message_id", id)
}

func Role(role string) slog.Attr {
	return optionalString("role", role)
}

// Channel records a delivery channel name under "channel".
func Channel(name string) slog.Attr {
	return slog.String("channel", name)
}

// Priority records a notification priority under "priority".
func Priority(p string) slog.Attr {
	return slog.String("priority", p)
}

// Tier records a from/to escalation tier pair under "tier".
func Tier(from, to int) slog.Attr {
	return Group("tier", slog.Int("from", from), slog.Int("to", to))
}

func RetryCount(count int) slog.Attr {
	return slog.Int("retry_count", count)
}

func Duration(d time.Duration) slog.Attr {
	return slog.Duration("duration", d)
}

func Component(name string) slog.Attr {
	return slog.String("component", name)
}

func Count(n int) slog.Attr {
	return slog.Int("count", n)
}

func optionalString(key, v string) slog.Attr {
	if v == "" {
		return slog.Attr{}
	}
	return slog.String(key, v)
}
