// Package logger builds the structured slog loggers used by every wardwatch
// component and keeps attribute naming consistent across them.
//
// New returns a *slog.Logger configured through functional options. Environment
// presets (WithEnvironment, WithDevelopment, WithProduction) pick the output
// format and level, WithAttr adds static attributes and WithContextValue injects
// request- or tick-scoped values pulled from context.Context at log time.
//
// Attribute helpers such as AlertID, HospitalID, Tier, Channel and Error return
// slog.Attr values with fixed keys, so log queries such as
// `alert_id="..." AND channel="sms"` work across the escalation engine and the
// notification dispatcher:
//
//	log := logger.New(logger.WithEnvironment(cfg.Env, "wardwatch"))
//	log.LogAttrs(ctx, slog.LevelWarn, "channel attempt failed",
//	    logger.NotificationID(n.ID),
//	    logger.Channel(string(domain.ChannelSMS)),
//	    logger.Error(err),
//	)
//
// Helpers that take an error or identifier return an empty slog.Attr for nil
// input, which slog drops, so callers never need a nil check.
package logger
