// Package dispatch delivers notifications to staff over email, SMS, push and
// in-app channels.
//
// A Dispatcher enriches each notification with the recipient's contact
// details and preferences, picks channels, and either sends immediately or
// parks low-urgency notifications in a per-user digest window. Failed
// channels fall back once to a secondary channel. A critical notification that
// could not be delivered anywhere is persisted to the retry queue, which
// ProcessQueue drains with exponential backoff.
//
// Channel transports sit behind the EmailSender, SMSSender, PushSender and
// InAppPublisher interfaces. NewEmailAdapter, NewSMSAdapter, NewPushAdapter
// and NewInAppAdapter bind them to the gateway clients in pkg/email, pkg/sms,
// pkg/push and to an eventbus.Publisher.
//
// Usage:
//
//	d := dispatch.New(st,
//		dispatch.WithEmail(dispatch.NewEmailAdapter(sender)),
//		dispatch.WithSMS(dispatch.NewSMSAdapter(smsClient)),
//		dispatch.WithLogger(log),
//	)
//	g.Go(d.Run(ctx))
//
//	res, err := d.Send(ctx, n)
package dispatch
