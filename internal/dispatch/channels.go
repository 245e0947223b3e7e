package dispatch

import (
	"context"

	"github.com/wardwatch/wardwatch/internal/domain"
)

// Receipt is what a channel reports back for an accepted message.
type Receipt struct {
	MessageID string
	// Metadata carries provider details such as SMS cost and segments.
	Metadata map[string]any
}

type EmailRequest struct {
	To      string
	Subject string
	HTML    string
	Tag     string
}

type SMSRequest struct {
	To       string
	Message  string
	Priority domain.Priority
}

type PushRequest struct {
	Tokens   []string
	Title    string
	Body     string
	Data     map[string]string
	Priority domain.Priority
}

type InAppRequest struct {
	UserID       string
	HospitalID   string
	Notification domain.Notification
	Title        string
	Body         string
}

// EmailSender delivers one email.
type EmailSender interface {
	SendEmail(ctx context.Context, req EmailRequest) (Receipt, error)
}

// SMSSender delivers one text message. Implementations reject numbers that
// are not E.164 with domain.ErrInvalidPhoneNumber.
type SMSSender interface {
	SendSMS(ctx context.Context, req SMSRequest) (Receipt, error)
}

// PushSender delivers one push message to a set of device tokens.
type PushSender interface {
	SendPush(ctx context.Context, req PushRequest) (Receipt, error)
}

// InAppPublisher pushes a notification to the user's open sessions.
type InAppPublisher interface {
	PublishInApp(ctx context.Context, req InAppRequest) (Receipt, error)
}

type (
	EmailSenderFunc    func(ctx context.Context, req EmailRequest) (Receipt, error)
	SMSSenderFunc      func(ctx context.Context, req SMSRequest) (Receipt, error)
	PushSenderFunc     func(ctx context.Context, req PushRequest) (Receipt, error)
	InAppPublisherFunc func(ctx context.Context, req InAppRequest) (Receipt, error)
)

func (f EmailSenderFunc) SendEmail(ctx context.Context, req EmailRequest) (Receipt, error) {
	return f(ctx, req)
}

func (f SMSSenderFunc) SendSMS(ctx context.Context, req SMSRequest) (Receipt, error) {
	return f(ctx, req)
}

func (f PushSenderFunc) SendPush(ctx context.Context, req PushRequest) (Receipt, error) {
	return f(ctx, req)
}

func (f InAppPublisherFunc) PublishInApp(ctx context.Context, req InAppRequest) (Receipt, error) {
	return f(ctx, req)
}
