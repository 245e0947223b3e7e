package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/wardwatch/wardwatch/internal/domain"
	"github.com/wardwatch/wardwatch/internal/eventbus"
	"github.com/wardwatch/wardwatch/pkg/email"
	"github.com/wardwatch/wardwatch/pkg/push"
	"github.com/wardwatch/wardwatch/pkg/sms"
)

// NewEmailAdapter sends through an email.Sender such as the Postmark client.
func NewEmailAdapter(s email.Sender) EmailSender {
	return EmailSenderFunc(func(ctx context.Context, req EmailRequest) (Receipt, error) {
		id, err := s.SendEmail(ctx, email.SendEmailParams{
			SendTo:   req.To,
			Subject:  req.Subject,
			BodyHTML: req.HTML,
			Tag:      req.Tag,
		})
		if err != nil {
			return Receipt{}, err
		}
		return Receipt{MessageID: id}, nil
	})
}

type smsClient interface {
	Send(ctx context.Context, msg sms.Message) (sms.Receipt, error)
}

// NewSMSAdapter sends through the SMS gateway client. Gateway cost and
// segment counts are returned as receipt metadata.
func NewSMSAdapter(c smsClient) SMSSender {
	return SMSSenderFunc(func(ctx context.Context, req SMSRequest) (Receipt, error) {
		out, err := c.Send(ctx, sms.Message{
			To:       req.To,
			Body:     req.Message,
			Priority: req.Priority.String(),
		})
		if errors.Is(err, sms.ErrInvalidPhoneNumber) {
			return Receipt{}, errors.Join(domain.ErrInvalidPhoneNumber, err)
		}
		if err != nil {
			return Receipt{}, err
		}
		return Receipt{
			MessageID: out.MessageID,
			Metadata: map[string]any{
				"cost":     out.Cost,
				"segments": out.Segments,
			},
		}, nil
	})
}

type pushClient interface {
	Send(ctx context.Context, msg push.Message) (push.Result, error)
}

// NewPushAdapter sends through the push gateway client. Per-token failures of
// a partially delivered message are reported as metadata.
func NewPushAdapter(c pushClient) PushSender {
	return PushSenderFunc(func(ctx context.Context, req PushRequest) (Receipt, error) {
		out, err := c.Send(ctx, push.Message{
			Tokens:   req.Tokens,
			Title:    req.Title,
			Body:     req.Body,
			Data:     req.Data,
			Priority: pushPriority(req.Priority),
		})
		if err != nil {
			return Receipt{}, err
		}
		r := Receipt{
			MessageID: out.MessageID,
			Metadata:  map[string]any{"delivered": out.Delivered},
		}
		if len(out.Failures) > 0 {
			failed := make([]string, 0, len(out.Failures))
			for _, f := range out.Failures {
				failed = append(failed, fmt.Sprintf("%s: %s", f.Token, f.Error))
			}
			r.Metadata["failures"] = strings.Join(failed, "; ")
		}
		return r, nil
	})
}

func pushPriority(p domain.Priority) string {
	if p >= domain.PriorityHigh {
		return "high"
	}
	return "normal"
}

// NewInAppAdapter publishes in-app notifications as user-addressed events on
// the hospital's event stream.
func NewInAppAdapter(p eventbus.Publisher) InAppPublisher {
	return InAppPublisherFunc(func(ctx context.Context, req InAppRequest) (Receipt, error) {
		n := req.Notification
		ev := eventbus.NewEvent(eventbus.InAppNotification, req.HospitalID, n.AlertID, map[string]any{
			"notificationId": n.ID,
			"type":           string(n.Type),
			"priority":       n.Priority.String(),
			"title":          req.Title,
			"body":           req.Body,
			"data":           n.Data,
		}, n.CreatedAt)
		ev.UserID = req.UserID
		if err := p.Publish(ctx, ev); err != nil {
			return Receipt{}, err
		}
		return Receipt{MessageID: ev.ID}, nil
	})
}
