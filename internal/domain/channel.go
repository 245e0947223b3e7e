package domain

import "fmt"

// Channel is a delivery channel.
type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
	ChannelPush  Channel = "push"
	ChannelInApp Channel = "in_app"
)

// Channels lists every channel in a stable order.
func Channels() []Channel {
	return []Channel{ChannelInApp, ChannelPush, ChannelSMS, ChannelEmail}
}

// ParseChannel converts s into a Channel.
func ParseChannel(s string) (Channel, error) {
	c := Channel(s)
	if !c.Valid() {
		return "", fmt.Errorf("%w: unknown channel %q", ErrInvalidNotification, s)
	}
	return c, nil
}

func (c Channel) Valid() bool {
	switch c {
	case ChannelEmail, ChannelSMS, ChannelPush, ChannelInApp:
		return true
	}
	return false
}

// Fallback is the channel tried once when c fails. ok is false when c has no
// fallback.
func (c Channel) Fallback() (fallback Channel, ok bool) {
	switch c {
	case ChannelSMS:
		return ChannelEmail, true
	case ChannelPush:
		return ChannelEmail, true
	case ChannelInApp:
		return ChannelPush, true
	case ChannelEmail:
		return "", false
	}
	return "", false
}

func (c Channel) String() string { return string(c) }
