package dispatch

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/a-h/templ"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/wardwatch/wardwatch/internal/domain"
)

// Keys of Notification.Data understood by the message builders.
const (
	DataAlertID       = "alertId"
	DataHospitalID    = "hospitalId"
	DataRoomNumber    = "roomNumber"
	DataAlertType     = "alertType"
	DataUrgencyLevel  = "urgencyLevel"
	DataDescription   = "description"
	DataTier          = "tier"
	DataRole          = "role"
	DataActor         = "actor"
	DataMessage       = "message"
	DataNotifications = "notifications"
	DataCount         = "count"
)

// message is the channel-independent text of a notification.
type message struct {
	Subject string
	Text    string
}

func compose(n domain.Notification) message {
	switch n.Type {
	case domain.TypeAlertCreated, domain.TypeAlertEscalated,
		domain.TypeAlertAcknowledged, domain.TypeAlertResolved:
		return alertMessage(n)
	case domain.TypeShiftReminder, domain.TypeSystemNotice:
		text := dataString(n.Data, DataMessage)
		if text == "" {
			text = n.Type.Title()
		}
		return message{Subject: prefix(n.Priority) + n.Type.Title(), Text: text}
	case domain.TypeDigest:
		count := dataInt(n.Data, DataCount)
		return message{
			Subject: fmt.Sprintf("%s (%d)", n.Type.Title(), count),
			Text:    fmt.Sprintf("You have %d new notifications.", count),
		}
	}
	return message{Subject: string(n.Type), Text: string(n.Type)}
}

func alertMessage(n domain.Notification) message {
	subject := n.Type.Title()
	room := dataString(n.Data, DataRoomNumber)
	if room != "" {
		subject += ": room " + room
	}

	var b strings.Builder
	b.WriteString(n.Type.Title())
	if kind := dataString(n.Data, DataAlertType); kind != "" {
		b.WriteString(": " + titleCase(kind))
	}
	if room != "" {
		b.WriteString(" in room " + room)
	}
	if role := dataString(n.Data, DataRole); role != "" {
		fmt.Fprintf(&b, ", now with %s", titleCase(role))
		if tier := dataInt(n.Data, DataTier); tier > 0 {
			fmt.Fprintf(&b, " (tier %d)", tier)
		}
	}
	if actor := dataString(n.Data, DataActor); actor != "" {
		b.WriteString(" by " + actor)
	}
	b.WriteString(".")
	if desc := dataString(n.Data, DataDescription); desc != "" {
		b.WriteString(" " + desc)
	}

	return message{Subject: prefix(n.Priority) + subject, Text: b.String()}
}

func prefix(p domain.Priority) string {
	switch p {
	case domain.PriorityCritical:
		return "[CRITICAL] "
	case domain.PriorityHigh:
		return "[URGENT] "
	}
	return ""
}

func titleCase(s string) string {
	return cases.Title(language.English).String(strings.ReplaceAll(s, "_", " "))
}

func dataString(data map[string]any, key string) string {
	v, ok := data[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// dataInt reads numbers stored directly or decoded from JSON.
func dataInt(data map[string]any, key string) int {
	switch v := data[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	case string:
		i, _ := strconv.Atoi(v)
		return i
	}
	return 0
}

// pushData flattens Data into the string map push gateways accept.
func pushData(n domain.Notification) map[string]string {
	out := map[string]string{
		"notificationId": n.ID,
		"type":           string(n.Type),
	}
	if n.AlertID != "" {
		out[DataAlertID] = n.AlertID
	}
	for k, v := range n.Data {
		if k == DataNotifications {
			continue
		}
		out[k] = fmt.Sprint(v)
	}
	return out
}

// digestItem is one entry of a digest's DataNotifications list.
type digestItem struct {
	Type      string
	Subject   string
	Text      string
	CreatedAt time.Time
}

func digestItems(data map[string]any) []digestItem {
	var raw []map[string]any
	switch v := data[DataNotifications].(type) {
	case []map[string]any:
		raw = v
	case []any:
		for _, item := range v {
			if m, ok := item.(map[string]any); ok {
				raw = append(raw, m)
			}
		}
	}

	items := make([]digestItem, 0, len(raw))
	for _, m := range raw {
		it := digestItem{
			Type:    dataString(m, "type"),
			Subject: dataString(m, "subject"),
			Text:    dataString(m, "text"),
		}
		switch ts := m["createdAt"].(type) {
		case time.Time:
			it.CreatedAt = ts
		case string:
			it.CreatedAt, _ = time.Parse(time.RFC3339Nano, ts)
		}
		items = append(items, it)
	}
	return items
}

func notificationEmail(msg message, n domain.Notification) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var b strings.Builder
		writeHead(&b, msg.Subject)
		fmt.Fprintf(&b, "<p>%s</p>", templ.EscapeString(msg.Text))

		rows := [][2]string{
			{"Room", dataString(n.Data, DataRoomNumber)},
			{"Alert type", titleCase(dataString(n.Data, DataAlertType))},
			{"Urgency", dataString(n.Data, DataUrgencyLevel)},
			{"Responsible role", titleCase(dataString(n.Data, DataRole))},
		}
		b.WriteString(`<table cellpadding="4">`)
		for _, r := range rows {
			if strings.TrimSpace(r[1]) == "" {
				continue
			}
			fmt.Fprintf(&b, `<tr><th align="left">%s</th><td>%s</td></tr>`,
				templ.EscapeString(r[0]), templ.EscapeString(r[1]))
		}
		b.WriteString("</table>")
		writeFoot(&b)

		_, err := io.WriteString(w, b.String())
		return err
	})
}

func digestEmail(msg message, items []digestItem) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var b strings.Builder
		writeHead(&b, msg.Subject)
		fmt.Fprintf(&b, "<p>%s</p><ul>", templ.EscapeString(msg.Text))
		for _, it := range items {
			b.WriteString("<li>")
			if !it.CreatedAt.IsZero() {
				fmt.Fprintf(&b, "<small>%s</small> ", templ.EscapeString(it.CreatedAt.UTC().Format("15:04 MST")))
			}
			fmt.Fprintf(&b, "<strong>%s</strong><br>%s</li>",
				templ.EscapeString(it.Subject), templ.EscapeString(it.Text))
		}
		b.WriteString("</ul>")
		writeFoot(&b)

		_, err := io.WriteString(w, b.String())
		return err
	})
}

func writeHead(b *strings.Builder, title string) {
	fmt.Fprintf(b, `<!DOCTYPE html><html><head><meta charset="utf-8"><title>%s</title></head>`, templ.EscapeString(title))
	fmt.Fprintf(b, `<body style="font-family:Arial,sans-serif;color:#1f2933"><h2>%s</h2>`, templ.EscapeString(title))
}

func writeFoot(b *strings.Builder) {
	b.WriteString(`<p style="color:#7b8794;font-size:12px">Sent by WardWatch. Manage delivery preferences in your profile.</p></body></html>`)
}
