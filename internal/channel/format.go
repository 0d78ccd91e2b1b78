package channel

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"

	"github.com/tuition-notify/internal/domain"
)

// Formatter turns channel-independent content into a channel message.
// Formatters are pure: same input, same output, no I/O.
type Formatter func(ev domain.Event, c domain.Content) Message

// Formatters returns the formatter used for each external channel.
func Formatters() map[domain.Channel]Formatter {
	return map[domain.Channel]Formatter{
		domain.ChannelEmail:    FormatEmail,
		domain.ChannelWhatsApp: FormatWhatsApp,
		domain.ChannelTelegram: FormatTelegram,
		domain.ChannelPush:     FormatPush,
	}
}

const appFooter = "Check the Tuition App for more details."

var emailTmpl = template.Must(template.New("email").Parse(`<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto;">
  <h2 style="color: #1976D2;">{{.Title}}</h2>
  <div style="background: #f5f5f5; padding: 20px; border-radius: 8px;">
    {{- if .SubjectTitle}}
    <h3>{{.SubjectTitle}}</h3>
    {{- end}}
    <p>{{.Message}}</p>
    {{- range .Fields}}
    <p><strong>{{.Label}}:</strong> {{.Value}}</p>
    {{- end}}
  </div>
  <p>{{.Footer}}</p>
  <hr>
  <p style="color: #666; font-size: 12px;">This is an automated notification from Tuition App.</p>
</div>`))

type field struct{ Label, Value string }

func listingFields(l *domain.Listing) []field {
	if l == nil {
		return nil
	}
	all := []field{
		{"Class", l.Class},
		{"Subject", l.Subject},
		{"Board", l.Board},
		{"Salary", salary(l.Salary)},
		{"Time", l.Time},
		{"Address", l.Address},
		{"Gender Preference", l.GenderPreference},
	}
	out := all[:0]
	for _, f := range all {
		if f.Value != "" {
			out = append(out, f)
		}
	}
	return out
}

func salary(s string) string {
	if s == "" {
		return ""
	}
	return "₹" + s
}

// FormatEmail renders an HTML email; Body keeps a plain-text alternative.
func FormatEmail(ev domain.Event, c domain.Content) Message {
	var buf bytes.Buffer
	_ = emailTmpl.Execute(&buf, struct {
		Title, SubjectTitle, Message, Footer string
		Fields                               []field
	}{
		Title:        c.Title,
		SubjectTitle: ev.Subject.Title,
		Message:      c.Message,
		Footer:       appFooter,
		Fields:       listingFields(ev.Subject.Listing),
	})
	return Message{
		Title: c.Title,
		Body:  plainText(ev, c),
		HTML:  buf.String(),
		Data:  pushData(ev),
	}
}

var markdownEscaper = strings.NewReplacer("_", `\_`, "*", `\*`, "[", `\[`, "`", "\\`")

// FormatTelegram renders Telegram legacy Markdown. User-supplied text is escaped.
func FormatTelegram(ev domain.Event, c domain.Content) Message {
	var b strings.Builder
	fmt.Fprintf(&b, "*%s*\n\n", markdownEscaper.Replace(c.Title))
	if ev.Subject.Title != "" && ev.Subject.Listing != nil {
		fmt.Fprintf(&b, "*%s*\n\n", markdownEscaper.Replace(ev.Subject.Title))
	}
	b.WriteString(markdownEscaper.Replace(c.Message))
	b.WriteString("\n")
	if fields := listingFields(ev.Subject.Listing); len(fields) > 0 {
		b.WriteString("\n")
		for _, f := range fields {
			fmt.Fprintf(&b, "%s: %s\n", f.Label, markdownEscaper.Replace(f.Value))
		}
	}
	fmt.Fprintf(&b, "\n_%s_", appFooter)
	return Message{Title: c.Title, Body: b.String(), Data: pushData(ev)}
}

// FormatWhatsApp renders plain text; WhatsApp bodies carry no title field.
func FormatWhatsApp(ev domain.Event, c domain.Content) Message {
	return Message{Title: c.Title, Body: c.Title + "\n\n" + plainText(ev, c), Data: pushData(ev)}
}

// FormatPush keeps the short title and message and attaches the deep-link data.
func FormatPush(ev domain.Event, c domain.Content) Message {
	return Message{Title: c.Title, Body: c.Message, Data: pushData(ev)}
}

func plainText(ev domain.Event, c domain.Content) string {
	var b strings.Builder
	b.WriteString(c.Message)
	for _, f := range listingFields(ev.Subject.Listing) {
		fmt.Fprintf(&b, "\n%s: %s", f.Label, f.Value)
	}
	b.WriteString("\n\n")
	b.WriteString(appFooter)
	return b.String()
}

func pushData(ev domain.Event) map[string]string {
	data := map[string]string{
		"type":   string(ev.Kind),
		"screen": screenFor(ev.Kind),
	}
	if ev.Subject.ID != "" {
		data["subjectId"] = ev.Subject.ID
	}
	return data
}

func screenFor(k domain.Kind) string {
	switch k {
	case domain.KindTuitionPost, domain.KindLike, domain.KindFavorite, domain.KindApplication:
		return "PostDetails"
	case domain.KindComment:
		return "Comments"
	case domain.KindRating:
		return "Profile"
	case domain.KindMessage:
		return "Chat"
	}
	return "Notifications"
}
