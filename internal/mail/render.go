package mail

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/costavn/notify-engine/internal/domain"
	"github.com/costavn/notify-engine/internal/queue"
)

// ActionLabel returns the localized verb used in subjects and bodies.
func ActionLabel(a domain.Action) string {
	switch a {
	case domain.ActionCreate:
		return "thêm mới"
	case domain.ActionUpdate:
		return "cập nhật"
	case domain.ActionDelete:
		return "xóa"
	default:
		return "thay đổi"
	}
}

const timeLayout = "15:04 02/01/2006"

var htmlBody = template.Must(template.New("digest").Parse(`<html>
<body style="font-family: Arial, sans-serif; color: #333;">
  <h3>{{.Headline}}</h3>
  {{if .Actor}}<p>Người thực hiện: <strong>{{.Actor}}</strong></p>{{end}}
  <p>Thời gian: {{.Timestamp}}</p>
  {{if .Details}}
  <table cellpadding="4" cellspacing="0" border="0">
    {{range .Details}}<tr><td><strong>{{.Label}}</strong></td><td>{{.Value}}</td></tr>
    {{end}}
  </table>
  {{end}}
  <p style="color: #888; font-size: 12px;">Email này được gửi tự động từ hệ thống quản lý chi phí.</p>
</body>
</html>`))

type digestData struct {
	Headline  string
	Actor     string
	Timestamp string
	Details   []queue.Detail
}

// Subject builds the digest subject, e.g. "Thông báo: chi phí đã được xóa".
// The entity name is kept verbatim so clients can match on it.
func Subject(job queue.ActionJob) string {
	return fmt.Sprintf("Thông báo: %s đã được %s", strings.TrimSpace(job.EntityName), ActionLabel(job.Action))
}

// Render produces the HTML and plain-text bodies for one action job.
func Render(job queue.ActionJob) (string, string, error) {
	when := job.QueuedAt
	if when.IsZero() {
		when = time.Now()
	}

	data := digestData{
		Headline:  Subject(job),
		Actor:     job.ActorEmail,
		Timestamp: when.Format(timeLayout),
		Details:   job.Details,
	}

	var buf bytes.Buffer
	if err := htmlBody.Execute(&buf, data); err != nil {
		return "", "", fmt.Errorf("failed to render email body: %w", err)
	}

	return buf.String(), renderText(data), nil
}

func renderText(data digestData) string {
	var b strings.Builder
	b.WriteString(data.Headline)
	b.WriteString("\n")
	if data.Actor != "" {
		fmt.Fprintf(&b, "Người thực hiện: %s\n", data.Actor)
	}
	fmt.Fprintf(&b, "Thời gian: %s\n", data.Timestamp)
	for _, d := range data.Details {
		fmt.Fprintf(&b, "%s: %s\n", d.Label, d.Value)
	}
	return b.String()
}
