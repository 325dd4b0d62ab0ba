package notification

import (
	"bytes"
	"html/template"
	"time"
	_ "time/tzdata" // 容器内可能没有系统时区库
)

const (
	SubjectScheduled = "Your interview is scheduled"
	SubjectReminder  = "Interview reminder (10 minutes)"
)

// InterviewMail 是确认邮件与提醒邮件共用的模板数据
type InterviewMail struct {
	ScheduledAt     time.Time
	Timezone        string
	DurationSeconds int
	JoinURL         string
	AutoStart       bool
}

var (
	scheduledTmpl = template.Must(template.New("scheduled").Parse(`<div style="font-family:sans-serif">
<h2>Your interview is scheduled</h2>
<p>When: <strong>{{.When}}</strong> ({{.Zone}})</p>
{{if .Minutes}}<p>Duration: {{.Minutes}} minutes</p>{{end}}
<p><a href="{{.JoinURL}}">Join your interview</a></p>
{{if .AutoStart}}<p>The interview will start automatically when you open the link at the scheduled time.</p>{{end}}
</div>`))

	reminderTmpl = template.Must(template.New("reminder").Parse(`<div style="font-family:sans-serif">
<h2>Your interview starts in 10 minutes</h2>
<p>When: <strong>{{.When}}</strong> ({{.Zone}})</p>
{{if .Minutes}}<p>Duration: {{.Minutes}} minutes</p>{{end}}
<p><a href="{{.JoinURL}}">Join your interview</a></p>
{{if .AutoStart}}<p>Keep the tab open and the interview will start on its own.</p>{{end}}
</div>`))
)

func RenderScheduled(m InterviewMail) (string, error) { return render(scheduledTmpl, m) }

func RenderReminder(m InterviewMail) (string, error) { return render(reminderTmpl, m) }

func render(t *template.Template, m InterviewMail) (string, error) {
	loc := time.UTC
	zone := "UTC"
	if m.Timezone != "" {
		if l, err := time.LoadLocation(m.Timezone); err == nil {
			loc, zone = l, m.Timezone
		}
	}
	var buf bytes.Buffer
	err := t.Execute(&buf, map[string]any{
		"When":      m.ScheduledAt.In(loc).Format("Mon, Jan 2 2006 at 3:04 PM"),
		"Zone":      zone,
		"Minutes":   m.DurationSeconds / 60,
		"JoinURL":   m.JoinURL,
		"AutoStart": m.AutoStart,
	})
	return buf.String(), err
}
