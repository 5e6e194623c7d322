package email

import (
	"bytes"
	"fmt"
	"html/template"
	texttemplate "text/template"
)

type Template string

const (
	TemplateWelcome               Template = "welcome"
	TemplatePasswordReset         Template = "password_reset"
	TemplateSubscriptionConfirmed Template = "subscription_confirmed"
	TemplateSubscriptionCancelled Template = "subscription_cancelled"
	TemplatePaymentFailed         Template = "payment_failed"
	TemplateDailySummary          Template = "daily_summary"
	TemplateWeeklyReport          Template = "weekly_report"
)

type templateDef struct {
	subject *texttemplate.Template
	body    *template.Template
}

const layout = `<!doctype html>
<html><body style="font-family:Helvetica,Arial,sans-serif;color:#1f2937;max-width:560px;margin:0 auto;padding:24px">
{{template "content" .}}
<p style="color:#6b7280;font-size:12px;margin-top:32px">You are receiving this because you have an account with your coach.</p>
</body></html>`

var sources = map[Template][2]string{
	TemplateWelcome: {
		`Welcome aboard, {{.Name}}!`,
		`<h1>Welcome, {{.Name}}!</h1>
<p>Your coach is ready. Set your first goal and we will break it into steps together.</p>
<p><a href="{{.DashboardURL}}">Open your dashboard</a></p>`,
	},
	TemplatePasswordReset: {
		`Reset your password`,
		`<p>Hi {{.Name}},</p>
<p>Use the link below to choose a new password. It expires in {{.ExpiresIn}}.</p>
<p><a href="{{.ResetURL}}">Reset password</a></p>
<p>If you did not ask for this, you can ignore this email.</p>`,
	},
	TemplateSubscriptionConfirmed: {
		`Your {{.Plan}} plan is active`,
		`<p>Hi {{.Name}},</p>
<p>Thanks for subscribing. Your <strong>{{.Plan}}</strong> plan is now active.</p>
<p><a href="{{.DashboardURL}}">Start a coaching session</a></p>`,
	},
	TemplateSubscriptionCancelled: {
		`Your subscription has ended`,
		`<p>Hi {{.Name}},</p>
<p>Your subscription has been cancelled. Your goals and history stay available on the dashboard.</p>
<p><a href="{{.DashboardURL}}">Resubscribe any time</a></p>`,
	},
	TemplatePaymentFailed: {
		`Payment failed for your subscription`,
		`<p>Hi {{.Name}},</p>
<p>We could not process your latest payment{{if .Amount}} of {{.Amount}}{{end}}. Please update your payment method to keep coaching active.</p>
{{if .InvoiceURL}}<p><a href="{{.InvoiceURL}}">View invoice</a></p>{{end}}`,
	},
	TemplateDailySummary: {
		`Your day: {{.Completed}}/{{.Total}} tasks done`,
		`<p>Hi {{.Name}},</p>
<p>Summary for {{.Date}}:</p>
<ul>
<li>Tasks completed: {{.Completed}}/{{.Total}} ({{printf "%.0f" .Percentage}}%)</li>
<li>Coaching sessions: {{.Sessions}}</li>
</ul>
{{if .Open}}<p>Still open:</p><ul>{{range .Open}}<li>{{.}}</li>{{end}}</ul>{{end}}
<p>Tomorrow is a new day!</p>`,
	},
	TemplateWeeklyReport: {
		`Week {{.Week}}: {{printf "%.0f" .CompletionPct}}% of tasks done`,
		`<p>Hi {{.Name}},</p>
<p>Your week {{.StartDate}} - {{.EndDate}}:</p>
<ul>
<li>Tasks: {{.Done}}/{{.Total}}</li>
<li>Sessions: {{.Sessions}}</li>
</ul>
{{if .Insights}}<p>Insights:</p><ul>{{range .Insights}}<li>{{.}}</li>{{end}}</ul>{{end}}`,
	},
}

var templates = mustParse()

func mustParse() map[Template]templateDef {
	out := make(map[Template]templateDef, len(sources))
	for name, src := range sources {
		body := template.Must(template.New("layout").Parse(layout))
		template.Must(body.New("content").Parse(src[1]))
		out[name] = templateDef{
			subject: texttemplate.Must(texttemplate.New(string(name)).Parse(src[0])),
			body:    body,
		}
	}
	return out
}

// Render builds a message for the named template.
func Render(name Template, to string, data any) (Message, error) {
	def, ok := templates[name]
	if !ok {
		return Message{}, fmt.Errorf("unknown email template %q", name)
	}

	var subject, body bytes.Buffer
	if err := def.subject.Execute(&subject, data); err != nil {
		return Message{}, fmt.Errorf("render %s subject: %w", name, err)
	}
	if err := def.body.ExecuteTemplate(&body, "layout", data); err != nil {
		return Message{}, fmt.Errorf("render %s body: %w", name, err)
	}

	return Message{To: to, Subject: subject.String(), HTML: body.String()}, nil
}

type WelcomeData struct {
	Name         string
	DashboardURL string
}

type PasswordResetData struct {
	Name      string
	ResetURL  string
	ExpiresIn string
}

type SubscriptionData struct {
	Name         string
	Plan         string
	DashboardURL string
}

type PaymentFailedData struct {
	Name       string
	Amount     string
	InvoiceURL string
}

type DailySummaryData struct {
	Name       string
	Date       string
	Completed  int
	Total      int
	Percentage float64
	Sessions   int
	Open       []string
}

type WeeklyReportData struct {
	Name          string
	Week          int
	StartDate     string
	EndDate       string
	Done          int
	Total         int
	Sessions      int
	CompletionPct float64
	Insights      []string
}
