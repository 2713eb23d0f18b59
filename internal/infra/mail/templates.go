package mail

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	"strings"
	texttemplate "text/template"
)

// Template names rendered by Renderer.
const (
	TemplateVerification    = "verification"
	TemplateWelcome         = "welcome"
	TemplatePasswordReset   = "password_reset"
	TemplatePasswordChanged = "password_changed"
	TemplateGrantApproved   = "grant_approved"
	TemplateGrantDenied     = "grant_denied"
	TemplateContactAdmin    = "contact_admin"
	TemplateContactAck      = "contact_ack"
)

// TemplateData is the value every template is executed against.
type TemplateData struct {
	SiteName  string
	PublicURL string
	Name      string
	Email     string
	Link      string
	Resource  string
	Message   string
	ExpiresIn string
	Subject   string
	Body      string
}

type templateSource struct {
	subject string
	text    string
	html    string
}

var templateSources = map[string]templateSource{
	TemplateVerification: {
		subject: `Verify your {{.SiteName}} email`,
		text: `Hi {{.Name}},

Confirm your email address by opening the link below. It expires in {{.ExpiresIn}}.

{{.Link}}

If you did not create an account you can ignore this message.
`,
		html: `<p>Hi {{.Name}},</p>
<p>Confirm your email address by opening the link below. It expires in {{.ExpiresIn}}.</p>
<p><a href="{{.Link}}">Verify email</a></p>
<p>If you did not create an account you can ignore this message.</p>`,
	},
	TemplateWelcome: {
		subject: `Welcome to {{.SiteName}}`,
		text: `Hi {{.Name}},

Your account is ready. Sign in at {{.PublicURL}} to request access to research areas.
`,
		html: `<p>Hi {{.Name}},</p>
<p>Your account is ready. <a href="{{.PublicURL}}">Sign in</a> to request access to research areas.</p>`,
	},
	TemplatePasswordReset: {
		subject: `Reset your {{.SiteName}} password`,
		text: `Hi {{.Name}},

Someone asked to reset the password for this account. Open the link below within {{.ExpiresIn}} to choose a new one.

{{.Link}}

If this was not you, no action is needed.
`,
		html: `<p>Hi {{.Name}},</p>
<p>Someone asked to reset the password for this account. Open the link below within {{.ExpiresIn}} to choose a new one.</p>
<p><a href="{{.Link}}">Reset password</a></p>
<p>If this was not you, no action is needed.</p>`,
	},
	TemplatePasswordChanged: {
		subject: `Your {{.SiteName}} password was changed`,
		text: `Hi {{.Name}},

The password for your account was just changed and all other sessions were signed out.
If you did not do this, reset your password at {{.PublicURL}} immediately.
`,
		html: `<p>Hi {{.Name}},</p>
<p>The password for your account was just changed and all other sessions were signed out.</p>
<p>If you did not do this, <a href="{{.PublicURL}}">reset your password</a> immediately.</p>`,
	},
	TemplateGrantApproved: {
		subject: `Access to {{.Resource}} approved`,
		text: `Hi {{.Name}},

Your request for {{.Resource}} was approved.{{if .Message}}

Note from the reviewer: {{.Message}}{{end}}
`,
		html: `<p>Hi {{.Name}},</p>
<p>Your request for <strong>{{.Resource}}</strong> was approved.</p>
{{if .Message}}<p>Note from the reviewer: {{.Message}}</p>{{end}}`,
	},
	TemplateGrantDenied: {
		subject: `Access to {{.Resource}} denied`,
		text: `Hi {{.Name}},

Your request for {{.Resource}} was not approved.{{if .Message}}

Reason: {{.Message}}{{end}}
`,
		html: `<p>Hi {{.Name}},</p>
<p>Your request for <strong>{{.Resource}}</strong> was not approved.</p>
{{if .Message}}<p>Reason: {{.Message}}</p>{{end}}`,
	},
	TemplateContactAdmin: {
		subject: `[contact] {{.Subject}}`,
		text: `From: {{.Name}} <{{.Email}}>
Subject: {{.Subject}}

{{.Body}}
`,
		html: `<p>From: {{.Name}} &lt;{{.Email}}&gt;</p>
<p>Subject: {{.Subject}}</p>
<pre>{{.Body}}</pre>`,
	},
	TemplateContactAck: {
		subject: `We received your message`,
		text: `Hi {{.Name}},

Thanks for reaching out about "{{.Subject}}". We will reply to {{.Email}} soon.
`,
		html: `<p>Hi {{.Name}},</p>
<p>Thanks for reaching out about &quot;{{.Subject}}&quot;. We will reply to {{.Email}} soon.</p>`,
	},
}

type compiledTemplate struct {
	subject *texttemplate.Template
	text    *texttemplate.Template
	html    *htmltemplate.Template
}

// Renderer turns a template name and data into a Message.
type Renderer struct {
	templates map[string]compiledTemplate
}

// NewRenderer parses every built-in template.
func NewRenderer() (*Renderer, error) {
	compiled := make(map[string]compiledTemplate, len(templateSources))
	for name, src := range templateSources {
		subject, err := texttemplate.New(name + ".subject").Option("missingkey=error").Parse(src.subject)
		if err != nil {
			return nil, fmt.Errorf("parse %s subject: %w", name, err)
		}
		text, err := texttemplate.New(name + ".text").Option("missingkey=error").Parse(src.text)
		if err != nil {
			return nil, fmt.Errorf("parse %s text: %w", name, err)
		}
		html, err := htmltemplate.New(name + ".html").Parse(src.html)
		if err != nil {
			return nil, fmt.Errorf("parse %s html: %w", name, err)
		}
		compiled[name] = compiledTemplate{subject: subject, text: text, html: html}
	}
	return &Renderer{templates: compiled}, nil
}

// Render executes the named template for one recipient.
func (r *Renderer) Render(name, to string, data TemplateData) (Message, error) {
	tpl, ok := r.templates[name]
	if !ok {
		return Message{}, fmt.Errorf("mail: unknown template %q", name)
	}

	var subject, text, html bytes.Buffer
	if err := tpl.subject.Execute(&subject, data); err != nil {
		return Message{}, fmt.Errorf("render %s subject: %w", name, err)
	}
	if err := tpl.text.Execute(&text, data); err != nil {
		return Message{}, fmt.Errorf("render %s text: %w", name, err)
	}
	if err := tpl.html.Execute(&html, data); err != nil {
		return Message{}, fmt.Errorf("render %s html: %w", name, err)
	}

	return Message{
		ID:       NewMessageID(),
		Template: name,
		To:       to,
		Subject:  strings.TrimSpace(subject.String()),
		Text:     text.String(),
		HTML:     html.String(),
	}, nil
}
