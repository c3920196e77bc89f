package notify

import (
	"bytes"
	"text/template"
)

const verifyEmailText = `Dear {{.Name}},

Welcome to Blog! We're very excited to have you on board.

To get started, please click the link below to verify your email:

{{.Link}}

The link expires in {{.Window}}.

Sincerely
`

const resetPasswordText = `Hello,

Click on the link below to reset your password:

{{.Link}}

The link expires in {{.Window}}. If you did not ask for a password reset,
please ignore this email.

Sincerely
`

var (
	verifyEmailTemplate   = template.Must(template.New("verify_email").Parse(verifyEmailText))
	resetPasswordTemplate = template.Must(template.New("reset_password").Parse(resetPasswordText))
)

type mailData struct {
	Name   string
	Link   string
	Window string
}

func templateString(t *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
