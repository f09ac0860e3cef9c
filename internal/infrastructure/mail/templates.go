package mail

import (
	"bytes"
	"fmt"
	"html/template"
)

const layout = `<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto;">
{{template "content" .}}
<p>Best regards,<br>HR Team</p>
</div>`

const invitationContent = `{{define "content"}}<h2>Welcome to {{.Company}}!</h2>
<p>Hello {{.Name}}, you have been invited to join our team. Please use the following credentials to log in and complete your onboarding:</p>
<div style="background-color: #f5f5f5; padding: 20px; border-radius: 5px; margin: 20px 0;">
<p><strong>Email:</strong> {{.Email}}</p>
<p><strong>Temporary Password:</strong> {{.TempPassword}}</p>
</div>
<p>Please log in at: <a href="{{.LoginURL}}">Login Here</a></p>
<p>This invitation expires on {{.ExpiresAt}}.</p>
<p><strong>Important:</strong> You will be required to change your password on first login and complete your profile information.</p>
<p>If you have any questions, please contact HR.</p>{{end}}`

const approvedContent = `{{define "content"}}<h2>Congratulations!</h2>
<p>Your onboarding has been approved and your account is now fully active.</p>
<p>You can now access all company systems and resources.</p>
{{if .Notes}}<p><strong>Notes:</strong> {{.Notes}}</p>{{end}}{{end}}`

const rejectedContent = `{{define "content"}}<h2>Additional Information Required</h2>
<p>Your onboarding submission needs some additional information or corrections.</p>
{{if .Reason}}<p><strong>Reason:</strong> {{.Reason}}</p>{{end}}
<p>Please log in to your account and review the feedback provided.</p>{{end}}`

type templates struct {
	invitation *template.Template
	approved   *template.Template
	rejected   *template.Template
}

func parseTemplates() (*templates, error) {
	parse := func(name, content string) (*template.Template, error) {
		t, err := template.New(name).Parse(layout)
		if err != nil {
			return nil, err
		}
		return t.Parse(content)
	}

	var (
		t   templates
		err error
	)
	if t.invitation, err = parse("invitation", invitationContent); err != nil {
		return nil, fmt.Errorf("parse invitation template: %w", err)
	}
	if t.approved, err = parse("approved", approvedContent); err != nil {
		return nil, fmt.Errorf("parse approval template: %w", err)
	}
	if t.rejected, err = parse("rejected", rejectedContent); err != nil {
		return nil, fmt.Errorf("parse rejection template: %w", err)
	}
	return &t, nil
}

func render(t *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
