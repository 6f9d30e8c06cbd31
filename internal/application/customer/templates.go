package customer

import (
	"bytes"
	"fmt"
	"text/template"

	"github.com/shopkit/backend/internal/domain/customer"
)

type mailTemplate struct {
	subject string
	body    string
}

var defaultTemplates = map[customer.Template]mailTemplate{
	customer.TemplateRegistrationToken: {
		subject: `Confirm the registration of {{.ShopName}}`,
		body: `Hello,

your shop "{{.ShopName}}" is almost ready. Confirm the registration with this token:

    {{.Token}}

The registration expires after 10 days.
`,
	},
	customer.TemplateShopCreated: {
		subject: `{{.ShopName}} is open`,
		body: `Hello,

your shop "{{.ShopName}}" and its warehouse are active. You can add products now.
`,
	},
	customer.TemplateUserDataChangeToken: {
		subject: `Confirm your new contact data`,
		body: `Hello,

confirm the change of your contact data with this token:

    {{.Token}}

The request expires after one day. Ignore this email if you did not ask for a change.
`,
	},
	customer.TemplateUserDataChanged: {
		subject: `Your contact data was changed`,
		body: `Hello,

your contact data was updated. From now on we will write to {{.Email}}.
`,
	},
	customer.TemplatePaymentRequest: {
		subject: `You won "{{.Title}}"`,
		body: `Congratulations,

you won "{{.Title}}". Please pay {{.Amount}} {{.Currency}} within 7 days.

Payment reference: {{.PaymentID}}
`,
	},
	customer.TemplatePaymentReceived: {
		subject: `Payment received for "{{.Title}}"`,
		body: `Hello,

we received your payment {{.PaymentID}}. "{{.Title}}" is on its way.
`,
	},
}

type compiledTemplate struct {
	subject *template.Template
	body    *template.Template
}

// Renderer renders notification subjects and bodies with text/template
type Renderer struct {
	templates map[customer.Template]compiledTemplate
}

// NewRenderer parses the built-in mail templates
func NewRenderer() (*Renderer, error) {
	r := &Renderer{templates: make(map[customer.Template]compiledTemplate, len(defaultTemplates))}
	for name, tpl := range defaultTemplates {
		subject, err := template.New(string(name) + ".subject").Option("missingkey=error").Parse(tpl.subject)
		if err != nil {
			return nil, fmt.Errorf("parse subject of %s: %w", name, err)
		}
		body, err := template.New(string(name) + ".body").Option("missingkey=error").Parse(tpl.body)
		if err != nil {
			return nil, fmt.Errorf("parse body of %s: %w", name, err)
		}
		r.templates[name] = compiledTemplate{subject: subject, body: body}
	}
	return r, nil
}

// Render executes the named template with data
func (r *Renderer) Render(name customer.Template, data map[string]any) (subject, body string, err error) {
	tpl, ok := r.templates[name]
	if !ok {
		return "", "", fmt.Errorf("unknown mail template %q", name)
	}
	var buf bytes.Buffer
	if err := tpl.subject.Execute(&buf, data); err != nil {
		return "", "", fmt.Errorf("render subject of %s: %w", name, err)
	}
	subject = buf.String()
	buf.Reset()
	if err := tpl.body.Execute(&buf, data); err != nil {
		return "", "", fmt.Errorf("render body of %s: %w", name, err)
	}
	return subject, buf.String(), nil
}
