package dispatch

import (
	"fmt"
	"strings"
	"text/template"

	"dripline/internal/audience"
	"dripline/internal/campaign"
)

// Renderer fills campaign templates with member fields. Templates use
// standard Go template syntax over the member document, for example
// "Hi {{.name}}, your cart is waiting".
type Renderer struct{}

func NewRenderer() *Renderer {
	return &Renderer{}
}

func (r *Renderer) Render(c *campaign.Campaign, member audience.Member) (subject, body string, err error) {
	subject, err = r.renderOne("subject", c.SubjectTemplate, member)
	if err != nil {
		return "", "", err
	}

	body, err = r.renderOne("body", c.BodyTemplate, member)
	if err != nil {
		return "", "", err
	}

	return subject, body, nil
}

func (r *Renderer) renderOne(name, text string, member audience.Member) (string, error) {
	tmpl, err := template.New(name).Option("missingkey=zero").Parse(text)
	if err != nil {
		return "", fmt.Errorf("failed to parse %s template: %w", name, err)
	}

	var buf strings.Builder
	if err := tmpl.Execute(&buf, map[string]interface{}(member)); err != nil {
		return "", fmt.Errorf("failed to render %s template: %w", name, err)
	}

	// missingkey=zero prints "<no value>" for absent map keys; drop it
	// so sparse member documents render cleanly.
	return strings.ReplaceAll(buf.String(), "<no value>", ""), nil
}
