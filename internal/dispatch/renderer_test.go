package dispatch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dripline/internal/audience"
	"dripline/internal/campaign"
)

func TestRenderer_SubstitutesMemberFields(t *testing.T) {
	c := &campaign.Campaign{
		SubjectTemplate: "{{.name}}, your order shipped",
		BodyTemplate:    "Hi {{.name}}, order {{.order_id}} is on its way.",
	}
	member := audience.Member{"name": "Alice", "order_id": "ord-9"}

	subject, body, err := NewRenderer().Render(c, member)
	require.NoError(t, err)
	assert.Equal(t, "Alice, your order shipped", subject)
	assert.Equal(t, "Hi Alice, order ord-9 is on its way.", body)
}

func TestRenderer_MissingFieldRendersEmpty(t *testing.T) {
	c := &campaign.Campaign{
		SubjectTemplate: "Hello {{.nickname}}",
		BodyTemplate:    "plain",
	}

	subject, body, err := NewRenderer().Render(c, audience.Member{"name": "Alice"})
	require.NoError(t, err)
	assert.Equal(t, "Hello ", subject)
	assert.Equal(t, "plain", body)
}

func TestRenderer_LiteralTemplates(t *testing.T) {
	c := &campaign.Campaign{
		SubjectTemplate: "Weekly digest",
		BodyTemplate:    "Nothing templated here.",
	}

	subject, body, err := NewRenderer().Render(c, audience.Member{})
	require.NoError(t, err)
	assert.Equal(t, "Weekly digest", subject)
	assert.Equal(t, "Nothing templated here.", body)
}

func TestRenderer_BadTemplateFails(t *testing.T) {
	c := &campaign.Campaign{
		SubjectTemplate: "{{.name",
		BodyTemplate:    "ok",
	}

	_, _, err := NewRenderer().Render(c, audience.Member{})
	require.Error(t, err)
}
