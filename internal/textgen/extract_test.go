package textgen

import (
	"testing"

	"github.com/adityaraj-09/faff-assign/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestExtractEntities_PhoneAndURL(t *testing.T) {
	got := ExtractEntities("call me at 415-555-0100 or see https://x.co")

	assert.ElementsMatch(t, []models.Entity{
		{Type: models.EntityURL, Value: "https://x.co"},
		{Type: models.EntityPhone, Value: "415-555-0100"},
	}, got)
}

func TestExtractEntities_Dedup(t *testing.T) {
	got := ExtractEntities(
		"ping ops@example.com or (415) 555-0100.",
		"again: OPS@example.com, https://status.example.com/incident/42.",
		"status at https://status.example.com/incident/42",
	)

	assert.Equal(t, []models.Entity{
		{Type: models.EntityEmail, Value: "ops@example.com"},
		{Type: models.EntityPhone, Value: "(415) 555-0100"},
		{Type: models.EntityURL, Value: "https://status.example.com/incident/42"},
	}, got)
}

func TestExtractEntities_NoFalsePhoneInsideURL(t *testing.T) {
	got := ExtractEntities("https://example.com/415-555-0100")

	assert.Equal(t, []models.Entity{
		{Type: models.EntityURL, Value: "https://example.com/415-555-0100"},
	}, got)
}

func TestExtractEntities_Empty(t *testing.T) {
	got := ExtractEntities("nothing to see here", "")
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestMergeEntities(t *testing.T) {
	a := []models.Entity{{Type: "url", Value: "https://x.co"}}
	b := []models.Entity{{Type: "URL", Value: " https://x.co "}, {Type: "phone", Value: "415-555-0100"}, {Type: "email", Value: ""}}

	assert.Equal(t, []models.Entity{
		{Type: "url", Value: "https://x.co"},
		{Type: "phone", Value: "415-555-0100"},
	}, MergeEntities(a, b))
}
