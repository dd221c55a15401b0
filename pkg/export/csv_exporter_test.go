package export

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCSVRenderWritesHeadersAndRows(t *testing.T) {
	data := Dataset{
		Headers: []string{"metric", "value"},
		Rows: []map[string]string{
			{"metric": "students", "value": "12"},
			{"metric": "active_subscriptions"},
		},
	}

	payload, err := NewCSVExporter().Render(data)
	require.NoError(t, err)
	assert.Equal(t, "metric,value\nstudents,12\nactive_subscriptions,\n", string(payload))
}

func TestCSVRenderRequiresHeaders(t *testing.T) {
	_, err := NewCSVExporter().Render(Dataset{})
	require.Error(t, err)
}
