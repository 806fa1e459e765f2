package export

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/de-tools/scorecard/pkg/models/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTruncate(t *testing.T) {
	assert.Equal(t, "Forms", truncate("Forms", 5))
	assert.Equal(t, "Form~", truncate("Forms!", 5))

	cut := truncate("Replacement – existing clients", 13)
	assert.True(t, utf8.ValidString(cut))
	assert.Equal(t, "Replacement ~", cut)

	cut = truncate("Replacement – existing clients", 14)
	assert.True(t, utf8.ValidString(cut))
	assert.Equal(t, "Replacement –~", cut)
}

func TestReporter_HandleRun(t *testing.T) {
	var out bytes.Buffer
	reporter := NewReporter(&out)

	v := 7.0
	summary := domain.RunSummary{
		RunID: "run-1",
		Results: []domain.KpiResult{
			{KpiNumber: "16", FieldName: "Procesos de reemplazo – clientes existentes y nuevos del trimestre", Status: domain.KpiStatusOK, Value: &v},
			{KpiNumber: "05", FieldName: "Churn", Status: domain.KpiStatusFailed, Err: errors.New("connection refused")},
		},
	}
	require.NoError(t, reporter.HandleRun(summary))

	text := out.String()
	assert.True(t, utf8.ValidString(text))
	assert.Contains(t, text, "FAIL: 1 succeeded, 1 failed")
	assert.Contains(t, text, "connection refused")
	for _, line := range strings.Split(text, "\n") {
		if strings.HasPrefix(line, "| 16") {
			assert.Contains(t, line, "~")
		}
	}
}
