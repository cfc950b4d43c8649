package metrics

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360studio/verifybib/source"
	"github.com/c360studio/verifybib/validation"
)

func sampleRun() (*validation.Store, *source.Document) {
	s := validation.NewStore()
	s.AddNotice("All blocks parsed successfully.")
	s.AddCritical("a", validation.RuleTitleMissing, "missing")
	s.AddCritical("b", validation.RuleTitleMissing, "missing")
	s.AddWarning("a", validation.RuleTypeField, "type")

	doc := &source.Document{
		Entries:      []*source.Entry{{ID: "a"}, {ID: "b"}, {ID: "c"}},
		FailedBlocks: []source.FailedBlock{{Raw: "@x"}},
	}
	return s, doc
}

func TestCollector_Record(t *testing.T) {
	c := NewCollector()
	s, doc := sampleRun()

	c.Record("refs.bib", s, doc)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.findings.WithLabelValues("critical", "title-missing")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.findings.WithLabelValues("warning", "type-field")))
	assert.Equal(t, 3.0, testutil.ToFloat64(c.entries.WithLabelValues("refs.bib")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.failedBlocks.WithLabelValues("refs.bib")))
	assert.Equal(t, 3.0, testutil.ToFloat64(c.errorCount.WithLabelValues("refs.bib")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.runs.WithLabelValues("refs.bib")))
}

func TestCollector_RecordWithoutDocument(t *testing.T) {
	c := NewCollector()
	s := validation.NewStore()
	s.AddGeneral(validation.RuleInput, "missing.bib is not a file.")

	c.Record("missing.bib", s, nil)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.findings.WithLabelValues("general", "input")))
	assert.Equal(t, 0.0, testutil.ToFloat64(c.entries.WithLabelValues("missing.bib")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.errorCount.WithLabelValues("missing.bib")))
}

func TestCollector_Gather(t *testing.T) {
	c := NewCollector()
	s, doc := sampleRun()
	c.Record("refs.bib", s, doc)
	c.Record("refs.bib", s, doc)

	families, err := c.Registry().Gather()
	require.NoError(t, err)

	byName := make(map[string]*dto.MetricFamily)
	for _, mf := range families {
		byName[mf.GetName()] = mf
	}

	runs, ok := byName["verifybib_runs_total"]
	require.True(t, ok)
	require.Len(t, runs.GetMetric(), 1)
	assert.Equal(t, 2.0, runs.GetMetric()[0].GetCounter().GetValue())

	gauge, ok := byName["verifybib_entries"]
	require.True(t, ok)
	assert.Equal(t, 3.0, gauge.GetMetric()[0].GetGauge().GetValue(), "gauge holds the last run")
}

func TestCollector_WriteTextfile(t *testing.T) {
	c := NewCollector()
	s, doc := sampleRun()
	c.Record("refs.bib", s, doc)

	path := filepath.Join(t.TempDir(), "textfile", "verifybib.prom")
	require.NoError(t, c.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `verifybib_findings_total{rule="title-missing",severity="critical"} 2`)
	assert.Contains(t, string(data), `verifybib_errors{file="refs.bib"} 3`)
}
