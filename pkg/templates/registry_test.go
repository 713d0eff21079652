package templates

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"advisor/pkg/errors"
)

var stageIDs = []string{
	"profile", "market_research", "quantitative_vetting",
	"qualitative_risk_vetting", "portfolio_allocation", "report_generation",
}

func writeTemplate(t *testing.T, base, rel, content string) {
	t.Helper()
	path := filepath.Join(base, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestNewFromFS_LoadAndRender(t *testing.T) {
	reg, err := NewFromFS(fstest.MapFS{
		"stages/profile/task.tmpl": {Data: []byte("Goal: {{.Goal}}")},
		"README.md":                {Data: []byte("not a template")},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"stages/profile/task"}, reg.List())

	out, err := reg.Render("stages/profile/task", map[string]string{"Goal": "grow"})
	require.NoError(t, err)
	assert.Equal(t, "Goal: grow", out)

	_, err = reg.Lookup("stages/profile/system")
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestNewRegistry_OverridesEmbedded(t *testing.T) {
	base := t.TempDir()
	writeTemplate(t, base, "stages/profile/task.tmpl", "Custom intake for {{.Goal}}")
	writeTemplate(t, base, "extra/note.tmpl", "note")

	reg, err := NewRegistry(base)
	require.NoError(t, err)

	assert.Equal(t, []string{"extra/note", "stages/profile/task"}, reg.Overrides())

	out, err := reg.Render("stages/profile/task", map[string]string{"Goal": "retirement"})
	require.NoError(t, err)
	assert.Equal(t, "Custom intake for retirement", out)

	sys, err := reg.Lookup("stages/profile/system")
	require.NoError(t, err)
	assert.Equal(t, OriginEmbedded, sys.Origin)
}

func TestNewRegistry_BadDir(t *testing.T) {
	_, err := NewRegistry(filepath.Join(t.TempDir(), "missing"))
	assert.True(t, errors.Is(err, errors.ErrConfig))

	file := filepath.Join(t.TempDir(), "prompts.tmpl")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))
	_, err = NewRegistry(file)
	assert.True(t, errors.Is(err, errors.ErrConfig))
}

func TestRegistry_AllowedFields(t *testing.T) {
	t.Run("rejects unknown placeholder at load time", func(t *testing.T) {
		_, err := NewFromFS(fstest.MapFS{
			"a.tmpl": {Data: []byte("{{.Goal}} {{.Budget}}")},
		}, WithAllowedFields("Goal", "Context"))
		require.Error(t, err)
		assert.True(t, errors.Is(err, errors.ErrConfig))
		assert.Contains(t, err.Error(), ".Budget")
	})

	t.Run("accepts nested and conditional references", func(t *testing.T) {
		reg, err := NewFromFS(fstest.MapFS{
			"a.tmpl": {Data: []byte("{{if .Profile}}{{.Profile.ClientBudget}}{{end}}{{with .Profile}}{{.Unchecked}}{{end}}{{range .Tools}}{{.}}{{end}}{{$.Goal}}")},
		}, WithAllowedFields("Goal", "Profile", "Tools"))
		require.NoError(t, err)

		tmpl, err := reg.Lookup("a")
		require.NoError(t, err)
		assert.Equal(t, []string{"Goal", "Profile", "Tools"}, tmpl.Fields)
	})

	t.Run("rejects parse errors", func(t *testing.T) {
		_, err := NewFromFS(fstest.MapFS{"broken.tmpl": {Data: []byte("{{.Goal")}})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "parse template broken")
	})

	t.Run("override is checked like the embedded set", func(t *testing.T) {
		base := t.TempDir()
		writeTemplate(t, base, "stages/profile/task.tmpl", "{{.Secret}}")

		_, err := NewRegistry(base, WithAllowedFields("Goal"))
		assert.True(t, errors.Is(err, errors.ErrConfig))
	})
}

func TestTemplate_MissingKeyIsError(t *testing.T) {
	reg, err := NewFromFS(fstest.MapFS{"a.tmpl": {Data: []byte("{{.Goal}} {{.Context}}")}})
	require.NoError(t, err)

	_, err = reg.Render("a", map[string]string{"Goal": "x"})
	require.Error(t, err)
}

func TestRegistry_Require(t *testing.T) {
	reg, err := NewFromFS(fstest.MapFS{"stages/profile/system.tmpl": {Data: []byte("sys")}})
	require.NoError(t, err)

	assert.NoError(t, reg.Require("stages/profile/system"))

	err = reg.Require("stages/profile/system", "stages/profile/task", "stages/report/task")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrNotFound))
	assert.Contains(t, err.Error(), "stages/profile/task, stages/report/task")
}

func TestEmbeddedStageTemplates(t *testing.T) {
	reg, err := NewEmbedded()
	require.NoError(t, err)
	assert.Empty(t, reg.Overrides())

	for _, stage := range stageIDs {
		for _, kind := range []string{"system", "task"} {
			id := "stages/" + stage + "/" + kind
			tmpl, err := reg.Lookup(id)
			require.NoError(t, err, id)
			assert.NotEmpty(t, strings.TrimSpace(tmpl.Text), id)
		}
	}

	report, err := reg.Lookup("stages/report_generation/system")
	require.NoError(t, err)
	for _, heading := range []string{
		"## Executive Summary",
		"## Strategic Rationale & Methodology",
		"## Portfolio Recommendation",
		"## Security Justifications",
		"## Risk Disclosure & Monitoring",
		"## Conclusion",
	} {
		assert.Contains(t, report.Text, heading)
	}
}
