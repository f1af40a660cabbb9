package definition

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
name: research
description: research and summarize a topic
start: gather
maxTransitions: 10
states:
  - name: gather
    description: collect background material
    entry:
      type: retrieve
      query: "background on {{.topic}}"
      includeResults: true
    transitions:
      - to: summarize
        description: enough material collected
      - to: gather
        description: need more material
  - name: summarize
    entry:
      type: prompt
      outputKey: summary
      messages:
        - role: user
          content: "Summarize what we know."
    transitions:
      - to: done
  - name: done
    end: true
`

func TestParse(t *testing.T) {
	def, err := Parse([]byte(sampleYAML))
	require.NoError(t, err)
	assert.Equal(t, "research", def.Name)
	assert.Equal(t, "gather", def.Start)
	assert.Equal(t, 10, def.MaxTransitions)
	require.Len(t, def.States, 3)
	assert.Len(t, def.States[0].Transitions, 2)
	assert.True(t, def.States[2].End)
}

func TestParseRejectsIncompleteDefinitions(t *testing.T) {
	cases := map[string]string{
		"missing name":  "start: a\nstates:\n  - name: a\n",
		"missing start": "name: m\nstates:\n  - name: a\n",
		"no states":     "name: m\nstart: a\n",
		"invalid yaml":  "name: [unclosed",
	}
	for name, src := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(src))
			assert.Error(t, err)
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wf.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleYAML), 0o644))

	def, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "research", def.Name)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
