package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScenarios_Golden(t *testing.T) {
	paths, err := filepath.Glob(filepath.Join("testdata", "scenarios", "*.yaml"))
	require.NoError(t, err)
	require.NotEmpty(t, paths)

	for _, path := range paths {
		sc, err := LoadScenario(path)
		require.NoError(t, err, path)

		t.Run(sc.Name, func(t *testing.T) {
			RunWithGolden(t, sc)
		})
	}
}

func TestRun_ResumeReusesCreatedTopic(t *testing.T) {
	sc, err := LoadScenario(filepath.Join("testdata", "scenarios", "seed-write-halts.yaml"))
	require.NoError(t, err)

	result, err := Run(sc)
	require.NoError(t, err)

	assert.Equal(t, "complete", result.Outcome)
	// The halted and resumed runs share one list topic id: no orphan topic
	// was created by the retry.
	assert.Equal(t, "0.0.1003", result.ListTopic)
	assert.Equal(t, result.ListTopic, result.Profile["Channels"])
}

func TestRun_HaltedFlowCommitsNothing(t *testing.T) {
	sc, err := LoadScenario(filepath.Join("testdata", "scenarios", "wallet-rejection.yaml"))
	require.NoError(t, err)

	result, err := Run(sc)
	require.NoError(t, err)

	assert.Equal(t, "halted", result.Outcome)
	assert.Empty(t, result.PrimaryTopic)
	assert.Empty(t, result.ListTopic)
	assert.Empty(t, result.Profile)
}

func TestRun_IsDeterministic(t *testing.T) {
	sc, err := LoadScenario(filepath.Join("testdata", "scenarios", "first-channel.yaml"))
	require.NoError(t, err)

	a, err := Run(sc)
	require.NoError(t, err)
	b, err := Run(sc)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestLoadScenario_RejectsUnknownFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
name: typo
description: has a typo
draft:
  kind: Channels
  name: X
assertion: oops
`), 0o644))

	_, err := LoadScenario(path)
	assert.Error(t, err)
}

func TestLoadScenario_Validation(t *testing.T) {
	cases := map[string]string{
		"missing name": `
description: d
draft:
  kind: Channels
  name: X
`,
		"bad kind": `
name: n
description: d
draft:
  kind: FollowingChannels
  name: X
`,
		"bad fault op": `
name: n
description: d
draft:
  kind: Channels
  name: X
faults:
  - op: teleport
    call: 1
    error: boom
`,
		"zero fault call": `
name: n
description: d
draft:
  kind: Channels
  name: X
faults:
  - op: submit
    call: 0
    error: boom
`,
	}

	dir := t.TempDir()
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, "sc.yaml")
			require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
			_, err := LoadScenario(path)
			assert.Error(t, err)
		})
	}
}
