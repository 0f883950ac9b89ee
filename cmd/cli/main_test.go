package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rhonull/adapters/rng"
)

func runCLI(t *testing.T, args ...string) string {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs(args)
	require.NoError(t, cmd.Execute())
	return out.String()
}

func TestUnconstrainedCommand_Reproducible(t *testing.T) {
	first := runCLI(t, "unconstrained", "--n", "10", "--iterations", "25", "--seed", "3", "--workers", "1")
	second := runCLI(t, "unconstrained", "--n", "10", "--iterations", "25", "--seed", "3", "--workers", "4")

	assert.Equal(t, first, second)
	assert.Contains(t, first, "iterations:        25")
}

func TestUnconstrainedCommand_JSONSummaryOnly(t *testing.T) {
	out := runCLI(t, "unconstrained", "--n", "20", "--iterations", "100",
		"--summary-only", "--json", "--observed", "0.5", "--alternative", "greater")

	var result samplesOutput
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Empty(t, result.Samples)
	require.NotNil(t, result.Summary)
	assert.Equal(t, 100, result.Summary.Iterations)
	require.NotNil(t, result.PValue)
	assert.Equal(t, "greater", result.PValue.Alternative)
}

func TestUnconstrainedCommand_ExplicitSeeds(t *testing.T) {
	out := runCLI(t, "unconstrained", "--n", "5", "--seeds", "1")
	assert.Equal(t, "0.90000000000000002", strings.SplitN(out, "\n", 2)[0])
	assert.Contains(t, out, "iterations:        1")

	var result samplesOutput
	require.NoError(t, json.Unmarshal([]byte(runCLI(t, "unconstrained", "--n", "100", "--seeds=-7,42", "--json")), &result))
	require.Len(t, result.Samples, 2)
	assert.Equal(t, -0.0090729072907291819, result.Samples[0])

	// the seeds override --seed
	a := runCLI(t, "unconstrained", "--n", "17", "--seeds", "42", "--seed", "1")
	b := runCLI(t, "unconstrained", "--n", "17", "--seeds", "42", "--seed", "2")
	assert.Equal(t, a, b)
	assert.Equal(t, "0.16421568627450978", strings.SplitN(a, "\n", 2)[0])
}

func TestResidualCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "design.csv")
	var b strings.Builder
	b.WriteString("intercept,x\n")
	for i := 0; i < 12; i++ {
		b.WriteString("1,")
		b.WriteString(strings.Repeat("1", i%4+1))
		b.WriteString("\n")
	}
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o644))

	out := runCLI(t, "residual", "--design", path, "--iterations", "30", "--json")
	var result samplesOutput
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Len(t, result.Samples, 30)
	assert.Equal(t, 12, result.Summary.Observations)

	var seeded samplesOutput
	require.NoError(t, json.Unmarshal([]byte(runCLI(t, "residual", "--design", path, "--seeds", "3,1,4,1,5", "--json")), &seeded))
	assert.Len(t, seeded.Samples, 5)
	// equal seeds give equal samples
	assert.Equal(t, seeded.Samples[1], seeded.Samples[3])
}

func TestRnormCommand(t *testing.T) {
	out := runCLI(t, "rnorm", "--count", "4", "--seed", "9")
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 4)

	var want strings.Builder
	for _, v := range rng.Normals(4, 9) {
		want.WriteString(formatSample(v))
		want.WriteString("\n")
	}
	assert.Equal(t, want.String(), out)
}

func TestCommandErrors(t *testing.T) {
	tests := [][]string{
		{"unconstrained", "--n", "1", "--iterations", "5"},
		{"unconstrained", "--iterations", "5"},
		{"residual", "--design", "missing.csv"},
		{"rnorm", "--count", "-1"},
		{"unconstrained", "--n", "5", "--seeds", "1,2", "--iterations", "3"},
		{"unconstrained", "--n", "5", "--seeds", "1,x"},
	}
	for _, args := range tests {
		t.Run(strings.Join(args, " "), func(t *testing.T) {
			cmd := newRootCmd()
			cmd.SetOut(&bytes.Buffer{})
			cmd.SetErr(&bytes.Buffer{})
			cmd.SetArgs(args)
			assert.Error(t, cmd.Execute())
		})
	}
}
