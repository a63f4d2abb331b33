package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/san-kum/contsim/internal/bifurcation"
	"github.com/san-kum/contsim/internal/continuation"
	"github.com/san-kum/contsim/internal/dynamo"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "run"}
	addRunFlags(cmd)
	cmd.Flags().BoolVar(&noSwitch, "no-switch", false, "")
	cmd.Flags().IntVar(&depth, "depth", 2, "")
	cmd.Flags().BoolVar(&sequential, "sequential", false, "")
	return cmd
}

func TestResolveConfigDefaults(t *testing.T) {
	cmd := newRunCmd()
	cfg, err := resolveConfig(cmd, []string{"transcritical"})
	require.NoError(t, err)
	assert.Equal(t, "transcritical", cfg.Problem)
	assert.Equal(t, dynamo.DefaultConfig(), cfg.Continuation)
}

func TestResolveConfigPresetThenFlags(t *testing.T) {
	cmd := newRunCmd()
	require.NoError(t, cmd.Flags().Set("preset", "upper"))
	require.NoError(t, cmd.Flags().Set("lambda", "1.5"))
	require.NoError(t, cmd.Flags().Set("param", "mu=2"))
	require.NoError(t, cmd.Flags().Set("no-switch", "true"))
	require.NoError(t, cmd.Flags().Set("sequential", "true"))

	cfg, err := resolveConfig(cmd, []string{"pitchfork"})
	require.NoError(t, err)
	assert.Equal(t, []float64{1}, cfg.Start.U)
	assert.Equal(t, 1.5, cfg.Start.Lambda)
	assert.Equal(t, -1.0, cfg.Continuation.Direction)
	assert.Equal(t, 2.0, cfg.Params["mu"])
	assert.False(t, cfg.Continuation.Switching.Enabled)
	assert.False(t, cfg.Continuation.Switching.Parallel)
}

func TestResolveConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.yaml")
	require.NoError(t, os.WriteFile(path, []byte("problem: bratu\nstart:\n  lambda: 0.1\nstop:\n  max_steps: 50\n"), 0644))

	cmd := newRunCmd()
	require.NoError(t, cmd.Flags().Set("config", path))
	require.NoError(t, cmd.Flags().Set("max-steps", "7"))

	cfg, err := resolveConfig(cmd, nil)
	require.NoError(t, err)
	assert.Equal(t, "bratu", cfg.Problem)
	assert.Equal(t, 0.1, cfg.Start.Lambda)
	assert.Equal(t, 7, cfg.Stop.MaxSteps)
}

func TestResolveConfigErrors(t *testing.T) {
	tests := []struct {
		name  string
		flags map[string]string
	}{
		{"unknown preset", map[string]string{"preset": "nope"}},
		{"step above max", map[string]string{"ds": "0.5", "ds-max": "0.1"}},
		{"bad direction", map[string]string{"direction": "0"}},
		{"bad param", map[string]string{"param": "mu"}},
		{"missing config", map[string]string{"config": "/does/not/exist.yaml"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := newRunCmd()
			for k, v := range tt.flags {
				require.NoError(t, cmd.Flags().Set(k, v))
			}
			_, err := resolveConfig(cmd, []string{"pitchfork"})
			assert.Error(t, err)
		})
	}
}

func TestParseParams(t *testing.T) {
	kv, err := parseParams([]string{"a=1", " b = -2.5 "})
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"a": 1, "b": -2.5}, kv)

	_, err = parseParams([]string{"=3"})
	assert.Error(t, err)
	_, err = parseParams([]string{"a=x"})
	assert.Error(t, err)
}

func TestPrintTree(t *testing.T) {
	tree := &continuation.Tree{Branches: []*continuation.Result{{
		ID: "root",
		Points: []dynamo.Point{
			{X: dynamo.Extended{0, -0.5}},
			{X: dynamo.Extended{0, 0.5}},
		},
		Bifurcations: []bifurcation.Record{{Kind: bifurcation.BranchPoint, X: dynamo.Extended{0, 0}, Test: "bordered", Crossed: 1, Localized: true}},
		Reason:       continuation.ReasonParameterBound,
	}}}

	var buf bytes.Buffer
	printTree(&buf, tree)
	out := buf.String()
	assert.Contains(t, out, "root")
	assert.Contains(t, out, "branch-point")
	assert.Contains(t, out, "bordered")
	assert.Contains(t, out, "+1")
}
