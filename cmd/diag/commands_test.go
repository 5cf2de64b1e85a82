package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommandWiring(t *testing.T) {
	root := RootCommand()
	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.ElementsMatch(t, []string{"bucket", "simulate", "analyze", "upload"}, names)
	require.NotNil(t, root.PersistentFlags().Lookup("config"))
}

func TestArgsValidatedBeforeConfig(t *testing.T) {
	tests := []struct {
		args []string
		want string
	}{
		{[]string{"analyze"}, "requires at least 1 arg(s)"},
		{[]string{"upload"}, "accepts 1 arg(s)"},
		{[]string{"bucket", "extra"}, "unknown command"},
	}
	for _, tt := range tests {
		t.Run(tt.args[0], func(t *testing.T) {
			root := RootCommand()
			var out bytes.Buffer
			root.SetOut(&out)
			root.SetErr(&out)
			root.SetArgs(append(tt.args, "--config", "testdata/does-not-exist.yaml"))

			err := root.Execute()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
