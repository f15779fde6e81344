package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPreview(t *testing.T) {
	assert.Equal(t, "short", preview("short", 10))
	assert.Equal(t, "héllo...", preview("héllo wörld", 5))
}

func TestCommandsRegistered(t *testing.T) {
	for _, name := range []string{"serve", "highlight", "segment"} {
		cmd, _, err := rootCmd.Find([]string{name})
		require.NoError(t, err)
		assert.Equal(t, name, cmd.Name())
	}
}

func TestHighlightFlags(t *testing.T) {
	for _, flag := range []string{"limit", "pages", "async"} {
		assert.NotNil(t, highlightCmd.Flags().Lookup(flag), flag)
	}
	assert.Error(t, highlightCmd.Args(highlightCmd, nil))
	assert.Error(t, segmentCmd.Args(segmentCmd, []string{"only-id"}))
	assert.Error(t, serveCmd.Args(serveCmd, []string{"api", "extra"}))
}
