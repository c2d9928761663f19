package main

import (
	"context"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"legalchat/internal/config"
	"legalchat/internal/historystore/file"
	"legalchat/internal/historystore/memory"
)

func TestOpenHistory(t *testing.T) {
	ctx := context.Background()

	st, err := openHistory(ctx, &config.AppConfig{History: config.HistoryConfig{Type: "memory"}})
	require.NoError(t, err)
	assert.IsType(t, &memory.Storage{}, st)

	st, err = openHistory(ctx, &config.AppConfig{History: config.HistoryConfig{
		Type: "file",
		File: &config.FileHistoryConfig{Dir: t.TempDir()},
	}})
	require.NoError(t, err)
	assert.IsType(t, &file.Storage{}, st)

	_, err = openHistory(ctx, &config.AppConfig{History: config.HistoryConfig{Type: "file"}})
	assert.Error(t, err)

	_, err = openHistory(ctx, &config.AppConfig{History: config.HistoryConfig{Type: "sqlite"}})
	assert.ErrorContains(t, err, "unknown history backend")
}

func TestOneLine(t *testing.T) {
	assert.Equal(t, "a b c", oneLine("a\nb\tc", 10))
	assert.Equal(t, "abcd…", oneLine("abcdefgh", 5))
}

func TestAnalysisCommandsRequireFlags(t *testing.T) {
	for name, flags := range map[string][]string{
		"entities":  {"path"},
		"citations": {"path"},
		"compare":   {"a", "b"},
	} {
		cmd, _, err := rootCmd.Find([]string{name})
		require.NoError(t, err, name)
		require.Equal(t, name, cmd.Name())
		for _, f := range flags {
			flag := cmd.Flags().Lookup(f)
			require.NotNil(t, flag, "%s --%s", name, f)
			assert.Equal(t, []string{"true"}, flag.Annotations[cobra.BashCompOneRequiredFlag], "%s --%s", name, f)
		}
	}
}

func TestHistoryClearHasPurgeFlag(t *testing.T) {
	cmd, _, err := rootCmd.Find([]string{"history", "clear"})
	require.NoError(t, err)
	flag := cmd.Flags().Lookup("purge")
	require.NotNil(t, flag)
	assert.Equal(t, "false", flag.DefValue)
}
