package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	color.NoColor = true
	os.Exit(m.Run())
}

// resetFlags restores every flag in the tree so commands can be executed repeatedly
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

// testEnv isolates HOME and environment overrides, returning config and storage flags for the run
func testEnv(t *testing.T) []string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("MINDVAULT_STORAGE_PATH", "")
	t.Setenv("MINDVAULT_EMBEDDING_API_KEY", "")

	return []string{
		"--config", filepath.Join(home, "config.json"),
		"--storage-path", filepath.Join(home, "storage"),
		"--log-level", "error",
	}
}

func executeCommand(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()

	cmd := GetRootCmd()
	resetFlags(cmd)
	t.Cleanup(func() { resetFlags(cmd) })

	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)

	err := cmd.Execute()
	return stdout.String(), err
}

func TestRootCommand(t *testing.T) {
	t.Run("version flag", func(t *testing.T) {
		output, err := executeCommand(t, "", "--version")
		require.NoError(t, err)

		assert.Contains(t, output, "mindvault version")
		assert.Contains(t, output, GetVersion())
	})

	t.Run("version command", func(t *testing.T) {
		output, err := executeCommand(t, "", "version")
		require.NoError(t, err)

		assert.Equal(t, "mindvault version "+GetVersion()+"\n", output)
	})

	t.Run("help flag", func(t *testing.T) {
		output, err := executeCommand(t, "", "--help")
		require.NoError(t, err)

		assert.Contains(t, output, "mindvault")
		assert.Contains(t, output, "memories")
		for _, name := range []string{"serve", "add", "search", "delete", "stats", "configure"} {
			assert.Contains(t, output, name)
		}
	})

	t.Run("global flags", func(t *testing.T) {
		cmd := GetRootCmd()

		configFlag := cmd.PersistentFlags().Lookup("config")
		require.NotNil(t, configFlag)
		assert.Equal(t, "", configFlag.DefValue)

		logLevelFlag := cmd.PersistentFlags().Lookup("log-level")
		require.NotNil(t, logLevelFlag)
		assert.Equal(t, "info", logLevelFlag.DefValue)

		storageFlag := cmd.PersistentFlags().Lookup("storage-path")
		require.NotNil(t, storageFlag)
		assert.Equal(t, "", storageFlag.DefValue)
	})
}

func TestGetVersion(t *testing.T) {
	version := GetVersion()
	assert.NotEmpty(t, version)
	assert.True(t, strings.HasPrefix(version, "0."))
}
