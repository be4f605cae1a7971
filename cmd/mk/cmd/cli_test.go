package cmd

import (
	"bytes"
	"io"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// resetFlags restores the defaults of all flags, which are shared by successive runs
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, sub := range cmd.Commands() {
		resetFlags(sub)
	}
}

func runCmd(t *testing.T, stdin string, args ...string) string {
	t.Helper()
	resetFlags(rootCmd)
	var out bytes.Buffer
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetArgs(args)
	require.NoError(t, rootCmd.Execute(), "mk %s", strings.Join(args, " "))
	return strings.TrimSpace(out.String())
}

func TestCLI(t *testing.T) {
	t.Setenv("MK_CONFIG", filepath.Join(t.TempDir(), "none.yaml"))
	dir := t.TempDir()
	repo := func(args ...string) []string {
		return append(args, "--backend", "localfs", "--dir", dir, "--log-level", "none")
	}

	assert.Equal(t, "1", runCmd(t, "", repo("head")...))
	assert.Equal(t, "2", runCmd(t, "", repo("commit", `+"a":{"x":1}`, "-m", "add a")...))
	assert.Equal(t, "3", runCmd(t, `^"x":2`, repo("commit", "--path", "/a", "--file", "-")...))

	assert.JSONEq(t, `{"x":2,":childNodeCount":0}`, runCmd(t, "", repo("get", "--path", "/a")...))
	assert.JSONEq(t, `{"x":1,":childNodeCount":0}`, runCmd(t, "", repo("get", "--path", "/a", "--revision", "2")...))
	assert.Equal(t, "true", runCmd(t, "", repo("exists", "--path", "/a")...))
	assert.Equal(t, "false", runCmd(t, "", repo("exists", "--path", "/b")...))
	assert.Equal(t, "1", runCmd(t, "", repo("count")...))

	assert.Equal(t, `+"/a":{"x":2}`, runCmd(t, "", repo("diff", "--from", "1")...))
	journal := runCmd(t, "", repo("journal", "--from", "2")...)
	assert.Contains(t, journal, "revision 2")
	assert.Contains(t, journal, `^"/a/x":2`)
	assert.Len(t, strings.Split(runCmd(t, "", repo("revisions")...), "\n"), 3)
	assert.Equal(t, "3", runCmd(t, "", repo("wait", "--revision", "2", "--timeout", "0")...))

	assert.Equal(t, "4", runCmd(t, "", repo("branch")...))
	assert.Equal(t, "5", runCmd(t, "", repo("commit", "--base", "4", `+"b":{}`)...))
	assert.Equal(t, "3", runCmd(t, "", repo("head")...))
	assert.Equal(t, "6", runCmd(t, "", repo("merge", "--revision", "5", "-m", "merge")...))
	assert.Equal(t, "true", runCmd(t, "", repo("exists", "--path", "/b")...))

	id := runCmd(t, "some content", repo("blob", "put")...)
	assert.Len(t, id, 64)
	assert.Equal(t, "12\t12B", runCmd(t, "", repo("blob", "length", id)...))
	assert.Equal(t, "content", runCmd(t, "", repo("blob", "get", id, "--pos", "5")...))
	assert.Equal(t, "some", runCmd(t, "", repo("blob", "get", id, "--length", "4")...))

	assert.Contains(t, runCmd(t, "", repo("config", "generate")...), "backend: localfs")

	target := t.TempDir()
	assert.Contains(t, runCmd(t, "", repo("gc", "--target-dir", target, "--target-backend", "badger")...), "6 -> 6")
	tree := runCmd(t, "", "get", "--depth", "2", "--backend", "badger", "--dir", target, "--log-level", "none")
	assert.JSONEq(t, `{":childNodeCount":2,"a":{"x":2,":childNodeCount":0},"b":{":childNodeCount":0}}`, tree)
}
