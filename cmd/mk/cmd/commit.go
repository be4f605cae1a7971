package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/oneconcern/microkernel/pkg/kernel"
	"github.com/spf13/cobra"
)

var commitCmd = &cobra.Command{
	Use:   "commit [diff]",
	Short: "Commit changes",
	Long: `Commit changes described by a diff, relative to the node at --path.

The diff is a sequence of operations:

  +"path":{...}      add a node, with its properties and children
  +"path":value      add a property
  -"path"            remove a node
  ^"path":value      set a property, null removes it
  >"from":"to"       move a node
  *"from":"to"       copy a node

The new revision is printed.`,
	Example: `mk commit '+"a":{"x":1}' -m "add a"
mk commit --file changes.jsop`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		diff, err := readDiff(cmd, args)
		if err != nil {
			return err
		}
		base, err := parseRevision(params.commit.base)
		if err != nil {
			return err
		}
		return withKernel(cmd.Context(), func(k *kernel.MicroKernel) error {
			rev, err := k.Commit(cmd.Context(), params.node.path, diff, base, params.commit.message)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), rev)
			return err
		})
	},
}

func readDiff(cmd *cobra.Command, args []string) (string, error) {
	switch {
	case len(args) == 1 && params.commit.file != "":
		return "", fmt.Errorf("a diff may not be given both as an argument and as a file")
	case len(args) == 1:
		return args[0], nil
	case params.commit.file == "-":
		b, err := io.ReadAll(cmd.InOrStdin())
		return string(b), err
	case params.commit.file != "":
		b, err := os.ReadFile(params.commit.file)
		return string(b), err
	default:
		return "", fmt.Errorf("no diff to commit")
	}
}

func init() {
	addPathFlag(commitCmd)
	addBaseFlag(commitCmd)
	addMessageFlag(commitCmd)
	addDiffFileFlag(commitCmd)

	rootCmd.AddCommand(commitCmd)
}
