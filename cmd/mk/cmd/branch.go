package cmd

import (
	"fmt"

	"github.com/oneconcern/microkernel/pkg/kernel"
	"github.com/spf13/cobra"
)

var branchCmd = &cobra.Command{
	Use:   "branch",
	Short: "Create a branch",
	Long: `Create a branch off a trunk revision, and print its first revision.

Commits based on a branch revision stay on the branch until it is merged.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		rev, err := parseRevision(params.node.revision)
		if err != nil {
			return err
		}
		return withKernel(cmd.Context(), func(k *kernel.MicroKernel) error {
			branch, err := k.Branch(cmd.Context(), rev)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), branch)
			return err
		})
	},
}

var mergeCmd = &cobra.Command{
	Use:   "merge",
	Short: "Merge a branch into the trunk",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		rev, err := parseRevision(params.node.revision)
		if err != nil {
			return err
		}
		return withKernel(cmd.Context(), func(k *kernel.MicroKernel) error {
			merged, err := k.Merge(cmd.Context(), rev, params.commit.message)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), merged)
			return err
		})
	},
}

func init() {
	addRevisionFlag(branchCmd)

	requireFlags(mergeCmd, addRevisionFlag(mergeCmd))
	addMessageFlag(mergeCmd)

	rootCmd.AddCommand(branchCmd)
	rootCmd.AddCommand(mergeCmd)
}
