package cmd

import (
	"fmt"
	"time"

	"github.com/oneconcern/microkernel/pkg/kernel"
	"github.com/spf13/cobra"
)

var headCmd = &cobra.Command{
	Use:   "head",
	Short: "Print the head revision",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withKernel(cmd.Context(), func(k *kernel.MicroKernel) error {
			head, err := k.GetHeadRevision(cmd.Context())
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), head)
			return err
		})
	},
}

var revisionsCmd = &cobra.Command{
	Use:   "revisions",
	Short: "List recent revisions",
	Long:  "List the revisions of the trunk committed recently, oldest first.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withKernel(cmd.Context(), func(k *kernel.MicroKernel) error {
			since := time.Now().Add(-params.history.since)
			revisions, err := k.GetRevisions(cmd.Context(), since, params.history.max)
			if err != nil {
				return err
			}
			for _, info := range revisions {
				if _, err = fmt.Fprintf(cmd.OutOrStdout(), "%v\t%s\n", info.ID, info.Timestamp.Format(time.RFC3339Nano)); err != nil {
					return err
				}
			}
			return nil
		})
	},
}

var waitCmd = &cobra.Command{
	Use:   "wait",
	Short: "Wait for a new revision",
	Long: `Wait until the head moves away from a revision, then print the head.

The current head is printed when the timeout elapses.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		old, err := parseRevision(params.node.revision)
		if err != nil {
			return err
		}
		return withKernel(cmd.Context(), func(k *kernel.MicroKernel) error {
			if old.IsZero() {
				if old, err = k.GetHeadRevision(cmd.Context()); err != nil {
					return err
				}
			}
			head, err := k.WaitForCommit(cmd.Context(), old, params.wait.timeout)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), head)
			return err
		})
	},
}

func init() {
	addSinceFlags(revisionsCmd)
	addRevisionFlag(waitCmd)
	addTimeoutFlag(waitCmd)

	rootCmd.AddCommand(headCmd)
	rootCmd.AddCommand(revisionsCmd)
	rootCmd.AddCommand(waitCmd)
}
