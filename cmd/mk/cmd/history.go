package cmd

import (
	"fmt"
	"time"

	"github.com/oneconcern/microkernel/pkg/kernel"
	"github.com/spf13/cobra"
)

var diffCmd = &cobra.Command{
	Use:   "diff",
	Short: "Print the changes between two revisions",
	Long: `Print the changes between two revisions, as a diff with absolute paths.

Committing this diff on --from reproduces --to.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		from, err := parseRevision(params.history.from)
		if err != nil {
			return err
		}
		to, err := parseRevision(params.history.to)
		if err != nil {
			return err
		}
		return withKernel(cmd.Context(), func(k *kernel.MicroKernel) error {
			diff, err := k.Diff(cmd.Context(), from, to, params.node.path)
			if err != nil {
				return err
			}
			if diff == "" {
				return nil
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), diff)
			return err
		})
	},
}

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Print the revisions between two revisions, with their changes",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		from, err := parseRevision(params.history.from)
		if err != nil {
			return err
		}
		to, err := parseRevision(params.history.to)
		if err != nil {
			return err
		}
		return withKernel(cmd.Context(), func(k *kernel.MicroKernel) error {
			journal, err := k.GetJournal(cmd.Context(), from, to)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, entry := range journal {
				if _, err = fmt.Fprintf(out, "revision %v\t%s\t%s\n", entry.ID, entry.Timestamp.Format(time.RFC3339Nano), entry.Message); err != nil {
					return err
				}
				if entry.Changes == "" {
					continue
				}
				if _, err = fmt.Fprintln(out, entry.Changes); err != nil {
					return err
				}
			}
			return nil
		})
	},
}

func init() {
	addFromToFlags(diffCmd)
	addPathFlag(diffCmd)
	requireFlags(diffCmd, "from")

	addFromToFlags(journalCmd)
	requireFlags(journalCmd, "from")

	rootCmd.AddCommand(diffCmd)
	rootCmd.AddCommand(journalCmd)
}
