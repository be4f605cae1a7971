package cmd

import (
	"fmt"

	"github.com/oneconcern/microkernel/pkg/kernel"
	"github.com/spf13/cobra"
)

var getCmd = &cobra.Command{
	Use:   "get",
	Short: "Print a node tree as JSON",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		rev, err := parseRevision(params.node.revision)
		if err != nil {
			return err
		}
		return withKernel(cmd.Context(), func(k *kernel.MicroKernel) error {
			tree, err := k.GetNodes(cmd.Context(), params.node.path, rev, params.node.depth, params.node.offset, params.node.count)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), tree)
			return err
		})
	},
}

var existsCmd = &cobra.Command{
	Use:   "exists",
	Short: "Tell if a node exists",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		rev, err := parseRevision(params.node.revision)
		if err != nil {
			return err
		}
		return withKernel(cmd.Context(), func(k *kernel.MicroKernel) error {
			exists, err := k.NodeExists(cmd.Context(), params.node.path, rev)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), exists)
			return err
		})
	},
}

var countCmd = &cobra.Command{
	Use:   "count",
	Short: "Print the number of children of a node",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		rev, err := parseRevision(params.node.revision)
		if err != nil {
			return err
		}
		return withKernel(cmd.Context(), func(k *kernel.MicroKernel) error {
			count, err := k.GetChildNodeCount(cmd.Context(), params.node.path, rev)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), count)
			return err
		})
	},
}

func init() {
	for _, cmd := range []*cobra.Command{getCmd, existsCmd, countCmd} {
		addPathFlag(cmd)
		addRevisionFlag(cmd)
		rootCmd.AddCommand(cmd)
	}
	addDepthFlag(getCmd)
	addWindowFlags(getCmd)
}
