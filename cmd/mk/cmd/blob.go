package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/docker/go-units"
	"github.com/oneconcern/microkernel/pkg/kernel"
	"github.com/spf13/cobra"
)

const blobChunkSize = 64 * units.KiB

var blobCmd = &cobra.Command{
	Use:   "blob",
	Short: "Commands to manage binary values",
	Long: `Commands to manage binary values.

Blobs are stored by content: storing the same content twice yields the same id.
Properties refer to blobs by id.`,
}

var blobPutCmd = &cobra.Command{
	Use:   "put [file]",
	Short: "Store a blob and print its id",
	Long:  "Store the content of a file, or of the standard input, and print its id.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		in := cmd.InOrStdin()
		if len(args) == 1 && args[0] != "-" {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			in = f
		}
		return withKernel(cmd.Context(), func(k *kernel.MicroKernel) error {
			id, err := k.Write(cmd.Context(), in)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), id)
			return err
		})
	},
}

var blobGetCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Write the content of a blob to the standard output",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withKernel(cmd.Context(), func(k *kernel.MicroKernel) error {
			out := cmd.OutOrStdout()
			buf := make([]byte, blobChunkSize)
			pos, remaining := params.blob.pos, params.blob.length
			for remaining != 0 {
				length := len(buf)
				if remaining > 0 && remaining < length {
					length = remaining
				}
				n, err := k.Read(cmd.Context(), args[0], pos, buf, 0, length)
				if err == io.EOF {
					return nil
				}
				if err != nil {
					return err
				}
				if _, err = out.Write(buf[:n]); err != nil {
					return err
				}
				pos += int64(n)
				if remaining > 0 {
					remaining -= n
				}
			}
			return nil
		})
	},
}

var blobLengthCmd = &cobra.Command{
	Use:   "length <id>",
	Short: "Print the size of a blob",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withKernel(cmd.Context(), func(k *kernel.MicroKernel) error {
			size, err := k.GetLength(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%d\t%s\n", size, units.BytesSize(float64(size)))
			return err
		})
	},
}

func init() {
	addBlobWindowFlags(blobGetCmd)

	blobCmd.AddCommand(blobPutCmd)
	blobCmd.AddCommand(blobGetCmd)
	blobCmd.AddCommand(blobLengthCmd)
	rootCmd.AddCommand(blobCmd)
}
