// Copyright © 2018 One Concern

package cmd

import (
	"time"

	"github.com/oneconcern/microkernel/pkg/model"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

type flagsT struct {
	root struct {
		backend     string
		dir         string
		logLevel    string
		distributed bool
		metricsAddr string
	}
	node struct {
		path     string
		revision string
		depth    int
		offset   int
		count    int
	}
	commit struct {
		base    string
		message string
		file    string
	}
	history struct {
		from  string
		to    string
		since time.Duration
		max   int
	}
	wait struct {
		timeout time.Duration
	}
	blob struct {
		pos    int64
		length int
	}
	gc struct {
		targetBackend string
		targetDir     string
		clearSource   bool
	}
	config struct {
		output string
	}
}

var params = flagsT{}

// addRootFlags declares the persistent flags overriding the configuration
func addRootFlags(cmd *cobra.Command) {
	flags := cmd.PersistentFlags()
	flags.StringVar(&params.root.backend, "backend", "", "The storage backend: memory, localfs or badger")
	flags.StringVar(&params.root.dir, "dir", "", "The repository directory")
	flags.StringVar(&params.root.logLevel, "log-level", "", "The logging level: debug, info, warn, error or none")
	flags.BoolVar(&params.root.distributed, "distributed", false, "Commit optimistically, for repositories shared by several processes")
	flags.StringVar(&params.root.metricsAddr, "metrics-addr", "", "Serve prometheus metrics on this address while the command runs")

	for key, flag := range map[string]string{
		"backend":     "backend",
		"dir":         "dir",
		"logLevel":    "log-level",
		"distributed": "distributed",
		"metricsAddr": "metrics-addr",
	} {
		_ = viper.BindPFlag(key, flags.Lookup(flag))
	}
}

func addPathFlag(cmd *cobra.Command) string {
	path := "path"
	cmd.Flags().StringVar(&params.node.path, path, "/", "The path of the node")
	return path
}

func addRevisionFlag(cmd *cobra.Command) string {
	revision := "revision"
	cmd.Flags().StringVar(&params.node.revision, revision, "", "The revision, if not specified the head revision is used")
	return revision
}

func addDepthFlag(cmd *cobra.Command) string {
	depth := "depth"
	cmd.Flags().IntVar(&params.node.depth, depth, 1, "The number of levels of children to include")
	return depth
}

func addWindowFlags(cmd *cobra.Command) {
	cmd.Flags().IntVar(&params.node.offset, "offset", 0, "The position of the first child to include")
	cmd.Flags().IntVar(&params.node.count, "count", -1, "The maximum number of children to include, -1 for all")
}

func addBaseFlag(cmd *cobra.Command) string {
	base := "base"
	cmd.Flags().StringVar(&params.commit.base, base, "", "The base revision of the changes, if not specified the head revision is used")
	return base
}

func addMessageFlag(cmd *cobra.Command) string {
	message := "message"
	cmd.Flags().StringVarP(&params.commit.message, message, "m", "", "The message describing the changes")
	return message
}

func addDiffFileFlag(cmd *cobra.Command) string {
	file := "file"
	cmd.Flags().StringVar(&params.commit.file, file, "", "Read the diff from a file, - for the standard input")
	return file
}

func addFromToFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&params.history.from, "from", "", "The first revision")
	cmd.Flags().StringVar(&params.history.to, "to", "", "The last revision, if not specified the head revision is used")
}

func addSinceFlags(cmd *cobra.Command) {
	cmd.Flags().DurationVar(&params.history.since, "since", 24*time.Hour, "List revisions committed within this duration")
	cmd.Flags().IntVar(&params.history.max, "max", -1, "The maximum number of revisions to list, -1 for all")
}

func addTimeoutFlag(cmd *cobra.Command) string {
	timeout := "timeout"
	cmd.Flags().DurationVar(&params.wait.timeout, timeout, 30*time.Second, "The maximum time to wait")
	return timeout
}

func addBlobWindowFlags(cmd *cobra.Command) {
	cmd.Flags().Int64Var(&params.blob.pos, "pos", 0, "The position of the first byte to read")
	cmd.Flags().IntVar(&params.blob.length, "length", -1, "The number of bytes to read, -1 for all")
}

func addTargetFlags(cmd *cobra.Command) string {
	dir := "target-dir"
	cmd.Flags().StringVar(&params.gc.targetDir, dir, "", "The directory of the repository receiving the live nodes")
	cmd.Flags().StringVar(&params.gc.targetBackend, "target-backend", "", "The backend of the target repository, if not specified the configured backend is used")
	return dir
}

func addOutputFlag(cmd *cobra.Command) string {
	output := "output"
	cmd.Flags().StringVarP(&params.config.output, output, "o", "", "Write to this file")
	return output
}

// parseRevision reads an optional revision flag: the zero revision designates the head
func parseRevision(s string) (model.Revision, error) {
	if s == "" {
		return 0, nil
	}
	return model.ParseRevision(s)
}

func requireFlags(cmd *cobra.Command, flags ...string) {
	for _, flag := range flags {
		if err := cmd.MarkFlagRequired(flag); err != nil {
			wrapFatalln("marking flag as required", err)
		}
	}
}
