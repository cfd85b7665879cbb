package commands

import (
	"github.com/spf13/cobra"
)

// runRemote connects the configured share and runs fn on it.
func runRemote(cmd *cobra.Command, fn func(r *remote) error) error {
	c, err := connect(cmd.Context(), true)
	if err != nil {
		return err
	}
	defer c.Close()

	return fn(&remote{c: c, out: cmd.OutOrStdout(), err: cmd.ErrOrStderr()})
}

func optArg(args []string, i int) string {
	if i < len(args) {
		return args[i]
	}
	return ""
}

var lsCmd = &cobra.Command{
	Use:   "ls [path]",
	Short: "List a directory",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		pattern, _ := cmd.Flags().GetString("pattern")
		return runRemote(cmd, func(r *remote) error {
			return r.ls(cmd.Context(), optArg(args, 0), pattern)
		})
	},
}

var statCmd = &cobra.Command{
	Use:   "stat <path>",
	Short: "Show file information",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runRemote(cmd, func(r *remote) error {
			return r.stat(cmd.Context(), args[0])
		})
	},
}

var getCmd = &cobra.Command{
	Use:   "get <remote> [local]",
	Short: "Download a file",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runRemote(cmd, func(r *remote) error {
			return r.get(cmd.Context(), args[0], optArg(args, 1))
		})
	},
}

var putCmd = &cobra.Command{
	Use:   "put <local> [remote]",
	Short: "Upload a file or a directory tree",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runRemote(cmd, func(r *remote) error {
			return r.put(cmd.Context(), args[0], optArg(args, 1))
		})
	},
}

var mkdirCmd = &cobra.Command{
	Use:   "mkdir <path>",
	Short: "Create a directory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runRemote(cmd, func(r *remote) error {
			return r.mkdir(cmd.Context(), args[0])
		})
	},
}

var rmCmd = &cobra.Command{
	Use:   "rm <path>...",
	Short: "Delete files (wildcards allowed)",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runRemote(cmd, func(r *remote) error {
			for _, p := range args {
				if err := r.rm(cmd.Context(), p); err != nil {
					return err
				}
			}
			return nil
		})
	},
}

var rmdirCmd = &cobra.Command{
	Use:   "rmdir <path>",
	Short: "Delete an empty directory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runRemote(cmd, func(r *remote) error {
			return r.rmdir(cmd.Context(), args[0])
		})
	},
}

var mvCmd = &cobra.Command{
	Use:   "mv <old> <new>",
	Short: "Move or rename a file or directory",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runRemote(cmd, func(r *remote) error {
			return r.mv(cmd.Context(), args[0], args[1])
		})
	},
}

var sharesCmd = &cobra.Command{
	Use:   "shares",
	Short: "List the shares of the server",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := connect(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer c.Close()

		shares, err := c.ListShares(cmd.Context())
		if err != nil {
			return err
		}

		printShares(cmd.OutOrStdout(), shares)
		return nil
	},
}

func init() {
	lsCmd.Flags().String("pattern", "*", "Name pattern passed to the server")
}
