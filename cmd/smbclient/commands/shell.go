package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/smbclient-go/smbclient"
)

var shellCmd = &cobra.Command{
	Use:   "shell",
	Short: "Browse the server interactively",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		c, err := connect(ctx, false)
		if err != nil {
			return err
		}
		defer c.Close()

		r := &remote{c: c, out: cmd.OutOrStdout(), err: cmd.ErrOrStderr()}

		cfg, err := settings.Config()
		if err != nil {
			return err
		}
		if cfg.Share != "" {
			if err := c.ConnectShare(ctx, cfg.Share); err != nil {
				return err
			}
		}

		return runShell(ctx, r)
	},
}

type shellCommand struct {
	usage string
	args  int // required arguments; -1 for one or more
	share bool
	run   func(ctx context.Context, r *remote, args []string) error
}

var shellCommands map[string]*shellCommand

func init() {
	shellCommands = map[string]*shellCommand{
		"ls": {usage: "ls [path]", share: true, run: func(ctx context.Context, r *remote, args []string) error {
			return r.ls(ctx, optArg(args, 0), "*")
		}},
		"cd": {usage: "cd [path]", share: true, run: func(ctx context.Context, r *remote, args []string) error {
			p := optArg(args, 0)
			if p == "" {
				p = "/"
			}
			return r.cd(ctx, p)
		}},
		"pwd": {usage: "pwd", share: true, run: func(ctx context.Context, r *remote, args []string) error {
			fmt.Fprintf(r.out, "%s\\%s\n", r.c.Share(), strings.ReplaceAll(r.cwd, "/", `\`))
			return nil
		}},
		"cat": {usage: "cat <path>", args: 1, share: true, run: func(ctx context.Context, r *remote, args []string) error {
			return r.cat(ctx, args[0])
		}},
		"stat": {usage: "stat <path>", args: 1, share: true, run: func(ctx context.Context, r *remote, args []string) error {
			return r.stat(ctx, args[0])
		}},
		"get": {usage: "get <remote> [local]", args: 1, share: true, run: func(ctx context.Context, r *remote, args []string) error {
			return r.get(ctx, args[0], optArg(args, 1))
		}},
		"put": {usage: "put <local> [remote]", args: 1, share: true, run: func(ctx context.Context, r *remote, args []string) error {
			return r.put(ctx, args[0], optArg(args, 1))
		}},
		"mkdir": {usage: "mkdir <path>", args: 1, share: true, run: func(ctx context.Context, r *remote, args []string) error {
			return r.mkdir(ctx, args[0])
		}},
		"rm": {usage: "rm <path>...", args: -1, share: true, run: func(ctx context.Context, r *remote, args []string) error {
			for _, p := range args {
				if err := r.rm(ctx, p); err != nil {
					return err
				}
			}
			return nil
		}},
		"rmdir": {usage: "rmdir <path>", args: 1, share: true, run: func(ctx context.Context, r *remote, args []string) error {
			return r.rmdir(ctx, args[0])
		}},
		"mv": {usage: "mv <old> <new>", args: 2, share: true, run: func(ctx context.Context, r *remote, args []string) error {
			return r.mv(ctx, args[0], args[1])
		}},
		"shares": {usage: "shares", run: func(ctx context.Context, r *remote, args []string) error {
			shares, err := r.c.ListShares(ctx)
			if err != nil {
				return err
			}
			printShares(r.out, shares)
			return nil
		}},
		"use": {usage: "use <share>", args: 1, run: func(ctx context.Context, r *remote, args []string) error {
			if err := r.c.ConnectShare(ctx, args[0]); err != nil {
				return err
			}
			r.cwd = ""
			return nil
		}},
		"echo": {usage: "echo", run: func(ctx context.Context, r *remote, args []string) error {
			return r.c.Echo(ctx)
		}},
	}
}

func shellCompleter() *readline.PrefixCompleter {
	var items []readline.PrefixCompleterInterface
	for name := range shellCommands {
		items = append(items, readline.PcItem(name))
	}
	items = append(items, readline.PcItem("help"), readline.PcItem("exit"))
	return readline.NewPrefixCompleter(items...)
}

func shellPrompt(r *remote) string {
	if r.c.State() != smbclient.StateTreeConnected {
		return "smb> "
	}
	if r.cwd == "" {
		return fmt.Sprintf("smb:%s> ", r.c.Share())
	}
	return fmt.Sprintf("smb:%s\\%s> ", r.c.Share(), strings.ReplaceAll(r.cwd, "/", `\`))
}

func runShell(ctx context.Context, r *remote) error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          shellPrompt(r),
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
		AutoComplete:    shellCompleter(),
	})
	if err != nil {
		return fmt.Errorf("failed to initialize readline: %w", err)
	}
	defer rl.Close()

	r.out = rl.Stdout()
	r.err = rl.Stderr()

	for {
		rl.SetPrompt(shellPrompt(r))

		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			continue
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		args := splitArgs(line)
		if len(args) == 0 {
			continue
		}

		switch args[0] {
		case "exit", "quit":
			return nil
		case "help", "?":
			printShellHelp(r.out)
			continue
		}

		if err := runShellCommand(ctx, r, args[0], args[1:]); err != nil {
			fmt.Fprintf(r.err, "%s: %v\n", args[0], err)
			if smbclient.IsDisconnected(err) {
				return err
			}
		}
	}
}

func runShellCommand(ctx context.Context, r *remote, name string, args []string) error {
	sc, ok := shellCommands[name]
	if !ok {
		return errors.New("unknown command (try help)")
	}

	switch {
	case sc.args == -1 && len(args) == 0, sc.args > 0 && len(args) < sc.args:
		return fmt.Errorf("usage: %s", sc.usage)
	}

	if sc.share && r.c.State() != smbclient.StateTreeConnected {
		return errors.New("no share connected (use <share>)")
	}

	return sc.run(ctx, r, args)
}

func printShellHelp(w io.Writer) {
	table := newTable(w)
	table.SetHeader([]string{"Command", "Usage"})
	for _, name := range []string{"shares", "use", "ls", "cd", "pwd", "cat", "stat", "get", "put", "mkdir", "rm", "rmdir", "mv", "echo"} {
		table.Append([]string{name, shellCommands[name].usage})
	}
	table.Append([]string{"exit", "exit"})
	table.Render()
}

// splitArgs splits a command line on white space. Double quotes group
// words containing spaces.
func splitArgs(line string) []string {
	var (
		args   []string
		cur    strings.Builder
		quote  bool
		inWord bool
	)
	for _, r := range line {
		switch {
		case r == '"':
			quote = !quote
			inWord = true
		case (r == ' ' || r == '\t') && !quote:
			if inWord {
				args = append(args, cur.String())
				cur.Reset()
				inWord = false
			}
		default:
			cur.WriteRune(r)
			inWord = true
		}
	}
	if inWord {
		args = append(args, cur.String())
	}
	return args
}
