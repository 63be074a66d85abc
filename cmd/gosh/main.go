// gosh is an interactive POSIX-compatible shell built on top of the
// token/syntax/expand/interp packages.
package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/google/renameio/v2"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/kodflow/gosh/interp"
	"github.com/kodflow/gosh/syntax"
)

var (
	command     string
	interactive bool
	stdinFlag   bool
	noRC        bool
	rcFile      string
)

var rootCmd = &cobra.Command{
	Use:           "gosh [script [args...]]",
	Short:         "gosh is an interactive POSIX-compatible shell",
	SilenceUsage:  true,
	SilenceErrors: true,
	Version:       "0.1.0",
	Args:          cobra.ArbitraryArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAll(args)
	},
}

func init() {
	flags := rootCmd.Flags()
	flags.StringVarP(&command, "command", "c", "", "commands are read from the command_string operand")
	flags.BoolVarP(&interactive, "interactive", "i", false, "force interactive mode")
	flags.BoolVarP(&stdinFlag, "stdin", "s", false, "read commands from standard input")
	flags.BoolVar(&noRC, "norc", false, "do not read a startup file in interactive mode")
	flags.StringVar(&rcFile, "rcfile", "", "read this startup file instead of ~/.goshrc")
	flags.BoolP("version", "V", false, "print version information")
	rootCmd.SetVersionTemplate("gosh version {{.Version}}\n")
}

func main() {
	os.Exit(run(os.Args[1:]))
}

// run is main's testable body: it sets cobra's args explicitly (rather
// than letting it read os.Args) so testscript can drive gosh as an
// in-process registered command.
func run(args []string) int {
	rootCmd.SetArgs(args)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return lastExitCode
}

var lastExitCode int

func runAll(args []string) error {
	signal.Ignore(syscall.SIGTTOU, syscall.SIGTTIN)

	r := interp.New()
	r.Opts.Interactive = interactive
	r.Opts.Monitor = interactive

	if command != "" {
		r.Env.ScriptName = "gosh"
		r.Env.Positional = args
		return runSource(r, strings.NewReader(command), "gosh -c")
	}

	if len(args) > 0 && !stdinFlag {
		r.Env.ScriptName = args[0]
		r.Env.Positional = args[1:]
		return runPath(r, args[0])
	}

	isTTY := term.IsTerminal(int(os.Stdin.Fd()))
	if interactive || (isTTY && !stdinFlag && len(args) == 0) {
		r.Opts.Interactive = true
		r.Opts.Monitor = true
		loadStartupFile(r)
		return runInteractive(r)
	}
	return runSource(r, os.Stdin, "")
}

func loadStartupFile(r *interp.Runner) {
	if noRC {
		return
	}
	path := rcFile
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return
		}
		path = filepath.Join(home, ".goshrc")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return
	}
	runSource(r, strings.NewReader(string(data)), path)
}

func runSource(r *interp.Runner, reader io.Reader, name string) error {
	data, err := io.ReadAll(reader)
	if err != nil {
		return err
	}
	p := syntax.NewParser(nil)
	prog, err := p.Parse(data, name)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		lastExitCode = 2
		return nil
	}
	lastExitCode = r.Run(prog)
	return nil
}

func runPath(r *interp.Runner, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return runSource(r, f, path)
}

// runInteractive drives the read-eval-print loop, persisting history to
// ~/.gosh_history via renameio's atomic rename-into-place so a crash
// mid-write never corrupts the file a concurrent shell might be reading.
func runInteractive(r *interp.Runner) error {
	sw := interp.NewSignalWatcher()
	go r.Watch(sw)
	defer sw.Stop()

	history := loadHistory()
	in := bufio.NewReader(os.Stdin)
	p := syntax.NewParser(nil)

	fmt.Fprint(os.Stdout, promptFor(r, false))
	for {
		line, err := in.ReadString('\n')
		if err != nil {
			if line == "" {
				break
			}
		}
		history = append(history, line)
		saveHistory(history)

		prog, perr := p.Parse([]byte(line), "")
		if perr != nil {
			fmt.Fprintln(os.Stderr, perr)
			fmt.Fprint(os.Stdout, promptFor(r, false))
			continue
		}
		lastExitCode = r.Run(prog)
		if err != nil {
			break
		}
		fmt.Fprint(os.Stdout, promptFor(r, false))
	}
	return nil
}

func promptFor(r *interp.Runner, continuation bool) string {
	if continuation {
		if ps2 := r.Env.Get("PS2").String(); ps2 != "" {
			return ps2
		}
		return "> "
	}
	if ps1 := r.Env.Get("PS1").String(); ps1 != "" {
		return ps1
	}
	return "$ "
}

func historyPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".gosh_history")
}

func loadHistory() []string {
	path := historyPath()
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	return strings.Split(string(data), "\n")
}

func saveHistory(lines []string) {
	path := historyPath()
	if path == "" {
		return
	}
	_ = renameio.WriteFile(path, []byte(strings.Join(lines, "")), 0600)
}
