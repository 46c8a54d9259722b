package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/alecthomas/kong"

	"stepsync/internal/app"
	"stepsync/internal/render"
)

// CLI is the root command line. `run` is the default command.
type CLI struct {
	Config  string           `short:"c" help:"Optional config file (JSON or YAML)." type:"path"`
	EnvFile string           `name:"env-file" help:"dotenv file loaded before reading the environment." default:".env"`
	Verbose bool             `short:"v" help:"Enable debug logging."`
	Version kong.VersionFlag `help:"Show version and exit."`

	Run     RunCmd     `cmd:"" default:"withargs" help:"Run the update loop until interrupted (default)."`
	Set     SetCmd     `cmd:"" help:"Push one step value and exit."`
	Login   LoginCmd   `cmd:"" help:"Store the account password in the OS keyring (read from stdin)."`
	Logout  LogoutCmd  `cmd:"" help:"Remove the account password from the OS keyring."`
	History HistoryCmd `cmd:"" help:"Show the most recent pushes."`
}

func (c *CLI) options() app.Options {
	return app.Options{
		ConfigPath: c.Config,
		EnvFile:    c.EnvFile,
		// an explicitly named env file must exist
		EnvRequired: c.EnvFile != ".env",
		Verbose:     c.Verbose,
	}
}

type RunCmd struct {
	DryRun bool   `name:"dry-run" help:"Render today's curve and exit without pushing."`
	Chart  string `help:"Dry-run chart format." enum:"text,html,png" default:"text"`
	Output string `short:"o" help:"Dry-run chart file (default: stdout for text, stepsync-plan.<ext> otherwise)." type:"path"`
}

func (r *RunCmd) Run(ctx context.Context, cli *CLI) error {
	if r.DryRun {
		f, err := render.ParseFormat(r.Chart)
		if err != nil {
			return err
		}
		return app.DryRun(cli.options(), os.Stdout, f, r.Output)
	}
	if err := app.Run(ctx, cli.options()); err != nil {
		return err
	}
	fmt.Fprintln(os.Stderr, "stepsync: shut down cleanly")
	return nil
}

type SetCmd struct {
	Steps int `arg:"" help:"Step count to push (0-98800)."`
}

func (s *SetCmd) Run(ctx context.Context, cli *CLI) error {
	return app.SetOnce(ctx, cli.options(), s.Steps, os.Stdout)
}

type LoginCmd struct {
	User string `required:"" help:"Account email."`
}

func (l *LoginCmd) Run(cli *CLI) error {
	fmt.Fprint(os.Stderr, "password: ")
	pw, err := readLine(os.Stdin)
	if err != nil {
		return err
	}
	service, err := app.Login(cli.options(), l.User, pw)
	if err != nil {
		return err
	}
	fmt.Printf("password for %s stored in keyring service %q\n", l.User, service)
	return nil
}

type LogoutCmd struct {
	User string `required:"" help:"Account email."`
}

func (l *LogoutCmd) Run(cli *CLI) error {
	service, err := app.Logout(cli.options(), l.User)
	if err != nil {
		return err
	}
	fmt.Printf("password for %s removed from keyring service %q\n", l.User, service)
	return nil
}

func readLine(r io.Reader) (string, error) {
	sc := bufio.NewScanner(r)
	if !sc.Scan() {
		if err := sc.Err(); err != nil {
			return "", err
		}
		return "", errors.New("no password on stdin")
	}
	return strings.TrimRight(sc.Text(), "\r"), nil
}

type HistoryCmd struct {
	Limit int `short:"n" help:"Number of records." default:"20"`
}

func (h *HistoryCmd) Run(ctx context.Context, cli *CLI) error {
	return app.History(ctx, cli.options(), h.Limit, os.Stdout)
}
