package main

import (
	"context"
	"strings"
	"testing"

	"github.com/alecthomas/kong"
	"github.com/stretchr/testify/require"
)

func parse(t *testing.T, args ...string) (*CLI, *kong.Context) {
	t.Helper()
	var cli CLI
	p, err := kong.New(&cli, parserOptions(context.Background())...)
	require.NoError(t, err)
	kctx, err := p.Parse(args)
	require.NoError(t, err)
	return &cli, kctx
}

func TestRunIsDefaultCommand(t *testing.T) {
	cli, kctx := parse(t)
	require.Equal(t, "run", kctx.Command())
	require.False(t, cli.Run.DryRun)
	require.Equal(t, ".env", cli.EnvFile)
	require.False(t, cli.options().EnvRequired)
}

func TestDryRunFlags(t *testing.T) {
	cli, kctx := parse(t, "--dry-run", "--chart", "png", "-o", "plan.png")
	require.Equal(t, "run", kctx.Command())
	require.True(t, cli.Run.DryRun)
	require.Equal(t, "png", cli.Run.Chart)
	require.True(t, strings.HasSuffix(cli.Run.Output, "plan.png"))
}

func TestSetAndHistory(t *testing.T) {
	cli, kctx := parse(t, "--env-file", "prod.env", "set", "4200")
	require.Equal(t, "set <steps>", kctx.Command())
	require.Equal(t, 4200, cli.Set.Steps)
	require.True(t, cli.options().EnvRequired)

	cli, kctx = parse(t, "history", "-n", "5")
	require.Equal(t, "history", kctx.Command())
	require.Equal(t, 5, cli.History.Limit)
}

func TestLoginLogoutRequireUser(t *testing.T) {
	cli, kctx := parse(t, "logout", "--user", "walker@example.com")
	require.Equal(t, "logout", kctx.Command())
	require.Equal(t, "walker@example.com", cli.Logout.User)

	var c CLI
	p, err := kong.New(&c, parserOptions(context.Background())...)
	require.NoError(t, err)
	_, err = p.Parse([]string{"logout"})
	require.Error(t, err)
}

func TestChartEnumIsEnforced(t *testing.T) {
	var cli CLI
	p, err := kong.New(&cli, parserOptions(context.Background())...)
	require.NoError(t, err)
	_, err = p.Parse([]string{"run", "--dry-run", "--chart", "svg"})
	require.Error(t, err)
}

func TestReadLine(t *testing.T) {
	pw, err := readLine(strings.NewReader("s3cret\r\nignored\n"))
	require.NoError(t, err)
	require.Equal(t, "s3cret", pw)

	_, err = readLine(strings.NewReader(""))
	require.Error(t, err)
}
