package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"

	"stepsync/internal/actuator"
	"stepsync/internal/config"
	"stepsync/internal/credentials"
	"stepsync/internal/curve"
	"stepsync/internal/render"
	"stepsync/internal/storage"
	logx "stepsync/pkg/logx"
)

// ErrHistoryDisabled is returned by History when no storage is configured.
var ErrHistoryDisabled = errors.New("push history is disabled (configure storage.driver)")

func commandLogger(cfg *config.Config, verbose bool) logx.Logger {
	level := cfg.Logging.Level
	if verbose {
		level = "debug"
	}
	return logx.NewConsole(level)
}

// DryRun builds today's curve and renders it without touching the network.
// Text charts go to out unless output is set; HTML and PNG charts are always
// written to a file (output, or stepsync-plan.<ext>).
func DryRun(opts Options, out io.Writer, format render.Format, output string) error {
	_, _, set, err := loadConfig(opts)
	if err != nil {
		return err
	}

	src := rand.NewPCG(uint64(time.Now().UnixNano()), rand.Uint64())
	target := curve.SampleDailyTarget(set.BaseTarget, set.Delta, src)
	c, err := curve.Build(target, set.Delta, set.Schedule, src)
	if err != nil {
		return err
	}
	c = c.In(set.Location)

	day := time.Now().In(set.Location).Format(time.DateOnly)
	if err := writePlan(out, day, set, c); err != nil {
		return err
	}

	if format != render.FormatText && output == "" {
		output = "stepsync-plan." + string(format)
	}
	if output == "" {
		_, err := fmt.Fprintln(out)
		if err != nil {
			return err
		}
		return render.Text(out, c, render.DefaultResolution)
	}

	f, err := os.Create(output)
	if err != nil {
		return err
	}
	if err := render.Write(f, format, c, "stepsync plan "+day); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	_, err = fmt.Fprintf(out, "\nchart written to %s\n", output)
	return err
}

func writePlan(out io.Writer, day string, set config.Settings, c *curve.Curve) error {
	plan, err := c.Plan(set.Schedule)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "date\t%s\n", day)
	fmt.Fprintf(tw, "base\t%d (delta %.2f)\n", set.BaseTarget, set.Delta)
	fmt.Fprintf(tw, "target\t%d\n", c.Target())
	fmt.Fprintf(tw, "interval\t%s\n\n", set.Interval)
	fmt.Fprintln(tw, "TIME\tFRACTION\tSTEPS")
	for _, p := range plan {
		fmt.Fprintf(tw, "%s\t%.2f\t%d\n", p.Anchor.Clock(), p.Anchor.Fraction, p.Value)
	}
	return tw.Flush()
}

// SetOnce pushes step a single time and prints the endpoint response. A
// rejected or failed push is returned as an error.
func SetOnce(ctx context.Context, opts Options, step int, out io.Writer) error {
	if err := actuator.ValidateStep(step); err != nil {
		return err
	}
	_, cfg, set, err := loadConfig(opts)
	if err != nil {
		return err
	}
	log := commandLogger(cfg, opts.Verbose)

	creds, err := credentials.Source{
		Getenv:     os.Getenv,
		UseKeyring: cfg.Credentials.Keyring,
		Service:    cfg.Credentials.KeyringService,
	}.Load()
	if err != nil {
		return err
	}

	client := actuator.New(set.ActuatorURL,
		actuator.WithTimeout(set.ActuatorTimeout),
		actuator.WithLogger(log.With(logx.String("comp", "actuator"))),
	)
	started := time.Now()
	ok, resp := client.Push(ctx, creds, step)
	took := time.Since(started)

	if sc, enabled, err := mapStorageConfig(cfg); err != nil {
		log.Warn("push history unavailable", logx.Err(err))
	} else if enabled {
		recordOnce(ctx, sc, log, storage.PushRecord{
			ID:     uuid.NewString(),
			At:     started,
			Step:   step,
			OK:     ok,
			Status: resp.Status,
			Code:   resp.Code,
			Info:   resp.String(),
			Error:  errString(resp.Err()),
			TookMS: took.Milliseconds(),
		})
	}

	if _, err := fmt.Fprintln(out, resp.String()); err != nil {
		return err
	}
	if !ok {
		return resp.Err()
	}
	log.Info("step updated", logx.Int("step", step), logx.Duration("took", took))
	return nil
}

func recordOnce(ctx context.Context, sc storage.Config, log logx.Logger, r storage.PushRecord) {
	st, err := storage.Open(sc, log)
	if err != nil {
		log.Warn("push history unavailable", logx.Err(err))
		return
	}
	defer st.Close()
	if err := st.AppendPush(ctx, r); err != nil {
		log.Warn("push history append failed", logx.Err(err))
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// History prints the newest limit push records.
func History(ctx context.Context, opts Options, limit int, out io.Writer) error {
	_, cfg, _, err := loadConfig(opts)
	if err != nil {
		return err
	}
	sc, enabled, err := mapStorageConfig(cfg)
	if err != nil {
		return err
	}
	if !enabled {
		return ErrHistoryDisabled
	}
	st, err := storage.Open(sc, commandLogger(cfg, opts.Verbose))
	if err != nil {
		return err
	}
	defer st.Close()

	recs, err := st.RecentPushes(ctx, limit)
	if err != nil {
		return err
	}
	if len(recs) == 0 {
		_, err := fmt.Fprintln(out, "no pushes recorded")
		return err
	}

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tSTEP\tRESULT\tSTATUS\tTOOK\tDETAIL")
	for _, r := range recs {
		result, detail := "ok", r.Info
		if !r.OK {
			result, detail = "failed", r.Error
		}
		fmt.Fprintf(tw, "%s\t%d\t%s\t%d\t%dms\t%s\n",
			r.At.Local().Format(time.DateTime), r.Step, result, r.Status, r.TookMS, oneLine(detail, 80))
	}
	return tw.Flush()
}

func oneLine(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if r := []rune(s); len(r) > n {
		return string(r[:n-1]) + "…"
	}
	return s
}

func keyringService(opts Options) (string, error) {
	_, cfg, _, err := loadConfig(opts)
	if err != nil {
		return "", err
	}
	if service := strings.TrimSpace(cfg.Credentials.KeyringService); service != "" {
		return service, nil
	}
	return credentials.DefaultService, nil
}

// Login stores password for user in the OS keyring under the configured
// service name.
func Login(opts Options, user, password string) (string, error) {
	service, err := keyringService(opts)
	if err != nil {
		return "", err
	}
	if err := credentials.StorePassword(service, user, password); err != nil {
		return "", err
	}
	return service, nil
}

// Logout deletes the stored password for user. Logging out twice is not an
// error.
func Logout(opts Options, user string) (string, error) {
	service, err := keyringService(opts)
	if err != nil {
		return "", err
	}
	if err := credentials.DeletePassword(service, user); err != nil {
		return "", err
	}
	return service, nil
}
