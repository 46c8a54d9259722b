package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"stepsync/internal/actuator"
	"stepsync/internal/config"
	"stepsync/internal/credentials"
	"stepsync/internal/metrics"
	"stepsync/internal/opsserver"
	rtsup "stepsync/internal/runtime/supervisor"
	"stepsync/internal/scheduler"
	"stepsync/internal/storage"
	logx "stepsync/pkg/logx"
	"stepsync/pkg/systemd"
)

// supervisorStopTimeout is how long Stop waits for tasks to return. It
// exceeds scheduler.HistoryTimeout so the final history append completes.
const supervisorStopTimeout = 3 * time.Second

// Options are the process-level inputs shared by every command.
type Options struct {
	ConfigPath string
	// EnvFile is loaded before anything reads the environment.
	EnvFile     string
	EnvRequired bool
	Verbose     bool
}

// App is the long-running daemon: one scheduler plus the ambient services
// around it.
type App struct {
	opts Options

	cfgm *config.Manager
	set  config.Settings

	log  logx.Logger
	logs *logx.Service

	store storage.Store
	rec   *metrics.PrometheusRecorder
	sched *scheduler.Scheduler
	ops   *opsserver.Service
	sd    *systemd.Notifier
	sup   *rtsup.Supervisor

	readyOnce sync.Once
	started   time.Time
}

// loadConfig loads .env, then the config file with the environment overlay.
func loadConfig(opts Options) (*config.Manager, *config.Config, config.Settings, error) {
	if err := config.LoadEnvFile(opts.EnvFile, opts.EnvRequired); err != nil {
		return nil, nil, config.Settings{}, err
	}
	cfgm := config.NewManager(opts.ConfigPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, nil, config.Settings{}, err
	}
	set, err := cfg.Resolve()
	if err != nil {
		return nil, nil, config.Settings{}, err
	}
	return cfgm, cfg, set, nil
}

// New loads configuration and credentials and builds every component. Any
// error here is a configuration error and nothing has been started.
func New(opts Options) (*App, error) {
	cfgm, cfg, set, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}

	sender, err := newLogSender(cfg)
	if err != nil {
		return nil, err
	}
	logs, log := logx.New(mapLogConfig(cfg, opts.Verbose), sender)
	cfgm.SetLogger(log.With(logx.String("comp", "config")))

	fail := func(err error) (*App, error) {
		_ = logs.Close()
		return nil, err
	}

	creds, err := credentials.Source{
		Getenv:     os.Getenv,
		UseKeyring: cfg.Credentials.Keyring,
		Service:    cfg.Credentials.KeyringService,
	}.Load()
	if err != nil {
		return fail(err)
	}

	var store storage.Store
	if sc, ok, err := mapStorageConfig(cfg); err != nil {
		return fail(err)
	} else if ok {
		store, err = storage.Open(sc, log.With(logx.String("comp", "storage")))
		if err != nil {
			return fail(fmt.Errorf("open storage: %w", err))
		}
	}

	rec := metrics.NewPrometheusRecorder(prometheus.NewRegistry())
	client := actuator.New(set.ActuatorURL,
		actuator.WithTimeout(set.ActuatorTimeout),
		actuator.WithLogger(log.With(logx.String("comp", "actuator"))),
	)

	a := &App{
		opts:  opts,
		cfgm:  cfgm,
		set:   set,
		log:   log,
		logs:  logs,
		store: store,
		rec:   rec,
		sd:    systemd.NewNotifier(log),
	}

	sopts := []scheduler.Option{
		scheduler.WithLogger(log),
		scheduler.WithRecorder(rec),
		scheduler.WithTickHook(a.onTick),
	}
	if store != nil {
		sopts = append(sopts, scheduler.WithHistory(store))
	}
	a.sched, err = scheduler.New(scheduler.Config{
		BaseTarget:  set.BaseTarget,
		Delta:       set.Delta,
		Interval:    set.Interval,
		Schedule:    set.Schedule,
		Location:    set.Location,
		Credentials: creds,
	}, client, sopts...)
	if err != nil {
		if store != nil {
			_ = store.Close()
		}
		return fail(err)
	}

	opsCfg, err := mapOpsConfig(cfg)
	if err != nil {
		if store != nil {
			_ = store.Close()
		}
		return fail(err)
	}
	a.ops = opsserver.New(opsCfg, opsserver.Handlers{
		Metrics: rec.HTTPHandler(),
		Status:  func() any { return a.Status() },
		Health:  a.health,
	}, log)

	return a, nil
}

func (a *App) Logger() logx.Logger { return a.log }

// Done is closed when the app context ends (stop or fatal error).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		return nil
	}
	return a.sup.Done()
}

// Err is the first fatal error, if any.
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

// Status is served on /status.
type Status struct {
	Config     string             `json:"config,omitempty"`
	Scheduler  scheduler.Snapshot `json:"scheduler"`
	Supervisor rtsup.Snapshot     `json:"supervisor"`
}

func (a *App) Status() Status {
	st := Status{Config: a.cfgm.Path(), Scheduler: a.sched.Snapshot()}
	if a.sup != nil {
		st.Supervisor = a.sup.Snapshot()
	}
	return st
}

func (a *App) health() error {
	if err := a.Err(); err != nil {
		return err
	}
	if a.sched.State() == scheduler.StateStopped {
		return errors.New("scheduler stopped")
	}
	return nil
}

// liveness fails once the scheduler has gone longer than one interval plus
// a worst-case push without starting a tick.
func (a *App) liveness() error {
	if err := a.health(); err != nil {
		return err
	}
	last := a.sched.Snapshot().LastTick
	if last.IsZero() {
		last = a.started
	}
	limit := a.set.Interval + a.set.ActuatorTimeout + scheduler.HistoryTimeout + time.Minute
	if age := time.Since(last); age > limit {
		return fmt.Errorf("scheduler stalled: last tick %s ago (limit %s)", age.Round(time.Second), limit)
	}
	return nil
}

// onTick runs on the scheduler goroutine after each tick.
func (a *App) onTick(sn scheduler.Snapshot) {
	a.readyOnce.Do(func() {
		if a.sd.Ready() {
			a.log.Debug("systemd notified ready")
		}
	})
	last := "none"
	if sn.LastPushed != nil {
		last = fmt.Sprint(*sn.LastPushed)
	}
	a.sd.Status(fmt.Sprintf("target=%d value=%d pushed=%s next=%s",
		sn.Target, sn.CurveValue, last, sn.NextTick.Format(time.TimeOnly)))
}

func (a *App) Start(ctx context.Context) error {
	if a.sup != nil {
		return errors.New("app already started")
	}
	a.sup = rtsup.New(ctx,
		rtsup.WithLogger(a.log.With(logx.String("comp", "supervisor"))),
		rtsup.WithCancelOnError(true),
	)
	c := a.sup.Context()

	a.ops.Start(c)
	a.sup.Go("scheduler", a.sched.Run)
	a.started = time.Now()
	a.sup.Go("systemd.watchdog", func(c context.Context) error { return a.sd.Watchdog(c, a.liveness) })

	sub := a.cfgm.Subscribe(4)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		a.reloadLoop(c, sub)
	})
	a.sup.GoRestart("config.watch", time.Second, 30*time.Second, a.cfgm.Watch)

	a.log.Info("stepsync started",
		logx.String("config", a.cfgm.Path()),
		logx.String("api_url", a.set.ActuatorURL),
		logx.Bool("history", a.store != nil),
	)
	return nil
}

func (a *App) reloadLoop(ctx context.Context, sub <-chan *config.Config) {
	applied := a.cfgm.Get()
	for {
		select {
		case <-ctx.Done():
			return
		case next, ok := <-sub:
			if !ok {
				return
			}
			ch := config.SummarizeChange(applied, next)
			applied = next
			if ch.Empty() {
				a.log.Debug("config reload received, no effective changes")
				continue
			}

			a.logs.Apply(mapLogConfig(next, a.opts.Verbose))
			if oc, err := mapOpsConfig(next); err != nil {
				a.log.Warn("invalid ops config; keeping previous", logx.Err(err))
			} else {
				a.ops.Apply(ctx, oc)
			}

			if len(ch.RestartRequired) > 0 {
				a.log.Warn("config changed; restart required for changes to take effect",
					logx.String("sections", strings.Join(ch.RestartRequired, ",")))
			}
			fields := append([]logx.Field{logx.String("applied", strings.Join(ch.Applied, ","))}, ch.Attrs...)
			a.log.Info("config reloaded", fields...)
		}
	}
}

// Stop shuts everything down within ctx. It is safe to call after a fatal
// error has already canceled the app context.
func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		return nil
	}
	a.log.Info("shutting down", logx.String("reason", string(reason)))
	a.sd.Stopping()
	a.sup.Cancel()

	// Each step is bounded so one component can't stall the whole stop.
	step := func(name string, limit time.Duration, fn func(context.Context) error) {
		sctx, cancel := context.WithTimeout(ctx, limit)
		defer cancel()
		start := time.Now()
		if err := fn(sctx); err != nil && !errors.Is(err, context.Canceled) {
			a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
		}
		a.log.Debug("stop step end", logx.String("name", name), logx.Duration("took", time.Since(start)))
	}

	step("ops", 2*time.Second, func(c context.Context) error { a.ops.Stop(c); return nil })
	drained := true
	step("supervisor", supervisorStopTimeout, func(c context.Context) error {
		if err := a.sup.Wait(c); errors.Is(err, context.DeadlineExceeded) {
			drained = false
			return err
		}
		return nil
	})
	// A tick still running may be appending its record; leave the store
	// open rather than close it underneath the scheduler.
	step("storage", time.Second, func(context.Context) error {
		if a.store == nil {
			return nil
		}
		if !drained {
			return errors.New("tasks still running, storage left open")
		}
		return a.store.Close()
	})

	sn := a.sched.Snapshot()
	a.log.Info("stopped",
		logx.Uint64("pushes", sn.Pushes),
		logx.Uint64("failures", sn.Failures),
		logx.Uint64("skips", sn.Skips),
	)
	return a.logs.Close()
}

// Run starts the daemon and blocks until ctx is canceled (clean exit) or a
// component fails (the error is returned).
func Run(ctx context.Context, opts Options) error {
	a, err := New(opts)
	if err != nil {
		return err
	}
	if err := a.Start(ctx); err != nil {
		return err
	}

	<-a.Done()
	reason := StopSignal
	if a.Err() != nil {
		reason = StopFatalError
	}

	stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 8*time.Second)
	defer cancel()
	_ = a.Stop(stopCtx, reason)
	return a.Err()
}
