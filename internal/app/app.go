package app

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/SiamakSafari/stillhere-sub000/internal/config"
	"github.com/SiamakSafari/stillhere-sub000/internal/domain"
	"github.com/SiamakSafari/stillhere-sub000/internal/ledger"
	"github.com/SiamakSafari/stillhere-sub000/internal/notify"
	"github.com/SiamakSafari/stillhere-sub000/internal/scheduler"
	"github.com/SiamakSafari/stillhere-sub000/internal/store"
)

// App owns the daemon's long-lived pieces: store, scheduler, health server.
type App struct {
	cfg     config.Config
	log     *zap.Logger
	httpSrv *http.Server
	repo    store.Repo
	sched   *scheduler.Scheduler
}

// New validates config-level settings and prepares the health listener.
func New(cfg config.Config, log *zap.Logger) (*App, error) {
	if _, err := cfg.DedupLocation(); err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      mux,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	}

	return &App{cfg: cfg, log: log, httpSrv: srv}, nil
}

// Run opens the store, starts the scheduler, and blocks until a shutdown
// signal arrives.
func (a *App) Run(ctx context.Context) error {
	a.log.Info("starting stillhered",
		zap.String("db", a.cfg.DBPath),
		zap.String("http", a.cfg.HTTPAddr),
		zap.Int("reminder_hours", a.cfg.ReminderThresholdHours),
		zap.Int("alert_hours", a.cfg.AlertThresholdHours),
	)

	repo, err := store.OpenSQLite(ctx, a.cfg.DBPath)
	if err != nil {
		a.log.Error("open sqlite failed", zap.Error(err))
		return err
	}
	a.repo = repo
	a.log.Info("sqlite ready")

	dayLoc, err := a.cfg.DedupLocation()
	if err != nil {
		return err
	}

	email := notify.NewSendGridSender(a.cfg.SendGridAPIKey, a.cfg.FromEmail, a.log)
	sms := notify.NewTwilioSender(a.cfg.TwilioAccountSID, a.cfg.TwilioAuthToken, a.cfg.TwilioPhoneNumber, a.log)
	push := notify.NewWebPushSender(repo, a.cfg.VAPIDPublicKey, a.cfg.VAPIDPrivateKey, a.cfg.VAPIDSubject, a.cfg.AppURL, a.log)
	dispatch := notify.NewDispatcher(email, sms, a.log)

	a.sched = scheduler.New(repo, ledger.NewMemory(), dispatch, push, email, a.log, scheduler.Options{
		Thresholds: domain.Thresholds{
			ReminderHours: float64(a.cfg.ReminderThresholdHours),
			AlertHours:    float64(a.cfg.AlertThresholdHours),
		},
		ActivityGrace: a.cfg.ActivityGrace(),
		Retention:     time.Duration(a.cfg.MaxCheckInHistoryDays) * 24 * time.Hour,
		DayLocation:   dayLoc,
	})

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.sched.Start(ctx); err != nil {
		return err
	}

	go func() {
		if err := a.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Error("http server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	a.log.Info("shutdown signal received")

	a.sched.Stop()

	shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	err = a.httpSrv.Shutdown(shCtx)
	cancel()
	if err != nil {
		a.log.Warn("http server shutdown error", zap.Error(err))
	}
	if a.repo != nil {
		_ = a.repo.Close()
	}
	return nil
}
