package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"intent-bot/internal/bot"
	"intent-bot/internal/config"
	"intent-bot/internal/logger"
	"intent-bot/internal/notify"
	"intent-bot/internal/repository"
	"intent-bot/internal/service"
)

type appContext struct {
	configPath string
	debug      bool
}

// load reads the config and starts logging. requireToken is false for
// commands that never talk to Telegram.
func (a *appContext) load(requireToken bool) (config.Config, error) {
	cfg, err := config.Load(a.configPath)
	if err != nil && (requireToken || !errors.Is(err, config.ErrMissingToken)) {
		return cfg, fmt.Errorf("config: %w", err)
	}
	if err := logger.Init(logger.Config{Debug: cfg.Debug || a.debug, Dir: cfg.LogDir}); err != nil {
		return cfg, fmt.Errorf("logger: %w", err)
	}
	return cfg, nil
}

type RunCmd struct{}

func (c *RunCmd) Run(app *appContext) error {
	cfg, err := app.load(true)
	if err != nil {
		return err
	}
	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := repository.NewDB(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("db: %w", err)
	}
	sqlDB, err := db.DB()
	if err == nil {
		defer sqlDB.Close()
	}

	api, err := bot.NewAPI(cfg.TelegramToken)
	if err != nil {
		return err
	}
	logger.Info("bot authorized", "account", api.Self.UserName)

	center := notify.NewCenter(loc, bot.NewTransport(api))
	userRepo := repository.NewUserRepository(db)
	habitRepo := repository.NewHabitRepository(db)

	habitSvc := service.NewHabitService(habitRepo, center, service.Options{
		Cap:   cfg.NotificationCap,
		Title: cfg.NotificationTitle,
	})
	timerSvc := service.NewTimerService(center, habitSvc.Quota(), cfg.NotificationTitle)
	summarySvc := service.NewSummaryService(habitRepo)

	users, err := userRepo.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("list users: %w", err)
	}
	restored, err := habitSvc.Restore(ctx, users)
	if err != nil {
		return fmt.Errorf("restore reminders: %w", err)
	}
	logger.Info("reminders restored", "users", len(users), "notifications", restored)

	telegramBot := bot.New(api, userRepo, habitSvc, timerSvc, summarySvc, loc)

	if _, err := center.ScheduleInterval(cfg.ReportInterval, func() {
		jobCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := telegramBot.SendDailyReports(jobCtx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("daily digest", "err", err)
		}
	}); err != nil {
		return fmt.Errorf("schedule digest: %w", err)
	}
	center.Start()
	defer center.Stop()

	if cfg.MetricsAddr != "" {
		srv := serveMetrics(cfg.MetricsAddr)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	logger.Info("intent bot started", "cap", habitSvc.Quota().Cap(), "digest_every", cfg.ReportInterval)
	if err := telegramBot.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("bot stopped: %w", err)
	}
	logger.Info("shutdown complete")
	return nil
}

func serveMetrics(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		logger.Info("serving metrics", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server", "err", err)
		}
	}()
	return srv
}

type HabitsCmd struct {
	User int64 `help:"Only show habits of this Telegram user id."`
}

func (c *HabitsCmd) Run(app *appContext) error {
	cfg, err := app.load(false)
	if err != nil {
		return err
	}
	db, err := repository.NewDB(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("db: %w", err)
	}
	sqlDB, err := db.DB()
	if err == nil {
		defer sqlDB.Close()
	}

	ctx := context.Background()
	userRepo := repository.NewUserRepository(db)
	habitRepo := repository.NewHabitRepository(db)

	users, err := userRepo.ListAll(ctx)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "USER\tID\tTITLE\tDAYS\tTIMES\tREMINDERS\tSTATUS")
	for _, user := range users {
		if c.User != 0 && user.TelegramID != c.User {
			continue
		}
		habits, err := habitRepo.ListByUser(ctx, user.ID)
		if err != nil {
			return err
		}
		for _, h := range habits {
			times := make([]string, len(h.ReminderTimes))
			for i, t := range h.ReminderTimes {
				times[i] = t.String()
			}
			status := "ok"
			if !h.Consistent() {
				status = fmt.Sprintf("out of sync (%d of %d)", len(h.NotificationIDs), h.ExpectedNotifications())
			}
			reminders := "off"
			if h.IsReminderOn {
				reminders = fmt.Sprintf("%d", len(h.NotificationIDs))
			}
			fmt.Fprintf(w, "%d\t%d\t%s\t%s\t%s\t%s\t%s\n",
				user.TelegramID, h.ID, h.Title, service.Frequency(h), strings.Join(times, ","), reminders, status)
		}
	}
	return w.Flush()
}
