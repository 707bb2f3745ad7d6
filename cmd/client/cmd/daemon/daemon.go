package daemon

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/spf13/cobra"

	"possync/cmd/client/cmd/output"
	"possync/cmd/client/cmd/types"
	"possync/internal/app/client"
	"possync/internal/app/client/events"
	"possync/internal/app/client/scheduler"
)

var (
	interval time.Duration
	listen   string
)

var DaemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Фоновая синхронизация",
	Long: `Запускает планировщик синхронизации: сразу при старте, по интервалу,
после восстановления сети и по "фокусу" (SIGUSR1).

На адресе --listen доступны:
  /ws       - поток событий синхронизации для кассового UI
  /metrics  - метрики Prometheus
  /status   - состояние коллекций в JSON`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, err := types.App(cmd)
		if err != nil {
			return err
		}
		if !app.IsAuthenticated() {
			return client.ErrNoToken
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		log := app.Logger().With("component", "daemon")

		broadcaster := events.NewBroadcaster(log)
		defer broadcaster.Close()
		metrics := events.NewMetrics()
		defer app.Events().Subscribe(broadcaster.Handle)()
		defer app.Events().Subscribe(metrics.Handle)()

		addr := listen
		if addr == "" {
			addr = app.Config().EventsAddr
		}
		srv := &http.Server{
			Addr:              addr,
			Handler:           router(app, broadcaster, metrics),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("failed to serve events", "addr", addr, "error", err)
			}
		}()

		go app.Monitor().Run(ctx)

		focus := scheduler.NewSignalSource(log, syscall.SIGUSR1)
		go focus.Run(ctx)

		sched := app.NewScheduler(focus)
		if err := sched.Start(ctx, interval); err != nil {
			return err
		}

		output.OK("Фоновая синхронизация запущена, события на %s", addr)
		fmt.Println("Остановка: Ctrl+C")

		<-ctx.Done()
		sched.Stop()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warn("failed to shutdown events server", "error", err)
		}
		log.Info("daemon stopped")
		return nil
	},
}

func router(app *client.App, broadcaster *events.Broadcaster, metrics *events.Metrics) http.Handler {
	r := chi.NewRouter()
	r.Handle("/ws", broadcaster)
	r.Handle("/metrics", metrics.Handler())
	r.Get("/status", func(w http.ResponseWriter, r *http.Request) {
		st, err := app.Status(r.Context())
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = output.JSON(w, st)
	})
	return r
}

func init() {
	DaemonCmd.Flags().DurationVar(&interval, "interval", 0, "интервал синхронизации (по умолчанию SYNC_INTERVAL_SECONDS)")
	DaemonCmd.Flags().StringVar(&listen, "listen", "", "адрес для /ws и /metrics (по умолчанию EVENTS_ADDR)")
}
