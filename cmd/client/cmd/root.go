package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/exp/slog"

	"possync/cmd/client/cmd/output"
	"possync/cmd/client/cmd/types"
	"possync/internal/app/client"
	"possync/internal/app/client/config"
	"possync/internal/utils/logger"
)

var (
	cfg       *config.Config
	log       *slog.Logger
	app       *client.App
	logCloser io.Closer
	debug     bool
	serverURL string
)

var rootCmd = &cobra.Command{
	Use:   "possync",
	Short: "possync - офлайн синхронизация кассового терминала",
	Long: `possync держит локальную копию коллекций магазина (клиенты, товары,
заказы, поставки...) и подтягивает изменения с сервера инкрементально.

Терминал продолжает работать без сети: новые записи копятся локально
и уходят на сервер командой "sync push".`,
	PersistentPreRunE:  setupApp,
	PersistentPostRunE: closeApp,
	SilenceUsage:       true,
	SilenceErrors:      true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		output.Fail("Ошибка: %v", err)
		os.Exit(1)
	}
}

func setupApp(cmd *cobra.Command, _ []string) error {
	output.Setup()

	var err error
	cfg, err = config.Load()
	if err != nil {
		return fmt.Errorf("ошибка загрузки конфигурации: %w", err)
	}

	// Переопределяем настройки из флагов командной строки
	if serverURL != "" {
		cfg.ServerAddress = serverURL
	}
	if f := cmd.Flags().Lookup("parallel"); f != nil && f.Changed {
		cfg.Sync.Parallel = f.Value.String() == "true"
	}

	env := cfg.Env
	if debug {
		env = config.EnvDev
	}
	if cfg.LogFile != "" {
		log, logCloser = logger.NewFile(env, cfg.LogFile)
	} else {
		log = logger.NewWithWriter(env, os.Stderr)
	}

	app, err = client.New(cmd.Context(), cfg, log)
	if err != nil {
		return fmt.Errorf("ошибка инициализации приложения: %w", err)
	}

	cmd.SetContext(context.WithValue(cmd.Context(), types.ClientAppKey, app))
	return nil
}

func closeApp(_ *cobra.Command, _ []string) error {
	if app != nil {
		if err := app.Close(); err != nil {
			log.Warn("failed to close app", "error", err)
		}
	}
	if logCloser != nil {
		return logCloser.Close()
	}
	return nil
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "включить отладочный режим")
	rootCmd.PersistentFlags().BoolVar(&types.JSONOutput, "json", false, "вывод в формате JSON")
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "адрес сервера синхронизации (host:port)")
}
