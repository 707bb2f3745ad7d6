package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"possync/cmd/client/cmd/auth"
	"possync/cmd/client/cmd/daemon"
	"possync/cmd/client/cmd/output"
	"possync/cmd/client/cmd/records"
	"possync/cmd/client/cmd/sync"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Проверить настройку терминала",
	Long: `Команда init показывает, где лежат локальные данные терминала,
и проверяет соединение с сервером синхронизации.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		output.Header("Инициализация possync")
		fmt.Printf("Каталог:       %s\n", cfg.ConfigDir)
		fmt.Printf("База записей:  %s\n", cfg.DataPath)
		fmt.Printf("Метки:         %s\n", cfg.KVPath)
		if cfg.RedisAddr != "" {
			fmt.Printf("Redis:         %s\n", cfg.RedisAddr)
		}
		fmt.Printf("Сервер:        %s\n", cfg.BaseURL())
		fmt.Println()

		ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
		defer cancel()
		if err := app.CheckConnection(ctx); err != nil {
			output.Warn("Сервер недоступен: %v", err)
			fmt.Println("Терминал работает офлайн, синхронизация продолжится при появлении сети.")
		} else {
			output.OK("Соединение с сервером установлено")
		}

		fmt.Println()
		fmt.Println("Что дальше:")
		fmt.Println("1. Зарегистрируйтесь: possync auth register")
		fmt.Println("2. Войдите:           possync auth login")
		fmt.Println("3. Синхронизируйте:   possync sync --full")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)

	rootCmd.AddCommand(auth.AuthCmd)
	auth.AuthCmd.AddCommand(auth.RegisterCmd)
	auth.AuthCmd.AddCommand(auth.LoginCmd)
	auth.AuthCmd.AddCommand(auth.LogoutCmd)
	auth.AuthCmd.AddCommand(auth.TokenCmd)

	rootCmd.AddCommand(records.RecordsCmd)
	records.RecordsCmd.AddCommand(records.AddCmd)
	records.RecordsCmd.AddCommand(records.ListCmd)

	rootCmd.AddCommand(sync.SyncCmd)
	sync.SyncCmd.AddCommand(sync.StatusCmd)
	sync.SyncCmd.AddCommand(sync.ResetCmd)
	sync.SyncCmd.AddCommand(sync.PushCmd)

	rootCmd.AddCommand(daemon.DaemonCmd)
}
