package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"possync/cmd/client/cmd/output"
	"possync/cmd/client/cmd/types"
	"possync/internal/app/client"
)

var skipSync bool

var LoginCmd = &cobra.Command{
	Use:   "login",
	Short: "Войти на сервер синхронизации",
	Long: `Аутентификация продавца.

После входа токен сохраняется локально, затем выполняется первая синхронизация.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, err := types.App(cmd)
		if err != nil {
			return err
		}

		output.Header("Вход")
		fmt.Println()

		login, err := output.Prompt("Логин: ")
		if err != nil {
			return err
		}
		password, err := output.Password("Пароль: ")
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancel()

		if _, err := app.Login(ctx, login, password); err != nil {
			return fmt.Errorf("ошибка аутентификации: %w", err)
		}
		output.OK("Вход выполнен")

		if skipSync {
			return nil
		}

		fmt.Println("Синхронизация данных...")
		res := app.Sync(cmd.Context(), client.ModeIncremental)
		switch {
		case !res.Success:
			output.Warn("Синхронизация не выполнена: %s", res.Error)
			fmt.Println("Можно продолжать работу офлайн")
		case len(res.FailedCollections()) > 0:
			output.Warn("Синхронизация завершена с ошибками в %d коллекциях", len(res.FailedCollections()))
		default:
			output.OK("Получено записей: %d, удалено: %d", res.Summary.TotalUpdated, res.Summary.TotalDeleted)
		}
		return nil
	},
}

var LogoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Удалить сохраненный токен",
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, err := types.App(cmd)
		if err != nil {
			return err
		}
		if err := app.ClearToken(); err != nil {
			return err
		}
		output.OK("Токен удален")
		return nil
	},
}

func init() {
	LoginCmd.Flags().BoolVar(&skipSync, "no-sync", false, "не синхронизировать после входа")
}
