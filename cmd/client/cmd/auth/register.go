package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"possync/cmd/client/cmd/output"
	"possync/cmd/client/cmd/types"
	"possync/internal/domain/seller"
)

var RegisterCmd = &cobra.Command{
	Use:   "register",
	Short: "Зарегистрировать продавца",
	Long: `Регистрация продавца на сервере синхронизации.

Все терминалы одного продавца видят одни и те же коллекции.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, err := types.App(cmd)
		if err != nil {
			return err
		}

		output.Header("Регистрация продавца")
		fmt.Println()

		login, err := output.Prompt("Логин: ")
		if err != nil {
			return err
		}
		password, err := output.Password("Пароль: ")
		if err != nil {
			return err
		}
		confirm, err := output.Password("Повторите пароль: ")
		if err != nil {
			return err
		}
		if password != confirm {
			return fmt.Errorf("пароли не совпадают")
		}

		// те же правила, что проверит сервер
		if err := seller.NewValidator().ValidateRegister(login, password); err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancel()

		id, err := app.Register(ctx, login, password)
		if err != nil {
			return fmt.Errorf("ошибка регистрации: %w", err)
		}

		fmt.Println()
		output.OK("Продавец зарегистрирован (%s)", id)
		fmt.Println("Теперь войдите: possync auth login")
		return nil
	},
}
