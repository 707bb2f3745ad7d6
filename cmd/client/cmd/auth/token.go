package auth

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"possync/cmd/client/cmd/output"
	"possync/cmd/client/cmd/types"
	"possync/internal/app/client"
)

var TokenCmd = &cobra.Command{
	Use:   "token [value]",
	Short: "Показать или задать токен доступа",
	Long: `Без аргумента печатает сохраненный токен.
С аргументом сохраняет переданный токен, например выданный администратором.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := types.App(cmd)
		if err != nil {
			return err
		}

		if len(args) == 1 {
			if err := app.SaveToken(args[0]); err != nil {
				return fmt.Errorf("ошибка сохранения токена: %w", err)
			}
			output.OK("Токен сохранен")
			return nil
		}

		token, err := app.GetToken()
		if errors.Is(err, client.ErrNoToken) {
			output.Warn("Токен не задан. Выполните: possync auth login")
			return nil
		}
		if err != nil {
			return err
		}
		fmt.Println(token)
		return nil
	},
}
