package records

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"possync/cmd/client/cmd/output"
	"possync/cmd/client/cmd/types"
	"possync/internal/domain/record"
)

var AddCmd = &cobra.Command{
	Use:   "add <collection> [json]",
	Short: "Создать запись офлайн",
	Long: `Создает запись с локальным идентификатором. Поля передаются JSON объектом
аргументом или через stdin. Запись уйдет на сервер командой "sync push".

Пример:
  possync records add customers '{"name":"Иван","phone":"+998901234567"}'`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := types.App(cmd)
		if err != nil {
			return err
		}

		collection, err := record.Parse(args[0])
		if err != nil {
			return err
		}

		var data []byte
		if len(args) == 2 {
			data = []byte(args[1])
		} else {
			if data, err = io.ReadAll(os.Stdin); err != nil {
				return fmt.Errorf("ошибка чтения stdin: %w", err)
			}
		}

		rec, err := app.AddRecord(cmd.Context(), collection, data)
		if err != nil {
			return fmt.Errorf("ошибка создания записи: %w", err)
		}

		if types.JSONOutput {
			return output.JSON(os.Stdout, rec)
		}
		output.OK("Запись создана: %s/%s", collection, rec.ID)
		return nil
	},
}
