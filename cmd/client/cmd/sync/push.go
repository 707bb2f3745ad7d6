package sync

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"possync/cmd/client/cmd/output"
	"possync/cmd/client/cmd/types"
	"possync/internal/app/client"
)

var PushCmd = &cobra.Command{
	Use:   "push",
	Short: "Отправить неотправленные записи",
	Long: `Отправляет на сервер записи, созданные или измененные офлайн.
Подтвержденные сервером записи получают серверный _id и помечаются синхронизированными.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, err := types.App(cmd)
		if err != nil {
			return err
		}
		if !app.IsAuthenticated() {
			return client.ErrNoToken
		}

		results := app.PushDirty(cmd.Context())
		if types.JSONOutput {
			return output.JSON(os.Stdout, results)
		}

		if len(results) == 0 {
			fmt.Println("Нет неотправленных записей")
			return nil
		}

		failed := 0
		for _, r := range results {
			if r.Error != "" {
				failed++
				output.Fail("%-22s %s", r.Collection, r.Error)
				continue
			}
			fmt.Printf("  %-22s отправлено: %d, подтверждено: %d\n", r.Collection, r.Pushed, r.Confirmed)
		}
		if failed > 0 {
			output.Warn("Не удалось отправить %d коллекций, записи остались в очереди", failed)
			return nil
		}
		output.OK("Отправка завершена")
		return nil
	},
}
