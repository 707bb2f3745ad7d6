package sync

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"possync/cmd/client/cmd/output"
	"possync/cmd/client/cmd/types"
)

const timeFormat = "2006-01-02 15:04:05"

var StatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Показать статус синхронизации",
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, err := types.App(cmd)
		if err != nil {
			return err
		}

		st, err := app.Status(cmd.Context())
		if err != nil {
			return err
		}
		if types.JSONOutput {
			return output.JSON(os.Stdout, st)
		}

		output.Header("Статус синхронизации")

		fmt.Println("📚 Коллекции:")
		for _, c := range st.Collections {
			last := "никогда"
			if c.LastSync != nil {
				last = c.LastSync.Local().Format(timeFormat)
			}
			fmt.Printf("  %-22s записей: %-6d неотправлено: %-4d метка: %s\n", c.Collection, c.Total, c.Dirty, last)
		}

		// счетчики живут в памяти процесса, у daemon они содержательнее
		if st.Stats.TotalSyncs > 0 {
			fmt.Println()
			fmt.Println("📊 Статистика:")
			fmt.Printf("  Всего синхронизаций: %d\n", st.Stats.TotalSyncs)
			fmt.Printf("  С ошибками: %d\n", st.Stats.TotalErrors)
			fmt.Printf("  Среднее время: %.2f сек\n", st.Stats.AvgSyncDuration)
		}

		fmt.Println()
		fmt.Print("🌐 Соединение с сервером: ")
		ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
		defer cancel()
		if err := app.CheckConnection(ctx); err != nil {
			output.Fail("%v", err)
		} else {
			output.OK("OK")
		}

		fmt.Print("🔐 Аутентификация: ")
		if st.Authenticated {
			output.OK("выполнена")
		} else {
			output.Fail("требуется вход")
		}
		return nil
	},
}

var ResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Сбросить метки синхронизации",
	Long:  `Сбрасывает метки всех коллекций. Следующая синхронизация заберет данные целиком.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, err := types.App(cmd)
		if err != nil {
			return err
		}
		app.ResetSync(cmd.Context())
		output.OK("Метки синхронизации сброшены")
		return nil
	},
}
