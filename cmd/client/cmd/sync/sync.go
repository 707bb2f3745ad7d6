package sync

import (
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"possync/cmd/client/cmd/output"
	"possync/cmd/client/cmd/types"
	"possync/internal/app/client"
	"possync/internal/domain/record"
)

var (
	fullSync bool
	// читается в root через Lookup("parallel")
	parallel bool
)

var SyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Синхронизировать коллекции с сервером",
	Long: `Подтягивает изменения всех коллекций с сервера.

По умолчанию синхронизация инкрементальная: запрашиваются только изменения
после последней метки каждой коллекции. --full забирает коллекции целиком
и сбрасывает метки и кэш запросов.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, err := types.App(cmd)
		if err != nil {
			return err
		}

		if !app.IsAuthenticated() {
			return client.ErrNoToken
		}

		mode := client.ModeIncremental
		if fullSync {
			mode = client.ModeFull
		}

		if !types.JSONOutput {
			output.Header("Синхронизация (%s)", mode)
		}
		res := app.Sync(cmd.Context(), mode)

		if types.JSONOutput {
			return output.JSON(os.Stdout, res)
		}
		return printResult(res)
	},
}

func printResult(res *client.SyncResult) error {
	if !res.Success {
		return fmt.Errorf("синхронизация не выполнена: %s", res.Error)
	}

	names := make([]string, 0, len(res.Results))
	for c := range res.Results {
		names = append(names, string(c))
	}
	sort.Strings(names)

	for _, name := range names {
		r := res.Results[record.Collection(name)]
		if r.Success {
			fmt.Printf("  %-22s +%d -%d\n", name, r.UpdatedCount, r.DeletedCount)
		} else {
			output.Fail("%-22s %s", name, r.Error)
		}
	}

	fmt.Println()
	fmt.Printf("Время выполнения: %v\n", res.Duration.Round(time.Millisecond))
	fmt.Printf("Обновлено: %d, удалено: %d\n", res.Summary.TotalUpdated, res.Summary.TotalDeleted)

	if failed := res.FailedCollections(); len(failed) > 0 {
		output.Warn("Коллекций с ошибками: %d, они повторятся при следующей синхронизации", len(failed))
		return nil
	}
	output.OK("Синхронизация завершена")
	return nil
}

func init() {
	SyncCmd.Flags().BoolVar(&fullSync, "full", false, "полная синхронизация")
	SyncCmd.Flags().BoolVar(&parallel, "parallel", false, "синхронизировать коллекции параллельно")
}
