package records

import (
	"fmt"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"possync/cmd/client/cmd/output"
	"possync/cmd/client/cmd/types"
	"possync/internal/app/client"
	"possync/internal/domain/record"
)

var (
	showDeleted bool
	onlyDirty   bool
)

var ListCmd = &cobra.Command{
	Use:   "list <collection>",
	Short: "Список записей коллекции",
	Long: `Выводит записи локальной коллекции. Удаленные записи скрыты,
пока не указан --deleted; --dirty оставляет только неотправленные.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := types.App(cmd)
		if err != nil {
			return err
		}

		collection, err := record.Parse(args[0])
		if err != nil {
			return err
		}

		recs, err := app.ListRecords(cmd.Context(), collection, client.RecordFilter{
			Deleted: showDeleted,
			Dirty:   onlyDirty,
		})
		if err != nil {
			return fmt.Errorf("ошибка получения списка записей: %w", err)
		}

		if types.JSONOutput {
			return output.JSON(os.Stdout, recs)
		}
		return printTable(collection, recs)
	},
}

func printTable(collection record.Collection, recs []*record.Record) error {
	if len(recs) == 0 {
		fmt.Printf("Коллекция %s пуста\n", collection)
		return nil
	}

	sort.Slice(recs, func(i, j int) bool {
		return recs[i].UpdatedAt.After(recs[j].UpdatedAt)
	})

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSERVER ID\tОБНОВЛЕНО\tСОСТОЯНИЕ\tНАЗВАНИЕ")
	for _, r := range recs {
		state := "synced"
		switch {
		case r.IsDeleted:
			state = "deleted"
		case !r.IsSynced:
			state = "dirty"
		}
		name := r.FieldString("name")
		if name == "" {
			name = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			r.ID, orDash(r.ServerID), r.UpdatedAt.Local().Format("2006-01-02 15:04:05"), state, name)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Printf("\nВсего: %d\n", len(recs))
	return nil
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func init() {
	ListCmd.Flags().BoolVar(&showDeleted, "deleted", false, "показывать удаленные записи")
	ListCmd.Flags().BoolVar(&onlyDirty, "dirty", false, "только неотправленные записи")
}
