package records

import (
	"github.com/spf13/cobra"
)

// RecordsCmd - родительская команда для работы с локальными записями
var RecordsCmd = &cobra.Command{
	Use:     "records",
	Aliases: []string{"record"},
	Short:   "Локальные записи коллекций",
	Long: `Просмотр и создание записей в локальном хранилище терминала.

Коллекцию можно указать как по имени (productBatches), так и по ресурсу (product-batches).`,
}
