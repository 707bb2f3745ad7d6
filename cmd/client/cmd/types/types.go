package types

import (
	"errors"

	"github.com/spf13/cobra"

	"possync/internal/app/client"
)

type contextKey string

// ClientAppKey - ключ, под которым root кладет *client.App в контекст команды
const ClientAppKey contextKey = "client_app"

var ErrNoApp = errors.New("приложение не инициализировано")

// App достает приложение из контекста команды.
func App(cmd *cobra.Command) (*client.App, error) {
	app, ok := cmd.Context().Value(ClientAppKey).(*client.App)
	if !ok || app == nil {
		return nil, ErrNoApp
	}
	return app, nil
}

// JSONOutput - глобальный флаг --json
var JSONOutput bool
