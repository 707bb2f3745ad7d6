package auth

import (
	"github.com/spf13/cobra"
)

// AuthCmd - родительская команда для операций с учетной записью продавца
var AuthCmd = &cobra.Command{
	Use:   "auth",
	Short: "Управление учетной записью продавца",
	Long:  `Регистрация, вход, выход и работа с токеном доступа.`,
}
