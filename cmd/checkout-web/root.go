package main

import (
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	serve := newServeCmd()

	cmd := &cobra.Command{
		Use:   "checkout-web",
		Short: "Print Home checkout wizard backend-for-frontend",
		Long: `checkout-web ведёт мастер заказа печати: подготовка и загрузка изображений,
данные покупателя, корзина и оплата через backend API Print Home.

Конфигурация — переменные окружения CW_* (файл .env подхватывается автоматически).`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// .env необязателен
			_ = godotenv.Load()
		},
		SilenceUsage: true,
		RunE:         serve.RunE,
	}

	cmd.AddCommand(serve, newUploadCmd(), newSessionCmd())
	return cmd
}
