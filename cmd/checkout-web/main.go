// Точка входа checkout-web — BFF мастера заказа печати фотографий Print Home.
// Без подкоманды запускает HTTP-сервер (serve); upload и session —
// служебные команды для работы с backend API из консоли.
package main

import (
	"context"
	"os"

	"github.com/charmbracelet/fang"

	"github.com/bigkaa/printhome/checkout-web/internal/config"
)

func main() {
	if err := fang.Execute(
		context.Background(),
		newRootCmd(),
		fang.WithVersion(config.Version),
		fang.WithNotifySignal(os.Interrupt),
	); err != nil {
		os.Exit(1)
	}
}
