// flowctl — планировщик зависимостей между flows платформы репликации.
//
// Использование:
//
//	flowctl [--server URL] [--token TOKEN] [--json] <command> <subcommand> [flags]
//
// Команды:
//
//	project  Проверка, запуск и остановка проектов, история runs
//	flow     Статус и управление отдельными flows
//	events   Поток событий flows из RabbitMQ
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/shaiso/flowctl/internal/cli"
	"github.com/shaiso/flowctl/internal/telemetry"
)

// version задаётся через ldflags при сборке.
var version = "dev"

func main() {
	logger := telemetry.SetupLogger()

	// graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	rootCmd, closeSession := cli.NewRootCmd(version, logger)
	err := rootCmd.ExecuteContext(ctx)
	closeSession()

	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		cancel()
		os.Exit(1)
	}
}
