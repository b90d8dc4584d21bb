package main

import (
	"context"
	"os"
	"syscall"

	"github.com/charmbracelet/fang"
	"github.com/dendrascience/vdo-manager/internal/cmd"
	"github.com/dendrascience/vdo-manager/vdo"
	"github.com/dendrascience/vdo-manager/version"
	"github.com/dendrascience/vdo-manager/volume"
	"go.uber.org/zap"
)

func main() {
	settings := cmd.SettingsFromEnv(os.Args[0], os.Getenv)
	app := cmd.NewApp(settings, func(logger *zap.Logger) vdo.Registry {
		return volume.NewManager(os.Stdout, volume.WithLogger(logger))
	})

	err := fang.Execute(context.Background(), app.NewRootCmd(),
		fang.WithVersion(version.GetVersion()),
		fang.WithCommit(version.GetCommit()),
		fang.WithErrorHandler(app.HandleError),
		fang.WithNotifySignal(os.Interrupt, syscall.SIGTERM),
		fang.WithoutCompletions(),
		fang.WithoutManpage(),
	)
	os.Exit(vdo.ExitCode(err))
}
