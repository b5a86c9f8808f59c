package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/atomic"

	"github.com/danielrosehill/OWUI-Docker-Compose-Generation-Agent/internal/build"
	"github.com/danielrosehill/OWUI-Docker-Compose-Generation-Agent/pkg/api/logger"
	"github.com/danielrosehill/OWUI-Docker-Compose-Generation-Agent/pkg/api/logger/color"
	"github.com/danielrosehill/OWUI-Docker-Compose-Generation-Agent/pkg/cmd/cmd_generate"
	"github.com/danielrosehill/OWUI-Docker-Compose-Generation-Agent/pkg/cmd/root_cmd"
)

func main() {
	rootParams := &root_cmd.Params{
		Verbose:    false,
		Silent:     false,
		IsCanceled: atomic.NewBool(false),
		CancelFunc: func() {},
	}

	rootCmdInstance := &root_cmd.RootCmd{
		Params: rootParams,
	}
	ctx, cancel := context.WithCancel(context.Background())

	rootParams.CancelFunc = cancel

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-quit
		rootParams.IsCanceled.Store(true)
		cancel()
	}()

	rootCmd := &cobra.Command{
		Use:           "owui-compose",
		Version:       build.Version,
		Short:         "Generates Open WebUI docker compose deployments from a conversation",
		Long:          "owui-compose asks about the Open WebUI stack you want and turns your answers into\na docker-compose.yaml with its companion services, volumes, networks and environment.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := rootCmdInstance.Init(); err != nil {
				return err
			}
			if rootParams.Verbose {
				cmd.SetContext(rootCmdInstance.Logger.SetLogLevel(cmd.Context(), logger.LogLevelDebug))
			}
			if rootParams.Silent {
				cmd.SetContext(rootCmdInstance.Logger.SetLogLevel(cmd.Context(), logger.LogLevelError))
			}
			return nil
		},
	}
	rootCmd.SetContext(ctx)
	rootCmd.SetVersionTemplate("{{printf \"%s\\n\" .Version}}")

	rootCmd.AddCommand(
		cmd_generate.NewGenerateCmd(rootCmdInstance),
	)

	rootCmd.PersistentFlags().BoolVarP(&rootParams.Verbose, "verbose", "v", rootParams.Verbose, "Verbose mode")
	rootCmd.PersistentFlags().BoolVar(&rootParams.Silent, "silent", rootParams.Silent, "Only print errors")
	rootCmd.PersistentFlags().StringVarP(&rootParams.ConfigFile, "config", "c", rootParams.ConfigFile, "Config file (default: ~/.owui-compose/config.yaml)")

	err := rootCmd.Execute()
	switch {
	case err == nil:
	case rootParams.IsCanceled.Load():
		_, _ = os.Stderr.WriteString(color.YellowFmt("Canceled: %s\n", err.Error()))
		os.Exit(root_cmd.ExitAbortedByUser)
	default:
		_, _ = os.Stderr.WriteString(color.RedFmt("Error executing command: %s\n", err.Error()))
	}
	os.Exit(root_cmd.ExitCode(err))
}
