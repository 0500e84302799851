package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"membergate/config"
	"membergate/internal/observability/logger"
)

func main() {
	config.LoadEnv()
	logger.Init(logger.Config{Env: config.APP_ENV, Level: config.LOG_LEVEL, ServiceName: "membergate"})
	defer func() { _ = logger.Sync() }()

	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "membergate",
		Short:         "Membership activation and session control for an identity-backed site",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newServeCmd(), newResolveCmd(), newPlanExpiryCmd(), newWatchCmd())
	return root
}
