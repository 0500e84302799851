package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"membergate/config"
	"membergate/internal/app/sessionguard"
	"membergate/internal/infra/identity"
	"membergate/internal/observability/logger"
)

func newWatchCmd() *cobra.Command {
	var token, sessionID string
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Keep checking one browser session until it would be logged out",
		Long: "Runs the session guard against the identity provider with the given access token. " +
			"SIGHUP forces an immediate check. Prints the logout result as JSON.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if token == "" {
				token = os.Getenv("MEMBERGATE_ACCESS_TOKEN")
			}
			if token == "" {
				return errors.New("--token (or MEMBERGATE_ACCESS_TOKEN) is required")
			}
			if config.IDENTITY_URL == "" {
				return config.ErrIdentityURLMissing
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			hup := make(chan os.Signal, 1)
			signal.Notify(hup, syscall.SIGHUP)
			defer signal.Stop(hup)

			accounts := identity.New(config.IDENTITY_URL, config.IDENTITY_ADMIN_TOKEN)
			return watch(ctx, accounts, token, sessionID, config.SESSION_CHECK_INTERVAL, hup, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&token, "token", "", "identity access token of the session")
	cmd.Flags().StringVar(&sessionID, "session-id", "", "session id cached at login")
	return cmd
}

func watch(ctx context.Context, accounts sessionguard.CurrentUserFetcher, token, sessionID string,
	interval time.Duration, wake <-chan os.Signal, out io.Writer) error {
	log := logger.Named("watch")

	guard := sessionguard.New(func(ctx context.Context) sessionguard.Result {
		res := sessionguard.Verify(ctx, accounts, token, sessionID, time.Now())
		log.Debug("session checked", zap.Bool("ok", res.OK), zap.String("reason", res.Reason))
		return res
	}, interval, func(res sessionguard.Result) {
		log.Info("session ended", zap.String("reason", res.Reason), zap.String("redirect", res.Redirect))
	})

	go func() {
		for {
			select {
			case <-wake:
				guard.Trigger()
			case <-guard.Done():
				return
			}
		}
	}()

	res, err := guard.Run(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	if err != nil {
		return err
	}
	enc := json.NewEncoder(out)
	if err := enc.Encode(res); err != nil {
		return fmt.Errorf("write result: %w", err)
	}
	return nil
}
