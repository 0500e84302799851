package main

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"membergate/config"
	"membergate/internal/domain/access"
	"membergate/internal/domain/plans"
	"membergate/internal/domain/users"
)

func newResolveCmd() *cobra.Command {
	var at string
	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Run the login resolver on a {\"user\":{...}} payload read from stdin",
		RunE: func(cmd *cobra.Command, args []string) error {
			now, err := parseTimeFlag("now", at, time.Now())
			if err != nil {
				return err
			}
			return runResolve(cmd.InOrStdin(), cmd.OutOrStdout(), now)
		},
	}
	cmd.Flags().StringVar(&at, "now", "", "evaluate at this RFC 3339 instant instead of the current time")
	return cmd
}

func runResolve(in io.Reader, out io.Writer, now time.Time) error {
	var payload struct {
		User users.User `json:"user"`
	}
	if err := json.NewDecoder(in).Decode(&payload); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}

	r := access.NewResolver()
	r.Now = func() time.Time { return now }
	res := r.Resolve(payload.User)

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(map[string]any{
		"app_metadata": res.AppMetadata,
		"decision":     res.Decision,
	})
}

func newPlanExpiryCmd() *cobra.Command {
	var planKey, from, current string
	cmd := &cobra.Command{
		Use:   "plan-expiry",
		Short: "Print the expiry a plan purchase would produce",
		RunE: func(cmd *cobra.Command, args []string) error {
			if planKey == "" {
				return fmt.Errorf("--plan is required")
			}
			now, err := parseTimeFlag("from", from, time.Now().UTC())
			if err != nil {
				return err
			}
			cur, err := parseTimeFlag("current", current, time.Time{})
			if err != nil {
				return err
			}
			catalog, err := loadCatalog(config.PLANS_FILE)
			if err != nil {
				return err
			}
			exp, err := planExpiry(catalog, planKey, now, cur)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), exp.UTC().Format(access.TimestampLayout))
			return err
		},
	}
	cmd.Flags().StringVar(&planKey, "plan", "", "plan key (day, month, halfyear, year)")
	cmd.Flags().StringVar(&from, "from", "", "purchase instant, RFC 3339 (default now)")
	cmd.Flags().StringVar(&current, "current", "", "current subscription expiry, RFC 3339")
	return cmd
}

// planExpiry does not require a configured price id.
func planExpiry(catalog *plans.Catalog, key string, now, current time.Time) (time.Time, error) {
	p, ok := catalog.Get(key)
	if !ok {
		return time.Time{}, fmt.Errorf("%w: %q", plans.ErrUnknownPlan, key)
	}
	return p.Duration.AddTo(plans.ExtendFrom(now, current)), nil
}

func parseTimeFlag(name, value string, fallback time.Time) (time.Time, error) {
	if value == "" {
		return fallback, nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("--%s: %w", name, err)
	}
	return t.UTC(), nil
}
