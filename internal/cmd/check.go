package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/projectdesk/api-proxy/internal/config"
	"github.com/projectdesk/api-proxy/internal/logger"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Report which endpoints are fully configured",
	Long: `Check loads the configuration the server would use and reports, per endpoint,
which required values are missing. Secrets are never printed in full.`,
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

type credential struct {
	name  string
	value string
}

func credentials(cfg *config.Config) []credential {
	return []credential{
		{"OPENAI_API_KEY", cfg.OpenAI.APIKey},
		{"STRIPE_SECRET_KEY", cfg.Stripe.SecretKey},
		{"SUPABASE_ANON_KEY", cfg.Supabase.AnonKey},
		{"SUPABASE_SERVICE_ROLE_KEY", cfg.Supabase.ServiceRoleKey},
	}
}

type handlerStatus struct {
	name    string
	missing []string
}

func (h handlerStatus) ready() bool { return len(h.missing) == 0 }

func configReport(cfg *config.Config) []handlerStatus {
	chat := handlerStatus{name: "chat"}
	if err := cfg.Chat().Validate(); err != nil {
		chat.missing = []string{"OPENAI_API_KEY"}
	}
	return []handlerStatus{
		chat,
		{name: "billing portal", missing: cfg.Portal().Missing()},
	}
}

// writeReport prints the report and returns how many endpoints are not ready
func writeReport(w io.Writer, cfg *config.Config) int {
	notReady := 0
	for _, h := range configReport(cfg) {
		if h.ready() {
			fmt.Fprintf(w, "%-15s ok\n", h.name)
			continue
		}
		notReady++
		fmt.Fprintf(w, "%-15s missing %s\n", h.name, strings.Join(h.missing, ", "))
	}
	for _, c := range credentials(cfg) {
		if c.value != "" {
			fmt.Fprintf(w, "%-26s %s\n", c.name, logger.MaskSecret(c.value))
		}
	}
	return notReady
}

func runCheck(cmd *cobra.Command, args []string) error {
	log, err := logger.NewDevelopment()
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer log.Sync()

	cfg, err := config.Load()
	if err != nil {
		log.Error("Configuration is invalid", zap.Error(err))
		return err
	}

	if cfg.Supabase.DatabaseDSN != "" {
		log.Info("Customer lookup will use a direct database connection")
	}

	if n := writeReport(cmd.OutOrStdout(), cfg); n > 0 {
		return fmt.Errorf("%d endpoint(s) not fully configured", n)
	}
	return nil
}
