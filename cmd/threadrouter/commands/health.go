package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/jholhewres/threadrouter/pkg/threadrouter/database"
	"github.com/jholhewres/threadrouter/pkg/threadrouter/service"
)

// newHealthCmd creates `threadrouter health`, used by container health
// checks. It checks storage and, when enabled, the running gateway.
func newHealthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check storage and gateway health",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := resolveConfig(cmd)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()

			report := map[string]any{"status": "ok"}
			healthy := true

			hub, err := database.NewHub(ctx, cfg.Database, newLogger(cmd, cfg, cmd.ErrOrStderr()))
			if err != nil {
				report["database"] = map[string]any{"healthy": false, "error": err.Error()}
				healthy = false
			} else {
				status := hub.Status(ctx)
				for _, s := range status {
					healthy = healthy && s.Healthy
				}
				report["database"] = status
				hub.Close()
			}

			if cfg.Gateway.Enabled {
				gw := checkGateway(ctx, cfg)
				report["gateway"] = gw
				healthy = healthy && gw["reachable"] == true
			}

			if !healthy {
				report["status"] = "unhealthy"
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(report); err != nil {
				return err
			}
			if !healthy {
				return fmt.Errorf("unhealthy")
			}
			return nil
		},
	}
}

// checkGateway calls GET /health on the configured gateway address.
func checkGateway(ctx context.Context, cfg *service.Config) map[string]any {
	host, port, err := net.SplitHostPort(cfg.Gateway.Address)
	if err != nil {
		return map[string]any{"reachable": false, "error": err.Error()}
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	url := "http://" + net.JoinHostPort(host, port) + "/health"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return map[string]any{"reachable": false, "error": err.Error()}
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return map[string]any{"reachable": false, "url": url, "error": err.Error()}
	}
	defer resp.Body.Close()

	var body map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&body)
	return map[string]any{
		"reachable": resp.StatusCode == http.StatusOK,
		"url":       url,
		"menus":     body["active_menus"],
	}
}
