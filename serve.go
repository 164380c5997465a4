package main

import (
	"context"
	"fmt"
	"html"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"cdash/internal/aggregate"
	"cdash/internal/health"
	"cdash/internal/server"
	"cdash/internal/telegram"
)

var (
	servePort      string
	serveOrigins   []string
	digestInterval time.Duration
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the dashboard API and keep the cache warm",
	Long: `Starts the HTTP API, re-warms the overview every REFRESH_INTERVAL and,
when Telegram is configured, answers the bot commands /resumo, /status and
/gerar <id>.

After three failed refreshes in a row a critical alert is sent to Telegram.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&servePort, "port", "", "HTTP port (overrides HTTP_PORT)")
	serveCmd.Flags().StringSliceVar(&serveOrigins, "origin", nil, "Allowed CORS origin, repeatable (default: local dev servers)")
	serveCmd.Flags().DurationVar(&digestInterval, "digest-interval", 0, "Send the weekly digest to Telegram at this interval (0 disables)")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	port := cfg.HTTPPort
	if servePort != "" {
		port = servePort
	}

	monitor := health.NewMonitor(app.Cache)
	handlers := server.NewHandlers(app.Service, monitor, app.Ledger, logger.Named("http"))
	srv := server.New(port, handlers, serveOrigins, cfg.DebugMode, logger.Named("http"))

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	go refreshLoop(ctx, monitor)
	if app.Telegram != nil {
		go app.Telegram.HandleUpdates(ctx, botCommands(monitor))
		if digestInterval > 0 {
			go digestLoop(ctx, digestInterval)
		}
	} else {
		logger.Info("telegram not configured, bot commands and alerts disabled")
	}

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Stop(shutdownCtx); err != nil {
		logger.Warn("HTTP server shutdown failed", zap.Error(err))
	}
	return <-errCh
}

// refreshLoop re-warms the overview on every tick and records the outcome.
// A critical alert goes out once when the failures reach the unhealthy
// threshold.
func refreshLoop(ctx context.Context, monitor *health.Monitor) {
	refresh := func() {
		start := time.Now()
		failed, err := app.Refresh(ctx)
		if ctx.Err() != nil {
			return
		}
		took := time.Since(start)
		monitor.RecordRefresh(took, failed, err)

		if err != nil {
			logger.Warn("overview refresh failed", zap.Error(err), zap.Duration("took", took))
		} else {
			logger.Info("overview refreshed", zap.Int("failed_panels", failed), zap.Duration("took", took))
		}

		if n := monitor.ConsecutiveFailures(); err != nil && n == health.UnhealthyAfter {
			if alertErr := app.Telegram.SendCriticalAlert(ctx, "Backend indisponível", err.Error(), n); alertErr != nil {
				logger.Warn("failed to send critical alert", zap.Error(alertErr))
			}
		}
	}

	refresh()

	ticker := time.NewTicker(cfg.RefreshInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			refresh()
		}
	}
}

func digestLoop(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d, err := app.Digest(ctx)
			if err != nil {
				logger.Warn("failed to build digest", zap.Error(err))
				continue
			}
			if err := app.Telegram.SendDigest(ctx, d.Text, d.Image); err != nil {
				logger.Warn("failed to send digest", zap.Error(err))
			}
		}
	}
}

// botCommands maps the bot commands onto the dashboard.
func botCommands(monitor *health.Monitor) telegram.Commands {
	return telegram.Commands{
		"resumo": func(ctx context.Context, _ string) (telegram.Reply, error) {
			d, err := app.Digest(ctx)
			if err != nil {
				return telegram.Reply{}, err
			}
			return telegram.Reply{Text: d.Text, Image: d.Image}, nil
		},
		"status": func(ctx context.Context, _ string) (telegram.Reply, error) {
			return telegram.Reply{Text: statusText(monitor.GetStatus())}, nil
		},
		"gerar": func(ctx context.Context, args string) (telegram.Reply, error) {
			id, err := strconv.ParseInt(strings.TrimSpace(args), 10, 64)
			if err != nil || id <= 0 {
				return telegram.Reply{Text: "Uso: /gerar &lt;id da reclamação&gt;"}, nil
			}
			resp, err := app.Service.GenerateResponse(id).Execute(ctx)
			if err != nil {
				return telegram.Reply{}, err
			}
			text := fmt.Sprintf("✍️ <b>Resposta para #%d</b>\n\n%s", id, html.EscapeString(resp.Text()))
			if resp.Coupon != nil && resp.Coupon.Code != "" {
				text += fmt.Sprintf("\n\n🎟 Cupom: <code>%s</code>", html.EscapeString(resp.Coupon.Code))
			}
			return telegram.Reply{Text: text}, nil
		},
	}
}

func statusText(st health.Status) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🩺 <b>Status:</b> %s\n", st.Status)
	fmt.Fprintf(&b, "Uptime: %s\n", st.Uptime)
	if st.LastRefreshTime != "" {
		fmt.Fprintf(&b, "Última atualização: %s (%s)\n", st.LastRefreshTime, st.LastRefreshDuration)
		fmt.Fprintf(&b, "Resultado: %s\n", html.EscapeString(st.LastRefreshStatus))
	}
	if st.Cache != nil {
		total := st.Cache.Hits + st.Cache.Misses
		fmt.Fprintf(&b, "Cache: %d entradas, %s de acertos", st.Cache.Entries,
			aggregate.FormatShare(int(st.Cache.Hits), int(total)))
	}
	return b.String()
}
