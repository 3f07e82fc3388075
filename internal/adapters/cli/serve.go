package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"pixrelay/internal/adapters/handler"
	"pixrelay/internal/adapters/sender"
	"pixrelay/internal/config"
	"pixrelay/internal/core/port"
	"pixrelay/internal/core/service"
	"syscall"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

const shutdownGrace = 15 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP relay and, if enabled, the Telegram bot",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	log.Info().Msg("starting pixrelay...")

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.close()

	if cfg.Telegram.Enabled {
		if err := startTelegram(ctx, cfg, a.orchestrator); err != nil {
			return err
		}
	}

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           handler.NewHTTP(a.orchestrator, cfg.Orchestrator.Timeout, a.codec.Name()).Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Server.Addr).Msg("relay listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, stop := context.WithTimeout(context.Background(), shutdownGrace)
	defer stop()

	return srv.Shutdown(shutdownCtx)
}

func startTelegram(ctx context.Context, cfg config.Config, orchestrator port.Orchestrator) error {
	b, err := bot.New(cfg.Telegram.BotToken, bot.WithDefaultHandler(noOpHandler))
	if err != nil {
		return err
	}

	s := sender.NewTelegram(b)
	tg := handler.NewTelegram(orchestrator, s, s,
		service.NewUsageTracker(ctx),
		cfg.Telegram.Command,
		cfg.Telegram.StatsCommand,
		cfg.Orchestrator.Timeout)

	b.RegisterHandler(bot.HandlerTypeMessageText, tg.GetCommand(), bot.MatchTypePrefix, tg.Handle)
	b.RegisterHandler(bot.HandlerTypeMessageText, tg.GetStatsCommand(), bot.MatchTypePrefix, tg.HandleStats)

	log.Info().Strs("commands", []string{tg.GetCommand(), tg.GetStatsCommand()}).Msg("bot listening")
	go b.Start(ctx)

	return nil
}

func noOpHandler(_ context.Context, _ *bot.Bot, _ *models.Update) {}
