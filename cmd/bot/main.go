package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/xaenox/slimday-bot/internal/app"
	"github.com/xaenox/slimday-bot/internal/models"
	"github.com/xaenox/slimday-bot/internal/resolver"
	"github.com/xaenox/slimday-bot/pkg/config"
	"go.uber.org/zap"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var configPath string

	serve := newServeCommand(&configPath)
	root := &cobra.Command{
		Use:           "slimday-bot",
		Short:         "Chat companion for the 45-day slimming program",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          serve.RunE,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "Path to the config file")

	root.AddCommand(serve)
	root.AddCommand(newSayCommand(&configPath))
	return root
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	if cfg.Log.Development {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func newServeCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the webhook server, Telegram poller and daily push",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(*configPath)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			logger, err := newLogger(cfg)
			if err != nil {
				return fmt.Errorf("failed to create logger: %w", err)
			}
			defer logger.Sync()

			a, err := app.New(cfg, logger)
			if err != nil {
				logger.Error("Failed to initialize", zap.Error(err))
				return err
			}
			defer func() {
				if err := a.Close(); err != nil {
					logger.Error("Failed to close storage", zap.Error(err))
				}
			}()

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			logger.Info("Starting bot",
				zap.Bool("line", cfg.LineEnabled()),
				zap.Bool("telegram", cfg.TelegramEnabled()),
				zap.Bool("push", cfg.Push.Enabled),
				zap.String("storage", cfg.Storage.Driver))

			if err := a.Run(ctx); err != nil {
				logger.Error("Bot stopped with error", zap.Error(err))
				return err
			}
			logger.Info("Bot stopped")
			return nil
		},
	}
}

func newSayCommand(configPath *string) *cobra.Command {
	var (
		kind string
		id   string
	)

	cmd := &cobra.Command{
		Use:   "say <text>",
		Short: "Resolve one message and print the reply",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			convKind, ok := models.ParseConversationKind(kind)
			if !ok {
				return fmt.Errorf("unknown conversation kind %q", kind)
			}

			cfg, err := config.LoadConfig(*configPath)
			if err != nil {
				return err
			}
			logger, err := newLogger(cfg)
			if err != nil {
				return fmt.Errorf("failed to create logger: %w", err)
			}
			defer logger.Sync()

			a, err := app.New(cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			reply, ok := a.Resolver().Resolve(cmd.Context(), resolver.Message{
				Identity: models.ConversationIdentity{Kind: convKind, ID: id},
				Text:     strings.Join(args, " "),
			})
			if !ok {
				fmt.Fprintln(cmd.ErrOrStderr(), "(message ignored)")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), reply)
			return nil
		},
	}
	cmd.Flags().StringVar(&kind, "kind", string(models.KindDirect), "Conversation kind: direct, group or room")
	cmd.Flags().StringVar(&id, "id", "cli", "Conversation id")
	return cmd
}
