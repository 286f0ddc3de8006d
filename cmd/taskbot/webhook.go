package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fastygo/taskbot/internal/infrastructure/telegram"
)

var webhookURL string

func setWebhookCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set-webhook",
		Short: "Register the webhook URL and secret with Telegram",
		Args:  cobra.NoArgs,
		RunE:  runSetWebhook,
	}
	cmd.Flags().StringVar(&webhookURL, "url", "", "public webhook URL (defaults to WEBHOOK_URL)")
	return cmd
}

func runSetWebhook(cmd *cobra.Command, _ []string) error {
	cfg, log, err := bootstrap()
	if err != nil {
		return err
	}
	defer log.Sync()

	url := webhookURL
	if url == "" {
		url = cfg.Telegram.WebhookURL
	}
	if url == "" {
		return errors.New("webhook url is required (--url or WEBHOOK_URL)")
	}
	if cfg.Telegram.BotToken == "" {
		return errors.New("TELEGRAM_BOT_TOKEN is required")
	}

	client := telegram.New(telegram.Config{
		Token:   cfg.Telegram.BotToken,
		BaseURL: cfg.Telegram.APIURL,
		Timeout: cfg.Telegram.Timeout,
	}, log)

	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	if err := client.SetWebhook(ctx, url, cfg.Telegram.WebhookSecret); err != nil {
		return fmt.Errorf("set webhook: %w", err)
	}
	log.Info("webhook registered", zap.String("url", url), zap.Bool("secret", cfg.Telegram.WebhookSecret != ""))
	return nil
}
