package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	tours "github.com/goliatone/go-tours"
	"github.com/goliatone/go-tours/activitymap"
	"github.com/goliatone/go-tours/config"
	"github.com/goliatone/go-tours/mailer"
	"github.com/goliatone/go-tours/payments"
	"github.com/goliatone/go-tours/storage"
	"github.com/goliatone/go-tours/web"
)

func main() {
	configPath := flag.String("config", "", "path to a yaml config file, environment only when empty")
	usage := flag.Bool("usage", false, "print supported environment variables and exit")
	flag.Parse()

	if *usage {
		fmt.Println(config.Usage())
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger := newLogger(cfg)

	if err := run(cfg, logger); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func newLogger(cfg *config.Config) tours.Logger {
	var handler slog.Handler
	if cfg.IsProduction() {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug})
	}
	l := slog.New(handler)
	slog.SetDefault(l)
	return tours.NewSlogLogger(l)
}

func run(cfg *config.Config, logger tours.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	if !cfg.IsProduction() {
		logger.Debug("configuration", "config", print.MaybePrettyJSON(redacted(cfg)))
	}

	db, err := storage.OpenAndMigrate(ctx, storage.Options{
		Driver:     cfg.DB.Driver,
		DSN:        cfg.DB.URL,
		LogQueries: cfg.DB.LogQueries,
		Logger:     logger,
	})
	if err != nil {
		return err
	}
	defer db.Close()
	logger.Info("database connected", "driver", cfg.DB.Driver)

	repo := tours.NewRepositoryManager(db)
	repo.MustValidate()

	activity := activitymap.LogSink(logger, activitymap.WithActorFallback("anonymous"))
	hasher := tours.NewBcryptHasher()

	provider := tours.NewUserProvider(repo.Users()).
		WithLogger(logger).
		WithHasher(hasher)
	auther := tours.NewAuthenticator(provider, cfg).
		WithLogger(logger).
		WithActivitySink(activity)

	notifier, err := mailer.NewNotifier(mailer.NewSMTPSender(mailer.SMTPConfig{
		Host:     cfg.Email.Host,
		Port:     cfg.Email.Port,
		Username: cfg.Email.Username,
		Password: cfg.Email.Password,
		From:     cfg.Email.From,
	}))
	if err != nil {
		return err
	}
	notifier.WithLogger(logger)

	checkout := payments.NewStripeCheckout(cfg.Stripe.SecretKey, cfg.Stripe.WebhookSecret).
		WithCurrency(cfg.Stripe.Currency)

	srv := web.NewHTTPServer(web.Deps{
		Config:       cfg,
		Repo:         repo,
		Auth:         auther,
		Notifier:     notifier,
		Checkout:     checkout,
		Hasher:       hasher,
		Activity:     activity,
		Logger:       logger,
		PublicURL:    cfg.PublicURL,
		RateLimit:    cfg.HTTPServer.RateLimit,
		ReadTimeout:  cfg.HTTPServer.ReadTimeout,
		WriteTimeout: cfg.HTTPServer.WriteTimeout,
	})

	errc := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", cfg.Addr(), "env", cfg.Env)
		errc <- srv.Serve(cfg.Addr())
	}()

	select {
	case err := <-errc:
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "http server failed")
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down", "timeout", cfg.HTTPServer.ShutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPServer.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "graceful shutdown failed")
	}
	logger.Info("shutdown complete")
	return nil
}

func redacted(cfg *config.Config) config.Config {
	out := *cfg
	if out.JWT.Secret != "" {
		out.JWT.Secret = "***"
	}
	if out.Email.Password != "" {
		out.Email.Password = "***"
	}
	if out.Stripe.SecretKey != "" {
		out.Stripe.SecretKey = "***"
	}
	if out.Stripe.WebhookSecret != "" {
		out.Stripe.WebhookSecret = "***"
	}
	return out
}
