package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-redis/redis/v8"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/bookwell/engine/internal/app"
	"github.com/bookwell/engine/internal/clock"
	"github.com/bookwell/engine/internal/config"
	"github.com/bookwell/engine/internal/events"
	"github.com/bookwell/engine/internal/storage/postgres"
	enginehttp "github.com/bookwell/engine/internal/transport/http"
	"github.com/bookwell/engine/migrations"
)

func newServeCmd() *cobra.Command {
	var configPath string
	var migrateUp bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the scheduling engine API and expiry sweeper",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}

			logger := newLogger()

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			pool, err := pgxpool.New(ctx, cfg.Database.URL)
			if err != nil {
				return fmt.Errorf("connect database: %w", err)
			}
			defer pool.Close()

			if err := pool.Ping(ctx); err != nil {
				return fmt.Errorf("ping database: %w", err)
			}

			if migrateUp {
				if err := migrations.Apply(ctx, pool); err != nil {
					return err
				}
			}

			eng := buildEngine(cfg, pool, logger)
			go eng.sweeper.Run(ctx)

			handler := enginehttp.NewRouter(enginehttp.RouterConfig{
				Availability: eng.availability,
				Holds:        eng.holds,
				Waitlist:     eng.waitlist,
				Bookings:     eng.bookings,
				CORSOrigins:  cfg.Server.CORSOrigins,
				Logger:       logger,
			})

			srv := &http.Server{
				Addr:    ":" + cfg.Server.Port,
				Handler: handler,
			}

			errCh := make(chan error, 1)
			go func() {
				logger.WithField("addr", srv.Addr).Info("engine listening")
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
			}()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}

			logger.Info("shutting down")
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
			defer shutdownCancel()
			return srv.Shutdown(shutdownCtx)
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "path to a yaml config file")
	cmd.Flags().BoolVar(&migrateUp, "migrate", true, "run database migrations on startup")
	return cmd
}

// engine bundles the wired services so serve and sweep share one
// construction path.
type engine struct {
	availability *app.AvailabilityService
	holds        *app.HoldService
	bookings     *app.BookingService
	waitlist     *app.WaitlistService
	sweeper      *app.Sweeper
}

func buildEngine(cfg *config.Config, pool *pgxpool.Pool, logger logrus.FieldLogger) *engine {
	clk := clock.NewSystem()

	calendarRepo := postgres.NewCalendarRepository(pool)
	holdRepo := postgres.NewHoldRepository(pool)
	bookingRepo := postgres.NewBookingRepository(pool)
	waitlistRepo := postgres.NewWaitlistRepository(pool)

	var publisher events.Publisher
	if cfg.Redis.Enabled {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		publisher = events.NewRedisPublisher(client, cfg.Redis.Queue, logger)
	} else {
		publisher = events.NewLogPublisher(logger)
	}

	availabilityOpts := []app.AvailabilityServiceOption{
		app.WithDefaultSlotIncrement(cfg.Engine.SlotIncrement),
		app.WithLookahead(cfg.Engine.Lookahead),
	}
	for bookableType, increment := range cfg.Engine.SlotIncrements {
		availabilityOpts = append(availabilityOpts, app.WithSlotIncrement(bookableType, increment))
	}

	availabilitySvc := app.NewAvailabilityService(calendarRepo, bookingRepo, holdRepo, clk, availabilityOpts...)
	holdSvc := app.NewHoldService(holdRepo, clk, publisher, app.WithHoldTTL(cfg.Engine.HoldTTL))
	bookingSvc := app.NewBookingService(bookingRepo, clk, publisher)
	waitlistSvc := app.NewWaitlistService(waitlistRepo, holdSvc, clk, publisher, app.WithOfferWindow(cfg.Engine.OfferWindow))

	// Freed slots flow back into the waitlist, wired after construction so
	// the hold and waitlist services can reference each other.
	holdSvc.SetSlotFreedHandler(waitlistSvc)
	bookingSvc.SetSlotFreedHandler(waitlistSvc)

	return &engine{
		availability: availabilitySvc,
		holds:        holdSvc,
		bookings:     bookingSvc,
		waitlist:     waitlistSvc,
		sweeper:      app.NewSweeper(holdSvc, waitlistSvc, cfg.Engine.SweepInterval, logger),
	}
}

func newLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	if level, err := logrus.ParseLevel(os.Getenv("ENGINE_LOG_LEVEL")); err == nil {
		logger.SetLevel(level)
	}
	return logger
}
