package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	api "github.com/OvyFlash/telegram-bot-api"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/iamwavecut/groupwarden/internal/audit"
	"github.com/iamwavecut/groupwarden/internal/bot"
	"github.com/iamwavecut/groupwarden/internal/captcha"
	"github.com/iamwavecut/groupwarden/internal/config"
	"github.com/iamwavecut/groupwarden/internal/db/sqlite"
	"github.com/iamwavecut/groupwarden/internal/detector"
	adminhandlers "github.com/iamwavecut/groupwarden/internal/handlers/admin"
	chathandlers "github.com/iamwavecut/groupwarden/internal/handlers/chat"
	modhandlers "github.com/iamwavecut/groupwarden/internal/handlers/moderation"
	"github.com/iamwavecut/groupwarden/internal/infra"
	"github.com/iamwavecut/groupwarden/internal/lifecycle"
	"github.com/iamwavecut/groupwarden/internal/moderation"
	"github.com/iamwavecut/groupwarden/internal/observability"
	"github.com/iamwavecut/groupwarden/internal/rules"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatalln("cant load config")
	}
	log.SetFormatter(&config.GwFormatter{})
	log.SetOutput(os.Stdout)
	log.SetLevel(log.Level(cfg.LogLevel))

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := observability.Init(ctx, cfg.MetricsAddr); err != nil {
		log.WithError(err).Errorln("cant initialize observability")
	}

	infra.GoRecoverable(-1, "process_updates", func() {
		defer cancel()

		botAPI, err := api.NewBotAPI(cfg.TelegramAPIToken)
		if err != nil {
			log.WithError(err).Errorln("cant initialize bot api")
			time.Sleep(1 * time.Second)
			log.Fatalln("exiting")
		}
		if log.Level(cfg.LogLevel) == log.TraceLevel {
			botAPI.Debug = true
		}
		defer botAPI.StopReceivingUpdates()

		dbClient, err := sqlite.NewSQLiteClient(ctx, infra.GetWorkDir(cfg.DotPath), "groupwarden.db")
		if err != nil {
			log.WithError(err).Fatalln("cant initialize storage")
		}
		defer func() {
			if err := dbClient.Close(); err != nil {
				log.WithError(err).Errorln("cant close storage")
			}
		}()

		service, err := bot.NewService(botAPI, dbClient)
		if err != nil {
			log.WithError(err).Fatalln("cant initialize service")
		}

		logChannel := ""
		if cfg.Audit.Enabled {
			logChannel = cfg.Audit.LogChannelUsername
		}
		sink := audit.NewSink(dbClient, botAPI, logChannel)

		det := detector.New(cfg.Spam.FloodLimit, cfg.Spam.SpamThreshold, cfg.Spam.SimilarityThreshold)
		engine := rules.NewEngine(cfg.Spam)
		core := moderation.NewCore(det, engine)
		ladder := moderation.NewLadder(cfg.Spam.MaxWarnings, cfg.Spam.MuteDurations)
		generator := captcha.NewGenerator(time.Now().UnixNano())

		gatekeeper := chathandlers.NewGatekeeper(service, generator, sink, cfg.Captcha)
		subscription := chathandlers.NewSubscriptionGate(service, sink, cfg.Subscription)

		bot.RegisterUpdateHandler("admin", adminhandlers.NewAdmin(service, ladder, sink))
		bot.RegisterUpdateHandler("gatekeeper", gatekeeper)
		bot.RegisterUpdateHandler("subscription", subscription)
		bot.RegisterUpdateHandler("moderation", modhandlers.NewReactor(service, core, ladder, sink))

		runtime := lifecycle.NewRuntime(gatekeeper, subscription)
		if err := runtime.Start(ctx); err != nil {
			log.WithError(err).Fatalln("cant start background workers")
		}
		defer func() {
			stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer stopCancel()
			if err := runtime.Stop(stopCtx); err != nil {
				log.WithError(err).Errorln("cant stop background workers")
			}
		}()

		updateConfig := api.NewUpdate(0)
		updateConfig.Timeout = 60
		updateProcessor := bot.NewUpdateProcessor(service)

		updateChan, errorChan := bot.GetUpdatesChans(ctx, botAPI, updateConfig)

		g, runCtx := errgroup.WithContext(ctx)
		g.Go(func() error {
			for {
				select {
				case err := <-errorChan:
					return err
				case update := <-updateChan:
					if err := updateProcessor.Process(runCtx, &update); err != nil {
						log.WithError(err).Errorln("cant process update")
					}
				case <-runCtx.Done():
					return runCtx.Err()
				}
			}
		})
		if err := g.Wait(); err != nil && !isShutdown(err) {
			log.WithError(err).Errorln("update loop stopped")
		}
	})

	<-ctx.Done()
	log.Infoln("shutting down")
}

func isShutdown(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
