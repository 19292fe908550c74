// Command subscriber tails the ledger event channels and logs every event.
package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"sync"
	"syscall"

	"github.com/aman-zulfiqar/swap-ledger/internal/cache"
	"github.com/aman-zulfiqar/swap-ledger/internal/config"
	"github.com/aman-zulfiqar/swap-ledger/internal/constants"
	"github.com/aman-zulfiqar/swap-ledger/internal/models"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

func loadEnv(logger *logrus.Logger) {
	_, filename, _, _ := runtime.Caller(0)
	envPath := filepath.Join(filepath.Dir(filename), "../..", ".env")
	if err := godotenv.Load(envPath); err != nil {
		logger.Debugf("no .env file found at %s", envPath)
	}
}

func main() {
	token := flag.String("token", "", "only follow events touching this token")
	flag.Parse()

	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	loadEnv(logger)
	cfg := config.Load()
	logger.SetLevel(cfg.Level())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	pubsub := cache.NewPubSubManager(cfg.RedisAddr, logger)
	defer func() { _ = pubsub.Close() }()

	logEvent := func(ev *models.LedgerEvent) {
		logger.WithFields(logrus.Fields{
			"id":       ev.ID,
			"kind":     ev.Kind,
			"caller":   ev.Caller,
			"token_a":  ev.TokenA,
			"amount_a": ev.AmountA,
			"token_b":  ev.TokenB,
			"amount_b": ev.AmountB,
			"price":    ev.Price.String(),
		}).Info("ledger event")
	}

	channel := constants.PubSubChannelAll
	if *token != "" {
		channel = cache.TokenChannel(*token)
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		if err := pubsub.Subscribe(ctx, channel, logEvent); err != nil && !errors.Is(err, context.Canceled) {
			logger.WithError(err).Error("subscription ended")
		}
	}()

	// Swaps get a compact price line of their own
	go func() {
		defer wg.Done()
		err := pubsub.PSubscribe(ctx, cache.KindChannel(models.EventSwap)+"*", func(ev *models.LedgerEvent) {
			logger.Infof("swap %s %s -> %s %s @ %s", ev.AmountA, ev.TokenA, ev.AmountB, ev.TokenB, ev.Price.String())
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.WithError(err).Error("pattern subscription ended")
		}
	}()

	logger.WithField("channel", channel).Info("subscriber running, press Ctrl+C to stop")
	<-sigCh
	logger.Info("shutting down subscriber")
	cancel()
	wg.Wait()
}
