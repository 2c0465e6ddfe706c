package config

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sethvargo/go-envconfig"
	log "github.com/sirupsen/logrus"
)

type (
	Config struct {
		TelegramAPIToken string   `env:"TOKEN,required"`
		DefaultLanguage  string   `env:"LANG,default=en"`
		EnabledHandlers  []string `env:"HANDLERS,default=admin,gatekeeper,subscription,moderation"`
		LogLevel         int      `env:"LOG_LEVEL,default=2"`
		DotPath          string   `env:"DOT_PATH,default=~/.groupwarden"`
		MetricsAddr      string   `env:"METRICS_ADDR,default=:2112"`
		Spam             Spam
		Captcha          Captcha
		Subscription     Subscription
		Audit            Audit
	}

	Spam struct {
		FloodLimit          int     `env:"FLOOD_LIMIT,default=5"`
		SpamThreshold       int     `env:"SPAM_THRESHOLD,default=3"`
		SimilarityThreshold float64 `env:"SIMILARITY_THRESHOLD,default=0.8"`
		MaxWarnings         int     `env:"MAX_WARNINGS,default=3"`

		MuteDurations []time.Duration `env:"MUTE_DURATIONS,default=10m,1h,24h"`

		EnableBannedWords   bool `env:"ENABLE_BANNED_WORDS,default=true"`
		EnableLinkFilter    bool `env:"ENABLE_LINK_FILTERING,default=true"`
		EnableMediaFilter   bool `env:"ENABLE_MEDIA_FILTERING,default=true"`
		EnableForwardFilter bool `env:"ENABLE_FORWARD_FILTERING,default=true"`
	}

	Captcha struct {
		Timeout       time.Duration `env:"CAPTCHA_TIMEOUT,default=5m"`
		Difficulty    string        `env:"CAPTCHA_DIFFICULTY,default=medium"`
		SweepInterval time.Duration `env:"CAPTCHA_SWEEP_INTERVAL,default=1m"`
	}

	Subscription struct {
		Enabled         bool   `env:"CHECK_SUBSCRIPTION,default=false"`
		RequiredChannel string `env:"REQUIRED_CHANNEL"`
		// TTL of zero keeps pending verifications forever (permanent block
		// until compliance).
		TTL           time.Duration `env:"SUBSCRIPTION_TTL,default=0"`
		SweepInterval time.Duration `env:"SUBSCRIPTION_SWEEP_INTERVAL,default=5m"`
	}

	Audit struct {
		Enabled            bool   `env:"ENABLE_EXTERNAL_LOGGING,default=false"`
		LogChannelUsername string `env:"LOG_CHANNEL_USERNAME"`
	}
)

var (
	once         sync.Once
	globalConfig = &Config{}
	globalErr    error
)

func Load() (Config, error) {
	once.Do(func() {
		cfg := &Config{}
		envcfg := envconfig.Config{
			Lookuper: envconfig.PrefixLookuper("GW_", envconfig.OsLookuper()),
			Target:   cfg,
		}
		if err := envconfig.ProcessWith(context.Background(), &envcfg); err != nil {
			globalErr = fmt.Errorf("process env config: %w", err)
			return
		}
		log.Traceln("loaded config")
		globalConfig = cfg
	})
	return *globalConfig, globalErr
}

func Get() Config {
	cfg, err := Load()
	if err != nil {
		log.WithField("error", err.Error()).Error("cant load config")
	}
	return cfg
}
