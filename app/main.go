package main

import (
	"log/slog"
	"os"

	"github.com/sushihentaime/blogdesk/internal/aiservice"
	"github.com/sushihentaime/blogdesk/internal/blogservice"
	"github.com/sushihentaime/blogdesk/internal/common"
)

type application struct {
	config      *Config
	logger      *slog.Logger
	cache       *common.Cache
	blogService *blogservice.BlogService
	generator   *aiservice.Generator
	broker      *common.MessageBroker
}

func main() {
	// Load the configuration
	cfg, err := loadConfig(".env")
	if err != nil {
		slog.Error("failed to load configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Initialize the logger
	level := slog.LevelInfo
	if cfg.Environment == "development" {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))

	// Initialize the query cache
	cache := common.NewCache(common.Options{
		StaleTime:  cfg.QueryStaleTime,
		GCTime:     cfg.QueryGCTime,
		Retry:      cfg.QueryRetry,
		RetryDelay: cfg.QueryRetryDelay,
		Logger:     logger,
	})
	defer cache.Flush()

	// Initialize the message broker, if one is configured
	var (
		broker   *common.MessageBroker
		producer common.MessageProducer
	)
	if cfg.BrokerEnabled() {
		broker, err = common.NewMessageBroker(common.BrokerURI(cfg.MQUser, cfg.MQPassword, cfg.MQHost, cfg.MQPort))
		if err != nil {
			logger.Error("failed to connect to the message broker", slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer broker.Close()

		// Setup the exchange, queue, and binding key
		err = common.SetupBlogExchange(broker)
		if err != nil {
			logger.Error("failed to setup the blog exchange", slog.String("error", err.Error()))
			os.Exit(1)
		}
		producer = broker
	}

	model := blogservice.NewBlogModel(cfg.BlogAPIURL, cfg.BlogAPITimeout)

	// Initialize the services
	app := &application{
		config:      cfg,
		logger:      logger,
		cache:       cache,
		blogService: blogservice.NewBlogService(model, cache, producer, logger),
		generator: aiservice.NewGenerator(aiservice.Config{
			APIKey:            cfg.GeminiAPIKey,
			Model:             cfg.GeminiModel,
			BaseURL:           cfg.GeminiBaseURL,
			RequestsPerMinute: cfg.AIRequestsPerMinute,
		}, logger),
		broker: broker,
	}

	if !app.generator.Enabled() {
		logger.Info("ai generation disabled: no GEMINI_API_KEY set")
	}

	// Start the HTTP server
	err = app.serve(cfg.Port)
	if err != nil {
		logger.Error("failed to start the server", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
