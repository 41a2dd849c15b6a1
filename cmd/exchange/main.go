package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
	gorm_mysql "gorm.io/driver/mysql"
	"gorm.io/gorm"

	accountapp "github.com/wyfcoding/exchange/internal/account/application"
	accountdomain "github.com/wyfcoding/exchange/internal/account/domain"
	account_mem "github.com/wyfcoding/exchange/internal/account/infrastructure/persistence/memory"
	account_mysql "github.com/wyfcoding/exchange/internal/account/infrastructure/persistence/mysql"
	accounthttp "github.com/wyfcoding/exchange/internal/account/interfaces/http"
	mdapp "github.com/wyfcoding/exchange/internal/marketdata/application"
	"github.com/wyfcoding/exchange/internal/marketdata/infrastructure/messaging"
	mdhttp "github.com/wyfcoding/exchange/internal/marketdata/interfaces/http"
	medomain "github.com/wyfcoding/exchange/internal/matchingengine/domain"
	match_mem "github.com/wyfcoding/exchange/internal/matchingengine/infrastructure/persistence/memory"
	match_mysql "github.com/wyfcoding/exchange/internal/matchingengine/infrastructure/persistence/mysql"
	orderapp "github.com/wyfcoding/exchange/internal/order/application"
	orderdomain "github.com/wyfcoding/exchange/internal/order/domain"
	order_mem "github.com/wyfcoding/exchange/internal/order/infrastructure/persistence/memory"
	order_mysql "github.com/wyfcoding/exchange/internal/order/infrastructure/persistence/mysql"
	orderhttp "github.com/wyfcoding/exchange/internal/order/interfaces/http"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "configs/exchange/config.toml", "path to config file")
	flag.Parse()

	// 1. Config
	viper.SetConfigFile(configPath)
	viper.AutomaticEnv()
	if err := viper.ReadInConfig(); err != nil {
		panic(fmt.Sprintf("read config failed: %v", err))
	}

	// 2. Logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// 3. Repositories (memory or mysql, per config)
	var (
		orderRepo       medomain.OrderRepository
		tradeRepo       medomain.TradeRepository
		accountRepo     accountdomain.AccountRepository
		transactionRepo accountdomain.TransactionRepository
		instrumentRepo  orderdomain.InstrumentRepository
	)

	switch driver := viper.GetString("storage.driver"); driver {
	case "mysql":
		dsn := viper.GetString("database.source")
		db, err := gorm.Open(gorm_mysql.Open(dsn), &gorm.Config{})
		if err != nil {
			panic(fmt.Sprintf("connect db failed: %v", err))
		}
		if viper.GetBool("database.auto_migrate") {
			if err := db.AutoMigrate(
				&medomain.Order{}, &medomain.Trade{},
				&accountdomain.Account{}, &accountdomain.Position{}, &accountdomain.Transaction{},
				&orderdomain.Instrument{},
			); err != nil {
				slog.Error("failed to migrate database", "error", err)
			}
		}
		orderRepo = match_mysql.NewOrderRepo(db)
		tradeRepo = match_mysql.NewTradeRepo(db)
		accountRepo = account_mysql.NewAccountRepo(db)
		transactionRepo = account_mysql.NewTransactionRepo(db)
		instrumentRepo = order_mysql.NewInstrumentRepo(db)
	case "", "memory":
		orderRepo = match_mem.NewOrderRepository()
		tradeRepo = match_mem.NewTradeRepository()
		accountRepo = account_mem.NewAccountRepository()
		transactionRepo = account_mem.NewTransactionRepository()
		instrumentRepo = order_mem.NewInstrumentRepository()
	default:
		panic(fmt.Sprintf("unknown storage driver: %s", driver))
	}

	// 4. Domain / application wiring
	engine := medomain.NewMatchingEngine(logger)
	accountSvc := accountapp.NewService(accountRepo, transactionRepo, logger)
	validator := orderapp.NewValidationService(instrumentRepo)
	instrumentSvc := orderapp.NewInstrumentService(instrumentRepo)

	var publisher orderapp.TradePublisher
	if viper.GetBool("kafka.enabled") {
		kafkaPublisher := messaging.NewKafkaTradePublisher(
			viper.GetStringSlice("kafka.brokers"),
			viper.GetString("kafka.trade_topic"),
			logger,
		)
		defer kafkaPublisher.Close()
		publisher = kafkaPublisher
	}

	orderSvc := orderapp.NewOrderService(validator, accountSvc, engine, orderRepo, tradeRepo, publisher, logger)
	marketSvc := mdapp.NewService(engine, tradeRepo, logger)

	seedInstruments(instrumentSvc)

	// 5. HTTP
	if viper.GetString("server.mode") == "release" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())

	root := router.Group("")
	orderhttp.NewOrderHandler(orderSvc).RegisterRoutes(root)
	orderhttp.NewInstrumentHandler(instrumentSvc).RegisterRoutes(root)
	accounthttp.NewAccountHandler(accountSvc, marketSvc).RegisterRoutes(root)
	mdhttp.NewMarketDataHandler(marketSvc).RegisterRoutes(root)

	port := viper.GetString("server.http_port")
	if port == "" {
		port = "8080"
	}
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", port),
		Handler: router,
	}

	go func() {
		slog.Info("starting HTTP server", "port", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			panic(err)
		}
	}()

	// 6. Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("server shutdown failed", "error", err)
	}
	slog.Info("server exiting")
}

// seedInstruments 按配置预置交易品种，已存在的跳过
func seedInstruments(svc *orderapp.InstrumentService) {
	type seed struct {
		Symbol      string `mapstructure:"symbol"`
		Name        string `mapstructure:"name"`
		TickSize    string `mapstructure:"tick_size"`
		MinOrderQty string `mapstructure:"min_order_qty"`
		MaxOrderQty string `mapstructure:"max_order_qty"`
	}

	var seeds []seed
	if err := viper.UnmarshalKey("instruments", &seeds); err != nil {
		slog.Error("failed to parse instrument seeds", "error", err)
		return
	}

	parse := func(s string) decimal.Decimal {
		if s == "" {
			return decimal.Zero
		}
		d, err := decimal.NewFromString(s)
		if err != nil {
			slog.Error("invalid decimal in instrument seed", "value", s, "error", err)
			return decimal.Zero
		}
		return d
	}

	ctx := context.Background()
	for _, s := range seeds {
		_, err := svc.CreateInstrument(ctx, &orderapp.CreateInstrumentRequest{
			Symbol:      s.Symbol,
			Name:        s.Name,
			TickSize:    parse(s.TickSize),
			MinOrderQty: parse(s.MinOrderQty),
			MaxOrderQty: parse(s.MaxOrderQty),
		})
		if err != nil {
			slog.Warn("skip instrument seed", "symbol", s.Symbol, "error", err)
			continue
		}
		slog.Info("instrument seeded", "symbol", s.Symbol)
	}
}
