package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"

	"caravel/cmd/server/config"
	"caravel/internal/activities"
	"caravel/internal/eventbus"
	"caravel/internal/gateway"
	"caravel/internal/httpx"
	"caravel/internal/ledger"
	"caravel/internal/realtime"
	"caravel/internal/saga"
	"caravel/internal/statuscache"
	"caravel/internal/store"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	db, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Printf("close postgres: %v", err)
		}
	}()

	setupCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := store.InitSchema(setupCtx, db); err != nil {
		return err
	}

	hub := realtime.NewHub()
	go hub.Run()

	sinks := []eventbus.Publisher{eventbus.NewHubPublisher(hub.Broadcast)}
	if len(cfg.KafkaBrokers) > 0 {
		kafkaPub := eventbus.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer func() {
			if err := kafkaPub.Close(); err != nil {
				log.Printf("close kafka writer: %v", err)
			}
		}()
		sinks = append(sinks, kafkaPub)
		log.Printf("kafka event mirror enabled (%v)", cfg.KafkaBrokers)
	}

	orders := store.NewOrderStore(db)
	payments := store.NewPaymentStore(db)
	events := store.NewEventLog(db, eventbus.NewFanout(sinks...))

	var cache *statuscache.Cache
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer rdb.Close()
		cache = statuscache.New(rdb, cfg.StatusCacheTTL)
		log.Printf("redis status cache enabled (%s)", cfg.RedisAddr)
	}

	shipper := gateway.NewInMemoryShipper()
	var paymentGW gateway.PaymentGateway = gateway.NewInMemoryGateway(0)
	var carrier gateway.Carrier = shipper
	if cfg.GatewayFailures > 0 {
		log.Printf("flaky gateways enabled: first %d calls per key fail", cfg.GatewayFailures)
		paymentGW = gateway.NewFlakyGateway(paymentGW, cfg.GatewayFailures)
		carrier = gateway.NewFlakyCarrier(carrier, cfg.GatewayFailures)
	}

	// Client-side smoothing below the substrate's retry policy.
	retry := gateway.RetryPolicy{MaxAttempts: 2, BaseDelay: 50 * time.Millisecond, MaxDelay: 200 * time.Millisecond}
	paymentGW = gateway.NewReliableGateway(
		paymentGW,
		gateway.NewRateLimiter(10*time.Millisecond, 10),
		gateway.NewCircuitBreaker(gateway.CircuitBreakerConfig{MaxFailures: 5, ResetTimeout: 2 * time.Second}),
		retry,
	)
	carrier = gateway.NewReliableCarrier(
		carrier,
		gateway.NewRateLimiter(10*time.Millisecond, 10),
		gateway.NewCircuitBreaker(gateway.CircuitBreakerConfig{MaxFailures: 5, ResetTimeout: 2 * time.Second}),
		retry,
	)

	acts := &activities.Activities{
		Source:    gateway.NewStaticOrderSource(),
		Warehouse: shipper,
		Carrier:   carrier,
		Orders:    orders,
		Events:    events,
		Ledger:    ledger.New(payments, orders, events, paymentGW, log.Printf),
		Cache:     cache,
	}

	c, err := client.Dial(client.Options{HostPort: cfg.TemporalHostPort})
	if err != nil {
		return err
	}
	defer c.Close()

	orderWorker := worker.New(c, saga.OrderTaskQueue, worker.Options{})
	orderWorker.RegisterWorkflowWithOptions(saga.OrderWorkflow, workflow.RegisterOptions{Name: saga.OrderWorkflowName})
	orderWorker.RegisterActivityWithOptions(acts.ReceiveOrder, activity.RegisterOptions{Name: saga.ReceiveOrderActivity})
	orderWorker.RegisterActivityWithOptions(acts.ValidateOrder, activity.RegisterOptions{Name: saga.ValidateOrderActivity})
	orderWorker.RegisterActivityWithOptions(acts.ChargePayment, activity.RegisterOptions{Name: saga.ChargePaymentActivity})

	shippingWorker := worker.New(c, saga.ShippingTaskQueue, worker.Options{})
	shippingWorker.RegisterWorkflowWithOptions(saga.ShippingWorkflow, workflow.RegisterOptions{Name: saga.ShippingWorkflowName})
	shippingWorker.RegisterActivityWithOptions(acts.PreparePackage, activity.RegisterOptions{Name: saga.PreparePackageActivity})
	shippingWorker.RegisterActivityWithOptions(acts.DispatchCarrier, activity.RegisterOptions{Name: saga.DispatchCarrierActivity})

	if err := orderWorker.Start(); err != nil {
		return err
	}
	defer orderWorker.Stop()
	if err := shippingWorker.Start(); err != nil {
		return err
	}
	defer shippingWorker.Stop()
	log.Printf("workers running on task queues %q and %q", saga.OrderTaskQueue, saga.ShippingTaskQueue)

	router := httpx.NewRouter()
	handler := &httpx.Handler{
		Client: httpx.NewTemporalClient(c),
		Cache:  cache,
		Events: events,
	}
	handler.Register(router)
	router.Get("/ws", hub.ServeWS)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	log.Printf("http listening on %s", cfg.HTTPAddr)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("http shutdown: %v", err)
		}
		return nil
	case err := <-errCh:
		return err
	}
}
