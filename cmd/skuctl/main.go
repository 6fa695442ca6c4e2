// Package main provides the skugen operator CLI.
// Usage: skuctl migrate
//        skuctl counter get --shop acme.myshopify.com
//        skuctl counter set --shop acme.myshopify.com --value 1000
//        skuctl session put --shop acme.myshopify.com --token shpat_xxx
//        skuctl reserve --shop acme.myshopify.com --count 5
//        skuctl ledger --shop acme.myshopify.com --product 632910392
package main

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/redis/go-redis/v9"

	"skugen/internal/config"
	appctx "skugen/internal/core/context"
	"skugen/internal/core/sku"
	"skugen/internal/domain/allocator"
	"skugen/internal/domain/auth"
	"skugen/internal/domain/counter"
	"skugen/internal/domain/intake"
	"skugen/internal/domain/reserve"
	"skugen/internal/infrastructure/lock"
	"skugen/internal/infrastructure/shopify"
	"skugen/internal/infrastructure/storage/postgres"
	"skugen/pkg/logger"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "migrate", "counter", "session", "reserve", "ledger":
	case "help", "--help", "-h":
		printUsage()
		return
	default:
		fmt.Printf("Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fail("load configuration: %v", err)
	}
	if cfg.DatabaseURL == "" {
		fail("DATABASE_URL environment variable is required")
	}

	log, err := logger.New(logger.Config{Level: cfg.LogLevel, Development: true})
	if err != nil {
		fail("initialize logger: %v", err)
	}
	ctx := logger.WithLogger(context.Background(), log.WithComponent("skuctl"))
	ctx = appctx.WithTrace(ctx, appctx.NewTraceContext())

	app, err := newApp(ctx, cfg)
	if err != nil {
		fail("%v", err)
	}
	defer app.close()

	args := parseFlags(os.Args[2:])
	switch os.Args[1] {
	case "migrate":
		err = app.migrate(ctx)
	case "counter":
		err = app.counterCmd(ctx, args)
	case "session":
		err = app.sessionCmd(ctx, args)
	case "reserve":
		err = app.reserveCmd(ctx, args)
	case "ledger":
		err = app.ledgerCmd(ctx, args)
	}
	if err != nil {
		fail("%v", err)
	}
}

func printUsage() {
	fmt.Println(`skugen operator CLI

Usage:
  skuctl <command> [options]

Commands:
  migrate                                  Create or update the database schema
  counter get --shop <shop>                Show the next SKU of a shop
  counter set --shop <shop> --value <n>    Set the starting counter
  session put --shop <shop> --token <t>    Store an offline access token
  session delete --shop <shop>             Remove a stored session
  reserve --shop <shop> --count <n>        Reserve SKUs without variants
  ledger --shop <shop> --product <id>      List SKUs recorded for a product
  help                                     Show this help

Environment Variables:
  DATABASE_URL   Connection string (required)
  SKU_PREFIX     SKU prefix (default LA)`)
}

func fail(format string, a ...any) {
	fmt.Printf("Error: "+format+"\n", a...)
	os.Exit(1)
}

// cliArgs holds positional arguments and --flag values.
type cliArgs struct {
	positional []string
	flags      map[string]string
}

func parseFlags(raw []string) cliArgs {
	out := cliArgs{flags: make(map[string]string)}
	for i := 0; i < len(raw); i++ {
		arg := raw[i]
		if len(arg) > 2 && arg[:2] == "--" {
			if i+1 < len(raw) {
				out.flags[arg[2:]] = raw[i+1]
				i++
			} else {
				out.flags[arg[2:]] = ""
			}
			continue
		}
		out.positional = append(out.positional, arg)
	}
	return out
}

func (a cliArgs) sub() string {
	if len(a.positional) == 0 {
		return ""
	}
	return a.positional[0]
}

func (a cliArgs) require(names ...string) error {
	for _, name := range names {
		if a.flags[name] == "" {
			return fmt.Errorf("--%s is required", name)
		}
	}
	return nil
}

type app struct {
	pool      *postgres.Pool
	redis     *redis.Client
	txManager *postgres.TxManager
	codec     sku.Codec
	counters  *counter.Service
	sessions  *auth.Service
	reserve   *reserve.Service
	products  *intake.Service
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	poolCfg := postgres.DefaultPoolConfig(cfg.DatabaseURL)
	poolCfg.MinConns = 0
	pool, err := postgres.NewPool(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	codec, err := sku.NewCodec(cfg.SKU.Prefix)
	if err != nil {
		pool.Close()
		return nil, err
	}

	txManager := postgres.NewTxManager(pool)
	counterRepo := postgres.NewCounterRepo(txManager)
	ledgerRepo := postgres.NewLedgerRepo(txManager)
	sessionRepo := postgres.NewSessionRepo(txManager)
	outbox := postgres.NewOutboxPublisher(txManager)

	// Same lock as the server when Redis is configured. Without it the
	// conditional counter update still rejects interleaved writes.
	locker, rdb, err := lock.NewShopLocker(cfg.RedisURL, lock.RedisConfig{TTL: cfg.LockTTL, Wait: cfg.LockWait})
	if err != nil {
		pool.Close()
		return nil, err
	}
	connector := shopify.NewConnector(sessionRepo, shopify.Config{
		APIVersion: cfg.Shopify.APIVersion,
		Timeout:    cfg.Shopify.CallTimeout,
	})
	alloc := allocator.NewService(counterRepo, ledgerRepo, locker, connector, txManager, codec, allocator.Options{
		AutoProvisionStart: cfg.SKU.AutoProvisionStart,
		ProbeTimeout:       cfg.Shopify.CallTimeout,
	})

	return &app{
		pool:      pool,
		redis:     rdb,
		txManager: txManager,
		codec:     codec,
		counters:  counter.NewService(counterRepo, locker, outbox, txManager, codec),
		sessions:  auth.NewService(sessionRepo),
		reserve:   reserve.NewService(alloc, outbox, codec, cfg.SKU.ReserveMax),
		products:  intake.NewService(ledgerRepo, alloc, connector, outbox, txManager, codec, intake.Config{}),
	}, nil
}

func (a *app) close() {
	if a.redis != nil {
		_ = a.redis.Close()
	}
	a.pool.Close()
}

func (a *app) migrate(ctx context.Context) error {
	if err := postgres.Migrate(ctx, a.txManager); err != nil {
		return err
	}
	fmt.Println("✓ Schema is up to date")
	return nil
}

func (a *app) counterCmd(ctx context.Context, args cliArgs) error {
	if err := args.require("shop"); err != nil {
		return err
	}
	shop := args.flags["shop"]

	var (
		view *counter.View
		err  error
	)
	switch args.sub() {
	case "get":
		view, err = a.counters.GetCurrentCounter(ctx, shop)
	case "set":
		if err := args.require("value"); err != nil {
			return err
		}
		value, perr := counter.ParseValue(args.flags["value"])
		if perr != nil {
			return perr
		}
		view, err = a.counters.SetStartingCounter(ctx, shop, value)
	default:
		return fmt.Errorf("usage: skuctl counter get|set --shop <shop> [--value <n>]")
	}
	if err != nil {
		return err
	}

	fmt.Printf("%s: next candidate %d (%s)\n", view.Shop, view.NextCandidate, view.NextSKU)
	return nil
}

func (a *app) sessionCmd(ctx context.Context, args cliArgs) error {
	if err := args.require("shop"); err != nil {
		return err
	}
	shop := shopify.NormalizeShop(args.flags["shop"])

	switch args.sub() {
	case "put":
		if err := args.require("token"); err != nil {
			return err
		}
		if err := a.sessions.Install(ctx, shop, args.flags["token"], args.flags["scope"]); err != nil {
			return err
		}
		fmt.Printf("✓ Session stored for %s\n", shop)
	case "delete":
		if err := a.sessions.Uninstall(ctx, shop); err != nil {
			return err
		}
		fmt.Printf("✓ Session removed for %s\n", shop)
	default:
		return fmt.Errorf("usage: skuctl session put|delete --shop <shop> [--token <token>] [--scope <scope>]")
	}
	return nil
}

func (a *app) reserveCmd(ctx context.Context, args cliArgs) error {
	if err := args.require("shop", "count"); err != nil {
		return err
	}
	count, err := strconv.Atoi(args.flags["count"])
	if err != nil {
		return fmt.Errorf("--count must be a number: %w", err)
	}

	skus, err := a.reserve.Reserve(ctx, args.flags["shop"], count)
	if err != nil {
		return err
	}
	for _, s := range skus {
		fmt.Println(s)
	}
	return nil
}

func (a *app) ledgerCmd(ctx context.Context, args cliArgs) error {
	if err := args.require("shop", "product"); err != nil {
		return err
	}

	records, err := a.products.Records(ctx, args.flags["shop"], shopify.ProductGID(args.flags["product"]))
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Println("No SKUs recorded for this product.")
		return nil
	}

	fmt.Printf("%-50s %-12s %s\n", "VARIANT", "SKU", "ASSIGNED")
	for _, r := range records {
		fmt.Printf("%-50s %-12s %s\n", r.VariantID, a.codec.Format(r.SKUNumber), r.AssignedAt.Format("2006-01-02 15:04:05"))
	}
	return nil
}
