package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/0xPexy/petpay-backend/internal/auth"
	"github.com/0xPexy/petpay-backend/internal/balance"
	"github.com/0xPexy/petpay-backend/internal/bundler"
	"github.com/0xPexy/petpay-backend/internal/chain"
	cfgpkg "github.com/0xPexy/petpay-backend/internal/config"
	"github.com/0xPexy/petpay-backend/internal/network"
	"github.com/0xPexy/petpay-backend/internal/paymaster"
	"github.com/0xPexy/petpay-backend/internal/poller"
	"github.com/0xPexy/petpay-backend/internal/ratelimit"
	"github.com/0xPexy/petpay-backend/internal/server"
	"github.com/0xPexy/petpay-backend/internal/store"
	"github.com/0xPexy/petpay-backend/internal/transfer"
	"github.com/0xPexy/petpay-backend/internal/wallet"
	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/sync/errgroup"
)

func newLogger(prefix string) *log.Logger {
	return log.New(log.Writer(), prefix, log.LstdFlags)
}

func main() {
	cfg := cfgpkg.Load()

	db := store.OpenSQLite(cfg.Database.SQLiteDSN)
	store.AutoMigrate(db)
	repo := store.NewRepository(db)

	networks, err := network.NewRegistry(cfg.Chain.Network, network.Endpoints{
		PaymasterURL: cfg.Chain.PaymasterURL,
		BundlerURL:   cfg.Chain.BundlerURL,
		RPCURL:       cfg.Chain.RPCURL,
	})
	if err != nil {
		log.Fatalf("network: %v", err)
	}
	active := networks.Default()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	g, gctx := errgroup.WithContext(ctx)

	timeout := cfg.Chain.UpstreamTimeout
	ethClient, err := chain.DialEth(ctx, active.RPCURL, timeout)
	if err != nil {
		log.Fatalf("failed to connect chain rpc: %v", err)
	}
	chainID, err := ethClient.ChainID(ctx)
	if err != nil {
		log.Fatalf("failed to get chain id: %v", err)
	}
	if chainID.Uint64() != active.ChainID {
		log.Fatalf("chain rpc serves chain %s, %s expects %d", chainID, active.Name, active.ChainID)
	}
	bundlerRPC, err := chain.DialRPC(ctx, active.BundlerURL, timeout)
	if err != nil {
		log.Fatalf("failed to connect bundler: %v", err)
	}
	paymasterRPC, err := chain.DialRPC(ctx, active.PaymasterURL, timeout)
	if err != nil {
		log.Fatalf("failed to connect paymaster: %v", err)
	}

	reader := chain.NewReader(ethClient)
	eventHub := server.NewEventHub(newLogger("events: "))
	bundlerClient := bundler.New(bundlerRPC, newLogger("bundler: "))
	confirmations := poller.New(gctx, poller.Config{
		Interval:    cfg.Poller.Interval,
		MaxAttempts: cfg.Poller.MaxAttempts,
	}, bundlerClient, repo, eventHub, newLogger("poller: "))
	if _, err := confirmations.Resume(ctx); err != nil {
		log.Printf("failed to resume pending operations: %v", err)
	}

	deps := server.Dependencies{
		Networks: networks,
		Repo:     repo,
		Auth:     auth.NewService(cfg.Auth),
		Balances: balance.NewReader(reader, networks, cfg.Chain.ETHUSDPrice, newLogger("balance: ")),
		Hub:      eventHub,
		Logger:   newLogger("http: "),
	}
	if cfg.Credential.Enabled() {
		deps.Transfers = transfer.NewService(transfer.Deps{
			Store:     repo,
			Networks:  networks,
			Chain:     reader,
			Paymaster: paymaster.New(paymasterRPC, cfg.Paymaster.PolicyID, newLogger("paymaster: ")),
			Bundler:   bundlerClient,
			Watcher:   confirmations,
			Sink:      eventHub,
			Limiter:   ratelimit.New(cfg.Transfer.RateLimit, cfg.Transfer.RateWindow),
			Secret:    cfg.Credential.MasterSecret,
			Logger:    newLogger("transfer: "),
		})
		var factory common.Address
		if common.IsHexAddress(cfg.Chain.AccountFactory) {
			factory = common.HexToAddress(cfg.Chain.AccountFactory)
		}
		deps.Wallets = wallet.NewService(repo, reader, networks, wallet.Config{
			Factory:        factory,
			Salt:           cfg.Chain.AccountSalt,
			MasterSecret:   cfg.Credential.MasterSecret,
			RecoverySecret: cfg.Credential.RecoverySecret,
		}, newLogger("wallet: "))
	} else {
		log.Printf("CREDENTIAL_MASTER_SECRET not set; transfers and wallet management disabled")
	}

	srv := server.NewHTTP(cfg.Server.HTTPAddr, server.NewRouter(deps))
	log.Printf("serving %s (chain %d) on %s", active.Name, active.ChainID, cfg.Server.HTTPAddr)

	g.Go(func() error {
		eventHub.Run(gctx)
		return nil
	})
	g.Go(func() error {
		return srv.Start()
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdown, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		err := srv.Stop(shutdown)
		confirmations.Wait()
		ethClient.Close()
		bundlerRPC.Close()
		paymasterRPC.Close()
		return err
	})
	if err := g.Wait(); err != nil {
		log.Fatalf("server: %v", err)
	}
}
