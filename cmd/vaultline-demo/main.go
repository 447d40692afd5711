package main

import (
	"context"
	"encoding/json"
	"log"
	"log/slog"
	"os"

	"github.com/redis/go-redis/v9"

	"github.com/vaultline/vaultline"
	"github.com/vaultline/vaultline/adapters/signerproxy"
	"github.com/vaultline/vaultline/adapters/storage"
	"github.com/vaultline/vaultline/core"
	"github.com/vaultline/vaultline/ports"
	"github.com/vaultline/vaultline/provider"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	baseURL := os.Getenv("VAULTLINE_BASE_URL")
	if baseURL == "" {
		baseURL = "http://localhost:9000"
	}

	projectKey := os.Getenv("VAULTLINE_PROJECT_KEY")
	if projectKey == "" {
		log.Fatal("VAULTLINE_PROJECT_KEY is required")
	}

	// Credentials live in memory unless a Redis URL is given.
	var store ports.Store = storage.NewMemoryStore()
	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		redisOpts, err := redis.ParseURL(redisURL)
		if err != nil {
			log.Fatalf("Failed to parse Redis URL: %v", err)
		}
		store = storage.NewRedisStore(redis.NewClient(redisOpts))
	}

	// The demo runs the signer in-process behind the loopback transport. A
	// real deployment points the proxy at the isolated signer process instead.
	transport := signerproxy.NewLoopback(demoSigner())

	opts := []vaultline.Option{
		vaultline.WithStore(store),
		vaultline.WithLogger(logger),
	}
	if ecosystem := os.Getenv("VAULTLINE_ECOSYSTEM"); ecosystem != "" {
		opts = append(opts, vaultline.WithEcosystem(ecosystem))
	}
	if policy := os.Getenv("VAULTLINE_SPONSOR_POLICY"); policy != "" {
		opts = append(opts, vaultline.WithSponsorPolicy(policy))
	}

	client, err := vaultline.New(baseURL, projectKey, transport, opts...)
	if err != nil {
		log.Fatalf("Failed to create wallet client: %v", err)
	}

	ctx := context.Background()
	defer func() {
		if err := client.Shutdown(ctx); err != nil {
			logger.Error("shutdown failed", "error", err)
		}
	}()

	client.WatchState(func(state vaultline.EmbeddedState) {
		logger.Info("wallet state", "state", state.String())
	})

	if _, err := client.Auth().SignUpGuest(ctx); err != nil {
		log.Fatalf("Guest signup failed: %v", err)
	}

	account, err := client.CreateSigner(ctx, ports.ProvisionRequest{ChainID: 80002})
	if err != nil {
		log.Fatalf("Signer provisioning failed: %v", err)
	}
	logger.Info("wallet ready", "address", account.Address, "chain_id", account.ChainID)

	accounts, err := client.Provider().Request(ctx, provider.Request{Method: "eth_accounts"})
	if err != nil {
		log.Fatalf("Provider request failed: %v", err)
	}
	logger.Info("provider accounts", "accounts", accounts)

	signature, err := client.SignMessage(ctx, "hello from vaultline")
	if err != nil {
		log.Fatalf("Signing failed: %v", err)
	}
	logger.Info("signed message", "signature", signature)
}

// demoSigner serves signer requests in-process with a fixed demo account.
func demoSigner() signerproxy.Handler {
	account, _ := json.Marshal(core.Account{
		ID:          "acc_demo",
		Address:     "0x1111111111111111111111111111111111111111",
		ChainID:     80002,
		AccountType: core.AccountTypeSmart,
	})

	return func(env signerproxy.Envelope) signerproxy.Envelope {
		switch env.Action {
		case "configure", "create", "recover", "switch_chain":
			return signerproxy.Envelope{Payload: account}
		case "sign":
			return signerproxy.Envelope{Payload: json.RawMessage(`{"signature":"0xdemo"}`)}
		case "disconnect", "set_recovery":
			return signerproxy.Envelope{}
		default:
			return signerproxy.Envelope{Error: "unsupported action " + env.Action}
		}
	}
}
