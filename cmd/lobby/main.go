package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/nexusmmo/core/internal/bus"
	"github.com/nexusmmo/core/internal/config"
	"github.com/nexusmmo/core/internal/db"
	"github.com/nexusmmo/core/internal/netconn"
)

const ConfigPath = "config/lobby.yaml"

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("shutting down", "signal", sig)
		cancel()
	}()

	if err := run(ctx); err != nil {
		slog.Error("fatal", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})))
	slog.Info("lobby process starting")

	cfgPath := ConfigPath
	if p := os.Getenv("NEXUS_LOBBY_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.LoadLobby(cfgPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	slog.Info("config loaded", "port", cfg.Port, "world_listen_port", cfg.WorldListenPort)

	database, err := db.New(ctx, cfg.Database.DSN())
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer database.Close()
	slog.Info("lobby database connected")

	if err := db.RunLobbyMigrations(ctx, cfg.Database.DSN()); err != nil {
		return fmt.Errorf("running lobby migrations: %w", err)
	}
	slog.Info("lobby migrations applied")

	accountRepo := db.NewAccountRepository(database.Pool())
	worldLink := netconn.NewLink()
	h := &handlers{accountRepo: accountRepo, worldLink: worldLink}

	dhParams, err := cfg.DHParams()
	if err != nil {
		return fmt.Errorf("preparing Diffie-Hellman parameters: %w", err)
	}

	workers := make(netconn.StaticPool, 0, cfg.WorkerCount())
	for i := 0; i < cfg.WorkerCount(); i++ {
		w := bus.NewWorker(fmt.Sprintf("lobby-worker-%d", i))
		pm := netconn.NewPacketManager()
		w.AddManager(pm)
		w.Start(false)
		workers = append(workers, w)
	}
	slog.Info("worker pool started", "workers", len(workers))

	clientServer := netconn.NewServer(workers, dhParams)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("client listener starting", "addr", cfg.BindAddress())
		if err := clientServer.Run(gctx, cfg.BindAddress()); err != nil {
			return fmt.Errorf("client listener: %w", err)
		}
		return nil
	})

	worldWorkers := make(netconn.StaticPool, 1)
	worldWorker := bus.NewWorker("lobby-world-link")
	worldLinkPM := netconn.NewPacketManager()
	h.register(worldLinkPM)
	worldLinkPM.OnEncrypted(func(conn *netconn.Connection) {
		worldLink.Set(conn)
		slog.Info("world link established", "conn", conn.ID())
	})
	worldWorker.AddManager(worldLinkPM)
	worldWorker.Start(false)
	worldWorkers[0] = worldWorker

	worldServer := netconn.NewServer(worldWorkers, dhParams)
	worldAddr := fmt.Sprintf("%s:%d", cfg.WorldListenAddress, cfg.WorldListenPort)
	g.Go(func() error {
		slog.Info("world listener starting", "addr", worldAddr)
		if err := worldServer.Run(gctx, worldAddr); err != nil {
			return fmt.Errorf("world listener: %w", err)
		}
		return nil
	})

	slog.Info("lobby process ready")

	if err := g.Wait(); err != nil {
		return fmt.Errorf("lobby server error: %w", err)
	}
	return nil
}
