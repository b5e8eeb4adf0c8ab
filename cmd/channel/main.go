package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nexusmmo/core/internal/bus"
	"github.com/nexusmmo/core/internal/config"
	"github.com/nexusmmo/core/internal/crypto"
	"github.com/nexusmmo/core/internal/netconn"
	syncmgr "github.com/nexusmmo/core/internal/sync"
)

const ConfigPath = "config/channel.yaml"

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
	slog.Info("channel process starting")

	cfgPath := ConfigPath
	if p := os.Getenv("NEXUS_CHANNEL_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.LoadChannel(cfgPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	slog.Info("config loaded", "channel_id", cfg.ID, "port", cfg.Port, "world_addr", cfg.WorldAddress, "world_port", cfg.WorldPort)

	dhParams, err := cfg.DHParams()
	if err != nil {
		return fmt.Errorf("preparing Diffie-Hellman parameters: %w", err)
	}

	sync := syncmgr.NewManager()
	if err := sync.RegisterType(&syncmgr.TypeConfig{Name: "Account", Persistent: false,
		Decode: func(stream []byte) (any, error) { return stream, nil },
		Encode: func(record any) ([]byte, error) { return record.([]byte), nil },
		UpdateHandler: func(mgr *syncmgr.Manager, key string, record any, isRemove bool, source string) (syncmgr.Result, error) {
			return syncmgr.Handled, nil
		},
	}); err != nil {
		return fmt.Errorf("registering Account sync type: %w", err)
	}
	if err := sync.RegisterType(&syncmgr.TypeConfig{Name: "Character", Persistent: true}); err != nil {
		return fmt.Errorf("registering Character sync type: %w", err)
	}

	worldLink := netconn.NewLink()
	h := &handlers{channelID: cfg.ID, syncMgr: sync, worldLink: worldLink}

	workers := make(netconn.StaticPool, 0, cfg.WorkerCount())
	for i := 0; i < cfg.WorkerCount(); i++ {
		w := bus.NewWorker(fmt.Sprintf("channel-worker-%d", i))
		w.AddManager(netconn.NewPacketManager())
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

	worldLinkWorker := bus.NewWorker("channel-world-link")
	worldLinkPM := netconn.NewPacketManager()
	h.register(worldLinkPM)
	worldLinkWorker.AddManager(worldLinkPM)
	worldLinkWorker.Start(false)

	g.Go(func() error {
		return connectToWorld(gctx, cfg, dhParams, worldLinkWorker, worldLink, h)
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("channel server error: %w", err)
	}
	return nil
}

// connectToWorld dials the world process's channel-registration listener
// and keeps the link open for the lifetime of the process, reconnecting
// with a fixed backoff if the world is unreachable (spec §4.4 "each channel
// registers with the world on startup, announcing its channel id").
func connectToWorld(ctx context.Context, cfg config.Channel, dhParams *crypto.DHParams, worker *bus.Worker, link *netconn.Link, h *handlers) error {
	addr := fmt.Sprintf("%s:%d", cfg.WorldAddress, cfg.WorldPort)
	for {
		if ctx.Err() != nil {
			return nil
		}

		conn, err := net.Dial("tcp", addr)
		if err != nil {
			slog.Warn("world link dial failed, retrying", "addr", addr, "error", err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(5 * time.Second):
				continue
			}
		}

		slog.Info("connected to world", "addr", addr, "channel_id", cfg.ID)
		c := netconn.NewConnection(0, conn, netconn.RoleClient, dhParams, worker.Queue())
		if m, ok := worker.Manager(bus.KindPacket); ok {
			if pm, ok := m.(*netconn.PacketManager); ok {
				pm.Track(c)
				pm.OnEncrypted(func(conn *netconn.Connection) {
					link.Set(conn)
					if err := h.announce(); err != nil {
						slog.Error("failed to announce channel id to world", "error", err)
					}
				})
			}
		}

		c.ReadLoop(ctx)
		link.Clear(c)

		if ctx.Err() != nil {
			return nil
		}
		slog.Warn("world link dropped, reconnecting", "addr", addr)
	}
}
