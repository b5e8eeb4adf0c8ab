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
	"github.com/nexusmmo/core/internal/db"
	"github.com/nexusmmo/core/internal/group"
	"github.com/nexusmmo/core/internal/netconn"
	"github.com/nexusmmo/core/internal/registry"
	syncmgr "github.com/nexusmmo/core/internal/sync"
)

const ConfigPath = "config/world.yaml"

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
	slog.Info("world process starting")

	cfgPath := ConfigPath
	if p := os.Getenv("NEXUS_WORLD_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.LoadWorld(cfgPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	slog.Info("config loaded", "port", cfg.Port, "lobby_addr", cfg.LobbyAddress, "lobby_port", cfg.LobbyPort)

	database, err := db.New(ctx, cfg.Database.DSN())
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer database.Close()
	slog.Info("world database connected")

	if err := db.RunWorldMigrations(ctx, cfg.Database.DSN()); err != nil {
		return fmt.Errorf("running world migrations: %w", err)
	}
	slog.Info("world migrations applied")

	characters := registry.NewCharacterRegistry()
	online := func(cid int32) bool {
		_, ok := characters.Lookup(cid)
		return ok
	}
	resolveUUID := func(cid int32) (string, bool) {
		entry, ok := characters.Lookup(cid)
		if !ok {
			return "", false
		}
		return entry.UUID, true
	}

	clanStore := db.NewClanRepository(database.Pool(), resolveUUID)
	characterRepo := db.NewCharacterRepository(database.Pool())

	timers := bus.NewTimerManager()
	defer timers.Stop()

	sync := syncmgr.NewManager()

	// channelPicker picks the channel a formed match of matchType is
	// assigned to. It always returns channel 1; the connected channels in
	// the ChannelDirectory are not consulted.
	channelPicker := group.ChannelPicker(func(matchType int32) int8 { return 1 })

	coordinator := group.NewCoordinator(characters, clanStore, online, timers, sync, cfg.Match.ToMatchConfig(), channelPicker)
	dispatcher := group.NewDispatcher(coordinator)

	effects := &loginEffectsAdapter{characterRepo: characterRepo, clan: coordinator.Clan}
	accounts := registry.NewAccountRegistry(cfg.ChannelConnectionTimeout, characters, effects)

	directory := netconn.NewChannelDirectory()

	if err := sync.RegisterType(&syncmgr.TypeConfig{
		Name:        "Account",
		Persistent:  false,
		ServerOwned: false,
		Decode:      func(stream []byte) (any, error) { return stream, nil },
		Encode:      func(record any) ([]byte, error) { return record.([]byte), nil },
		UpdateHandler: func(mgr *syncmgr.Manager, key string, record any, isRemove bool, source string) (syncmgr.Result, error) {
			// World is not the authority for account state, only the relay
			// between lobby and channels; queue what arrives for outbound
			// sync to every connection subscribed to Account. The source
			// connection is not excluded.
			if isRemove {
				mgr.RemoveRecord("Account", key, record)
			} else {
				mgr.UpdateRecord("Account", key, record)
			}
			return syncmgr.Handled, nil
		},
	}); err != nil {
		return fmt.Errorf("registering Account sync type: %w", err)
	}

	if err := sync.RegisterType(&syncmgr.TypeConfig{
		Name:        "Character",
		Persistent:  true,
		ServerOwned: true,
		Load: func(uuid string) (any, error) {
			return characterRepo.ByUUID(ctx, uuid)
		},
	}); err != nil {
		return fmt.Errorf("registering Character sync type: %w", err)
	}

	timers.RegisterPeriodic(cfg.SyncInterval(), sync.SyncOutgoing)
	timers.RegisterPeriodic(time.Second, func() {
		for _, username := range accounts.ExpireTimedOutSwitches(time.Now()) {
			slog.Warn("channel switch timed out, reverting", "account", username)
		}
	})

	h := &handlers{
		characters:  characters,
		accounts:    accounts,
		coordinator: coordinator,
		dispatcher:  dispatcher,
		syncMgr:     sync,
		directory:   directory,
	}

	dhParams, err := cfg.DHParams()
	if err != nil {
		return fmt.Errorf("preparing Diffie-Hellman parameters: %w", err)
	}

	workers := make(netconn.StaticPool, 0, cfg.WorkerCount())
	for i := 0; i < cfg.WorkerCount(); i++ {
		w := bus.NewWorker(fmt.Sprintf("world-worker-%d", i))
		pm := netconn.NewPacketManager()
		h.register(pm)
		w.AddManager(pm)
		w.Start(false)
		workers = append(workers, w)
	}
	slog.Info("worker pool started", "workers", len(workers))

	channelServer := netconn.NewServer(workers, dhParams)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("channel listener starting", "addr", cfg.BindAddress())
		if err := channelServer.Run(gctx, cfg.BindAddress()); err != nil {
			return fmt.Errorf("channel listener: %w", err)
		}
		return nil
	})

	lobbyLinkWorker := bus.NewWorker("world-lobby-link")
	lobbyLinkPM := netconn.NewPacketManager()
	h.register(lobbyLinkPM)
	lobbyLinkWorker.AddManager(lobbyLinkPM)
	lobbyLinkWorker.Start(false)

	g.Go(func() error {
		return connectToLobby(gctx, cfg, dhParams, lobbyLinkWorker)
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("world server error: %w", err)
	}
	return nil
}

// connectToLobby dials the lobby's world-registration listener and keeps
// the link open for the lifetime of the process, reconnecting with a fixed
// backoff if the lobby is unreachable (spec §4.4 "the world process
// registers itself with the lobby").
func connectToLobby(ctx context.Context, cfg config.World, dhParams *crypto.DHParams, worker *bus.Worker) error {
	addr := fmt.Sprintf("%s:%d", cfg.LobbyAddress, cfg.LobbyPort)
	for {
		if ctx.Err() != nil {
			return nil
		}

		conn, err := net.Dial("tcp", addr)
		if err != nil {
			slog.Warn("lobby link dial failed, retrying", "addr", addr, "error", err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(5 * time.Second):
				continue
			}
		}

		slog.Info("connected to lobby", "addr", addr)
		c := netconn.NewConnection(0, conn, netconn.RoleClient, dhParams, worker.Queue())
		if m, ok := worker.Manager(bus.KindPacket); ok {
			if pm, ok := m.(*netconn.PacketManager); ok {
				pm.Track(c)
			}
		}
		c.ReadLoop(ctx)

		if ctx.Err() != nil {
			return nil
		}
		slog.Warn("lobby link dropped, reconnecting", "addr", addr)
	}
}
