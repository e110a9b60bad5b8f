// Package game wires the mission core to its collaborators and owns
// the run loop.
package game

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/voidworks/darkvr/internal/assets"
	"github.com/voidworks/darkvr/internal/audio"
	"github.com/voidworks/darkvr/internal/config"
	"github.com/voidworks/darkvr/internal/engine/motiondb"
	"github.com/voidworks/darkvr/internal/game/effect"
	"github.com/voidworks/darkvr/internal/game/entity"
	"github.com/voidworks/darkvr/internal/game/mission"
	"github.com/voidworks/darkvr/internal/game/physics"
	"github.com/voidworks/darkvr/internal/game/world"
	"github.com/voidworks/darkvr/internal/logger"
	"github.com/voidworks/darkvr/internal/persist"
	"github.com/voidworks/darkvr/internal/server"
	"github.com/voidworks/darkvr/pkg/formats"
	"github.com/voidworks/darkvr/pkg/math"
)

// tickRate is the fixed simulation step.
const tickRate = 60

// Game owns the mission, the save store, and the debug server.
type Game struct {
	cfg   *config.Config
	cache *assets.Cache
	audio *audio.Manager
	saves *persist.SaveStore
	srv   *server.Server

	core        *mission.Core
	missionName string
}

// New builds the game from config. Asset files that are missing
// degrade to warnings so partial data sets stay runnable.
func New(cfg *config.Config) (*Game, error) {
	g := &Game{
		cfg:   cfg,
		cache: assets.NewCache(cfg.Data.AssetRoot),
	}

	var schema *audio.Schema
	if s, err := audio.LoadSchemaFile(filepath.Join(cfg.Data.AssetRoot, "sounds.yaml")); err == nil {
		schema = s
	} else {
		logger.Warn("no sound schema", zap.Error(err))
	}
	var speech *audio.SpeechDB
	if db, err := audio.LoadSpeechFile(filepath.Join(cfg.Data.AssetRoot, "speech.yaml")); err == nil {
		speech = db
	} else {
		logger.Warn("no speech database", zap.Error(err))
	}

	g.audio = audio.New(schema, speech)
	if !cfg.Audio.Muted {
		if err := g.audio.Init(); err != nil {
			logger.Warn("audio unavailable", zap.Error(err))
			g.audio = nil
		} else {
			g.audio.SetMasterVolume(float64(cfg.Audio.MasterVolume))
		}
	} else {
		g.audio = nil
	}

	saves, err := persist.Open(cfg.Data.SaveFile)
	if err != nil {
		return nil, err
	}
	g.saves = saves

	if err := g.loadMission(cfg.Mission.Name, cfg.Mission.Spawn); err != nil {
		return nil, err
	}

	g.srv = server.New(cfg.Server.Port, g.telemetry)
	return g, nil
}

// Close releases the game's resources.
func (g *Game) Close() {
	if g.audio != nil {
		g.audio.Close()
	}
	if g.saves != nil {
		_ = g.saves.Close()
	}
}

// loadMission builds a fresh mission core for the named level.
func (g *Game) loadMission(name, spawn string) error {
	store := entity.NewStore()
	phys := physics.NewSimWorld()

	var nav *world.PathDatabase
	aipathFile := filepath.Join(g.cfg.Data.AssetRoot, name+".aipath")
	if ap, err := formats.ParseAIPathFile(aipathFile); err == nil {
		nav = world.NewPathDatabase(ap)
	} else {
		logger.Warn("no path database", zap.String("mission", name), zap.Error(err))
	}

	var motions *motiondb.Database
	motionFile := filepath.Join(g.cfg.Data.AssetRoot, "motiondb.json")
	if data, err := os.ReadFile(motionFile); err == nil {
		db, err := motiondb.Load(data)
		if err != nil {
			return err
		}
		motions = db
	} else {
		logger.Warn("no motion database", zap.Error(err))
	}

	var snd mission.Audio
	if g.audio != nil {
		snd = g.audio
	}
	core := mission.New(store, phys, nav, motions, g.cache, snd)
	core.SetDebugDraw(g.cfg.Debug.Draw)

	start := math.Vec3{}
	if ref, err := config.ParseMissionArg(name + ":" + spawn); err == nil && ref.HasPoint {
		start = ref.Point
	}
	core.SpawnPlayer(start)

	g.core = core
	g.missionName = name
	logger.Info("mission loaded", zap.String("mission", name))
	return nil
}

func (g *Game) telemetry() server.Telemetry {
	frame := server.Telemetry{Time: g.core.Time(), Alert: make(map[string]int)}
	store := g.core.Store()
	frame.Entities = len(store.Positions)
	for _, a := range store.Alertness {
		frame.Alert[a.Current.String()]++
	}
	return frame
}

// Run drives the fixed-step loop until the process is signalled.
func (g *Game) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srvErr := make(chan error, 1)
	go func() { srvErr <- g.srv.Run(ctx) }()

	ticker := time.NewTicker(time.Second / tickRate)
	defer ticker.Stop()

	const dt = 1.0 / float32(tickRate)
	for {
		select {
		case <-ctx.Done():
			logger.Info("shutting down")
			return <-srvErr
		case err := <-srvErr:
			return err
		case <-ticker.C:
			globals := g.core.Tick(dt, mission.Input{})
			for _, e := range globals {
				g.handleGlobal(e)
			}
		}
	}
}

func (g *Game) handleGlobal(e effect.Effect) {
	switch e.Kind {
	case effect.KindSaveGame:
		rec := persist.SaveRecord{
			Name:     "quick",
			Mission:  g.missionName,
			Held:     heldItemsFromCarries(g.core.HeldForTransfer()),
			Snapshot: persist.SnapshotStore(g.core.Store(), g.missionName),
		}
		if err := g.saves.Put(rec); err != nil {
			logger.Error("save failed", zap.Error(err))
			return
		}
		logger.Info("game saved", zap.String("mission", g.missionName))

	case effect.KindTransitionLevel:
		// The player's hands and inventory travel with them.
		carried := g.core.HeldForTransfer()
		if err := g.loadMission(e.Mission, "default"); err != nil {
			logger.Error("level transition failed", zap.String("mission", e.Mission), zap.Error(err))
			return
		}
		g.core.InjectHeld(carried)
	}
}

// heldItemsFromCarries splits a held-item snapshot into the save
// record's hand and inventory slots.
func heldItemsFromCarries(carries []mission.HeldCarry) persist.HeldItems {
	var held persist.HeldItems
	for _, c := range carries {
		switch c.Slot {
		case mission.SlotLeftHand:
			held.LeftHand = c.Name
		case mission.SlotRightHand:
			held.RightHand = c.Name
		default:
			held.Inventory = append(held.Inventory, c.Name)
		}
	}
	return held
}
