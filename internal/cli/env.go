package cli

import (
	"fmt"

	"github.com/mcustage/fwstage/blockdev"
	"github.com/mcustage/fwstage/boot"
	"github.com/mcustage/fwstage/internal/config"
	"github.com/mcustage/fwstage/kvstore"
	"github.com/mcustage/fwstage/stage"
	"github.com/mcustage/fwstage/upgstate"
)

// env wires the engine against the file-backed devices and state of the
// selected profile.
type env struct {
	cfg       *config.Struct
	primary   *blockdev.FileDevice
	secondary *blockdev.FileDevice
	loader    *boot.TrailerLoader
	state     *upgstate.Store
	engine    *stage.Engine
}

func newEnv(opts ...stage.Option) (*env, error) {
	cfg, err := config.ReadFromFile()
	if err != nil {
		return nil, err
	}

	primary, err := blockdev.NewFileDevice(cfg.PrimaryPath, cfg.SlotSize, cfg.ProgramSize, cfg.ReadSize)
	if err != nil {
		return nil, err
	}
	if err := primary.Init(); err != nil {
		return nil, fmt.Errorf("primary slot %s: %w", cfg.PrimaryPath, err)
	}
	// The loader gets its own handle to the secondary slot; the engine
	// acquires a fresh one per staging attempt.
	secondary, err := blockdev.NewFileDevice(cfg.SecondaryPath, cfg.SlotSize, cfg.ProgramSize, cfg.ReadSize)
	if err != nil {
		primary.Deinit()
		return nil, err
	}
	if err := secondary.Init(); err != nil {
		primary.Deinit()
		return nil, fmt.Errorf("secondary slot %s: %w", cfg.SecondaryPath, err)
	}

	loader := boot.NewTrailerLoader(primary, secondary)
	state := upgstate.New(kvstore.NewFileStore(cfg.StateDir))
	openSecondary := func() (blockdev.Device, error) {
		return blockdev.NewFileDevice(cfg.SecondaryPath, cfg.SlotSize, cfg.ProgramSize, cfg.ReadSize)
	}

	return &env{
		cfg:       cfg,
		primary:   primary,
		secondary: secondary,
		loader:    loader,
		state:     state,
		engine:    stage.New(openSecondary, loader, state, opts...),
	}, nil
}

func (e *env) close() {
	e.engine.Close()
	e.secondary.Deinit()
	e.primary.Deinit()
}
