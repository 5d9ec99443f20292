// Package config reads the per-profile device configuration of the fwstage
// CLI: slot geometry and where the slot images and the persistent state
// live.
package config

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/mcustage/fwstage/internal/devflag"
)

type Struct struct {
	// Slot geometry, in bytes. ReadSize must be a multiple of ProgramSize.
	SlotSize    int64 `json:",omitempty"`
	ProgramSize int64 `json:",omitempty"`
	ReadSize    int64 `json:",omitempty"`

	// Slot image paths. Relative paths are resolved against the profile
	// directory.
	PrimaryPath   string `json:",omitempty"`
	SecondaryPath string `json:",omitempty"`

	// StateDir holds the persistent upgrade state record.
	StateDir string `json:",omitempty"`
}

func (c *Struct) applyDefaults(profilePath string) {
	if c.SlotSize == 0 {
		c.SlotSize = 512 * 1024
	}
	if c.ProgramSize == 0 {
		c.ProgramSize = 256
	}
	if c.ReadSize == 0 {
		c.ReadSize = 1024
	}
	if c.PrimaryPath == "" {
		c.PrimaryPath = "primary.img"
	}
	if c.SecondaryPath == "" {
		c.SecondaryPath = "secondary.img"
	}
	if c.StateDir == "" {
		c.StateDir = "state"
	}
	c.PrimaryPath = resolve(profilePath, c.PrimaryPath)
	c.SecondaryPath = resolve(profilePath, c.SecondaryPath)
	c.StateDir = resolve(profilePath, c.StateDir)
}

func resolve(base, path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(base, path)
}

func (c *Struct) validate() error {
	if c.ProgramSize <= 0 || c.ReadSize <= 0 || c.SlotSize <= 0 {
		return fmt.Errorf("config: invalid geometry: slot=%d program=%d read=%d", c.SlotSize, c.ProgramSize, c.ReadSize)
	}
	if c.ReadSize%c.ProgramSize != 0 {
		return fmt.Errorf("config: read size %d not a multiple of program size %d", c.ReadSize, c.ProgramSize)
	}
	if c.SlotSize%c.ReadSize != 0 {
		return fmt.Errorf("config: slot size %d not a multiple of read size %d", c.SlotSize, c.ReadSize)
	}
	return nil
}

// ReadFromFile reads profile.json from the selected profile directory. A
// missing file yields the defaults, so a fresh profile works out of the box.
func ReadFromFile() (*Struct, error) {
	profilePath := devflag.Path()
	configJSON := filepath.Join(profilePath, "profile.json")
	var cfg Struct
	b, err := os.ReadFile(configJSON)
	if err == nil {
		log.Printf("reading device profile from %s", configJSON)
		if err := json.Unmarshal(b, &cfg); err != nil {
			return nil, err
		}
	} else if !os.IsNotExist(err) {
		return nil, err
	}
	cfg.applyDefaults(profilePath)
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
