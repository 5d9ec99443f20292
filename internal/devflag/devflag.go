// Package devflag registers the flags selecting which device profile the
// fwstage CLI operates on.
package devflag

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/pflag"
)

var (
	profile    string
	profileDir string
)

func RegisterPflags(fs *pflag.FlagSet) {
	def := os.Getenv("FWSTAGE_PROFILE")
	if def == "" {
		def = "default"
	}
	fs.StringVarP(&profile,
		"profile",
		"p",
		def,
		`device profile name`)

	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = fmt.Sprintf("os.UserHomeDir failed: %v", err)
	}
	fs.StringVar(&profileDir,
		"profile_dir",
		filepath.Join(homeDir, ".fwstage"),
		`directory holding device profiles`)
}

func Profile() string {
	return profile
}

func ProfileDir() string {
	return profileDir
}

// Path returns the directory of the selected profile.
func Path() string {
	return filepath.Join(profileDir, profile)
}
