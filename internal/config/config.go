// Package config reads the per-node MTP configuration file. The format is
// line-oriented key:value pairs, matching the original closnet agent's
// configuration file grammar.
package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pjw7904/closnet/pkg/mlog"
)

const (
	defaultHelloTimer = 500 * time.Millisecond
	defaultDeadTimer  = 1500 * time.Millisecond
)

// Config is the parsed contents of <config_directory>/<node_name>.conf.
type Config struct {
	Tier       uint8
	IsTopSpine bool
	IsLeaf     bool // derived: Tier == 1

	HelloTimer time.Duration
	DeadTimer  time.Duration
}

// IsValidDirectory reports whether path exists and is a directory,
// mirroring isValidDirectory in the original config.c.
func IsValidDirectory(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.IsDir()
}

// FilePath builds <directory>/<name>.<extension>, mirroring getFilePath.
func FilePath(directory, name, extension string) string {
	return fmt.Sprintf("%s/%s.%s", directory, name, extension)
}

// Read parses the configuration file at path. Unknown keys are logged and
// ignored, matching the original parser's posture of silently skipping
// anything it doesn't recognize.
func Read(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening config file: %w", err)
	}
	defer f.Close()

	cfg := &Config{
		HelloTimer: defaultHelloTimer,
		DeadTimer:  defaultDeadTimer,
	}

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}

		parts := strings.SplitN(line, ":", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		switch key {
		case "isTopSpine":
			cfg.IsTopSpine = value == "True"
		case "tier":
			tier, err := strconv.Atoi(value)
			if err != nil {
				return nil, fmt.Errorf("invalid tier %q: %w", value, err)
			}
			cfg.Tier = uint8(tier)
			cfg.IsLeaf = tier == 1
		case "helloTimerMs":
			ms, err := strconv.Atoi(value)
			if err != nil {
				return nil, fmt.Errorf("invalid helloTimerMs %q: %w", value, err)
			}
			cfg.HelloTimer = time.Duration(ms) * time.Millisecond
		case "deadTimerMs":
			ms, err := strconv.Atoi(value)
			if err != nil {
				return nil, fmt.Errorf("invalid deadTimerMs %q: %w", value, err)
			}
			cfg.DeadTimer = time.Duration(ms) * time.Millisecond
		default:
			mlog.Warn("config: ignoring unknown key %q", key)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if cfg.DeadTimer < 3*cfg.HelloTimer {
		return nil, fmt.Errorf("deadTimer (%v) must be >= 3x helloTimer (%v)", cfg.DeadTimer, cfg.HelloTimer)
	}

	return cfg, nil
}
