// Package scenario locates the LaserTagBox simulation config and reads the
// two values the client needs from it: the step count and the map file.
package scenario

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

const (
	// BoxDir is the directory the simulation project lives in.
	BoxDir = "LaserTagBox"
	// ConfigFile is the simulation config inside BoxDir.
	ConfigFile = "config.json"
	// MapLayer is the layer whose file is the map.
	MapLayer = "PlayerBodyLayer"
)

var (
	ErrNotFound        = errors.New("LaserTagBox directory not found")
	ErrMapLayerMissing = errors.New(MapLayer + " not found in config")
)

// Scenario is what the client takes from the simulation config.
type Scenario struct {
	ConfigPath string
	Steps      int
	MapPath    string
}

type layer struct {
	Name string `mapstructure:"name"`
	File string `mapstructure:"file"`
}

// FindRoot walks up from start to the first directory containing BoxDir.
func FindRoot(start string) (string, error) {
	dir, err := filepath.Abs(start)
	if err != nil {
		return "", err
	}
	for {
		if info, err := os.Stat(filepath.Join(dir, BoxDir)); err == nil && info.IsDir() {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("%w above %s", ErrNotFound, start)
		}
		dir = parent
	}
}

// ConfigPath returns the config file of the nearest LaserTagBox above start.
func ConfigPath(start string) (string, error) {
	root, err := FindRoot(start)
	if err != nil {
		return "", err
	}
	path := filepath.Join(root, BoxDir, ConfigFile)
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("scenario config: %w", err)
	}
	return path, nil
}

// Load reads globals.steps and the map layer file from configPath. The map
// path is resolved relative to the LaserTagBox directory.
func Load(configPath string) (Scenario, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("json")
	if err := v.ReadInConfig(); err != nil {
		return Scenario{}, fmt.Errorf("read scenario config: %w", err)
	}

	var layers []layer
	if err := v.UnmarshalKey("layers", &layers); err != nil {
		return Scenario{}, fmt.Errorf("decode layers: %w", err)
	}

	s := Scenario{ConfigPath: configPath, Steps: v.GetInt("globals.steps")}
	for _, l := range layers {
		if l.Name == MapLayer {
			root := filepath.Dir(filepath.Dir(configPath))
			s.MapPath = filepath.Join(root, BoxDir, l.File)
			return s, nil
		}
	}
	return Scenario{}, ErrMapLayerMissing
}

// Discover finds and loads the scenario above start.
func Discover(start string) (Scenario, error) {
	path, err := ConfigPath(start)
	if err != nil {
		return Scenario{}, err
	}
	return Load(path)
}
