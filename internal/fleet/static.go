package fleet

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"dronenav/internal/geo"
	"dronenav/internal/model"
)

// StaticSource serves a fixed Snapshot. It backs the CLI, tests, and the
// per-request frozen view the planner works against.
type StaticSource struct {
	Snap Snapshot
}

func (s StaticSource) Drones(context.Context) ([]model.Drone, error) { return s.Snap.Drones, nil }

func (s StaticSource) ServicePoints(context.Context) ([]model.ServicePoint, error) {
	return s.Snap.ServicePoints, nil
}

func (s StaticSource) Availability(context.Context) ([]model.ServicePointDrones, error) {
	return s.Snap.Availability, nil
}

func (s StaticSource) RestrictedAreas(context.Context) ([]geo.RestrictedArea, error) {
	return s.Snap.RestrictedAreas, nil
}

// LoadSnapshot reads a snapshot file; .yaml/.yml files are YAML, anything else JSON.
func LoadSnapshot(path string) (Snapshot, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Snapshot{}, err
	}
	var s Snapshot
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(b, &s)
	default:
		err = json.Unmarshal(b, &s)
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("snapshot %s: %w", path, err)
	}
	return s, nil
}
