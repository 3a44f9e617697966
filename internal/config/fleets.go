package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"fleetwatch-backend/internal/geo"
	"fleetwatch-backend/internal/models"
)

// ErrNoFleets is returned when no configured fleet passes validation
var ErrNoFleets = errors.New("no valid fleets configured")

type fleetsFile struct {
	Fleets []models.Fleet `json:"fleets"`
}

// LoadFleetsFile reads fleet definitions from a JSON file.
// The file must have a .json extension and be under 1MB.
func LoadFleetsFile(path string) ([]models.Fleet, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("fleets file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat fleets file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("fleets file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read fleets file: %w", err)
	}

	var parsed fleetsFile
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse fleets JSON: %w", err)
	}

	for i := range parsed.Fleets {
		NormalizeFleet(&parsed.Fleets[i])
	}
	return parsed.Fleets, nil
}

// NormalizeFleet fills ids, trims unit ids and stamps zone kinds
func NormalizeFleet(f *models.Fleet) {
	f.Name = strings.TrimSpace(f.Name)
	if f.ID == "" {
		f.ID = Slug(f.Name)
	}
	f.Enabled = true

	seen := make(map[string]bool, len(f.UnitIDs))
	ids := make([]string, 0, len(f.UnitIDs))
	for _, id := range f.UnitIDs {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	f.UnitIDs = ids

	var zones models.ZoneSet
	for _, z := range f.Zones.All() {
		zones.Add(z)
	}
	f.Zones = zones
}

// ValidateFleet rejects fleets that would render an empty or misleading dashboard
func ValidateFleet(f models.Fleet) error {
	if f.Name == "" {
		return fmt.Errorf("fleet %q: name is required", f.ID)
	}
	if len(f.UnitIDs) == 0 {
		return fmt.Errorf("fleet %q: unit id list is empty", f.Name)
	}
	if f.Zones.Count() == 0 {
		return fmt.Errorf("fleet %q: no zones defined", f.Name)
	}
	for _, z := range f.Zones.All() {
		if !geo.ValidCoordinate(z.Latitude, z.Longitude) {
			return fmt.Errorf("fleet %q: zone %q has invalid coordinates (%v, %v)", f.Name, z.Label, z.Latitude, z.Longitude)
		}
	}
	return nil
}

// FilterValidFleets drops invalid fleets with a logged error.
// It fails only when nothing survives.
func FilterValidFleets(fleets []models.Fleet) ([]models.Fleet, error) {
	valid := make([]models.Fleet, 0, len(fleets))
	seen := make(map[string]bool)
	for _, f := range fleets {
		if err := ValidateFleet(f); err != nil {
			log.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
			log.Printf("❌ Fleet disabled: %v", err)
			log.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
			continue
		}
		if seen[f.ID] {
			log.Printf("❌ Fleet disabled: duplicate fleet id %q", f.ID)
			continue
		}
		seen[f.ID] = true
		valid = append(valid, f)
	}
	if len(valid) == 0 {
		return nil, ErrNoFleets
	}
	return valid, nil
}

// Slug turns a fleet name into a URL-safe id
func Slug(name string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
