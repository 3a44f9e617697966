package database

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"fleetwatch-backend/internal/models"
)

type fleetUnitRow struct {
	FleetID string `db:"fleet_id"`
	UnitID  string `db:"unit_id"`
}

// LoadFleets reads every fleet with its unit ids and zones
func LoadFleets(ctx context.Context, db *sqlx.DB) ([]models.Fleet, error) {
	var fleets []models.Fleet
	if err := db.SelectContext(ctx, &fleets, `SELECT id, name, enabled FROM fleets ORDER BY name`); err != nil {
		return nil, fmt.Errorf("failed to load fleets: %w", err)
	}

	byID := make(map[string]*models.Fleet, len(fleets))
	for i := range fleets {
		byID[fleets[i].ID] = &fleets[i]
	}

	var units []fleetUnitRow
	if err := db.SelectContext(ctx, &units, `SELECT fleet_id, unit_id FROM fleet_units ORDER BY fleet_id, position`); err != nil {
		return nil, fmt.Errorf("failed to load fleet units: %w", err)
	}
	for _, u := range units {
		if f, ok := byID[u.FleetID]; ok {
			f.UnitIDs = append(f.UnitIDs, u.UnitID)
		}
	}

	var zones []models.Zone
	if err := db.SelectContext(ctx, &zones, `SELECT id, fleet_id, kind, label, latitude, longitude FROM zones ORDER BY fleet_id, kind, label`); err != nil {
		return nil, fmt.Errorf("failed to load zones: %w", err)
	}
	for _, z := range zones {
		if f, ok := byID[z.FleetID]; ok {
			f.Zones.Add(z)
		}
	}

	return fleets, nil
}

// UpsertFleet replaces a fleet's units and zones in one transaction
func UpsertFleet(ctx context.Context, db *sqlx.DB, fleet models.Fleet) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO fleets (id, name, enabled)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name, enabled = EXCLUDED.enabled, updated_at = EXTRACT(EPOCH FROM NOW())::BIGINT
	`, fleet.ID, fleet.Name, fleet.Enabled); err != nil {
		return fmt.Errorf("failed to upsert fleet %s: %w", fleet.ID, err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM fleet_units WHERE fleet_id = $1`, fleet.ID); err != nil {
		return fmt.Errorf("failed to clear units: %w", err)
	}
	for i, unitID := range fleet.UnitIDs {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO fleet_units (fleet_id, unit_id, position) VALUES ($1, $2, $3)`,
			fleet.ID, unitID, i,
		); err != nil {
			return fmt.Errorf("failed to insert unit %s: %w", unitID, err)
		}
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM zones WHERE fleet_id = $1`, fleet.ID); err != nil {
		return fmt.Errorf("failed to clear zones: %w", err)
	}
	for _, zone := range fleet.Zones.All() {
		if zone.ID == "" {
			zone.ID = uuid.New().String()
		}
		zone.FleetID = fleet.ID
		if _, err := tx.NamedExecContext(ctx, `
			INSERT INTO zones (id, fleet_id, kind, label, latitude, longitude)
			VALUES (:id, :fleet_id, :kind, :label, :latitude, :longitude)
		`, zone); err != nil {
			return fmt.Errorf("failed to insert zone %s: %w", zone.Label, err)
		}
	}

	return tx.Commit()
}
