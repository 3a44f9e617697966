package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"fleetwatch-backend/internal/config"
)

const thresholdsKey = "thresholds"

// LoadThresholds returns the persisted thresholds, or ok=false when none were saved
func LoadThresholds(ctx context.Context, db *sqlx.DB) (th config.Thresholds, ok bool, err error) {
	var raw []byte
	err = db.GetContext(ctx, &raw, `SELECT value FROM settings WHERE key = $1`, thresholdsKey)
	if errors.Is(err, sql.ErrNoRows) {
		return th, false, nil
	}
	if err != nil {
		return th, false, fmt.Errorf("failed to load settings: %w", err)
	}
	if err := json.Unmarshal(raw, &th); err != nil {
		return th, false, fmt.Errorf("failed to decode settings: %w", err)
	}
	return th, true, nil
}

func SaveThresholds(ctx context.Context, db *sqlx.DB, th config.Thresholds) error {
	raw, err := json.Marshal(th)
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, `
		INSERT INTO settings (key, value)
		VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE
		SET value = EXCLUDED.value, updated_at = EXTRACT(EPOCH FROM NOW())::BIGINT
	`, thresholdsKey, raw)
	if err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}
	return nil
}
