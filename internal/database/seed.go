package database

import (
	"context"
	"log"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"golang.org/x/crypto/bcrypt"

	"fleetwatch-backend/internal/models"
)

// SeedAdmin creates the first admin account when the users table is empty
func SeedAdmin(db *sqlx.DB, email, password string) error {
	var count int
	if err := db.Get(&count, "SELECT COUNT(*) FROM users"); err != nil {
		return err
	}

	if count > 0 {
		log.Println("✓ Users already seeded, skipping...")
		return nil
	}

	log.Println("🌱 Seeding admin user...")

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	user := map[string]interface{}{
		"id":       uuid.New().String(),
		"email":    email,
		"password": string(hashed),
		"name":     "Administrador",
		"role":     models.RoleAdmin,
	}

	query := `
		INSERT INTO users (id, email, password, name, role)
		VALUES (:id, :email, :password, :name, :role)
	`
	if _, err := db.NamedExec(query, user); err != nil {
		return err
	}

	log.Printf("  ✓ Created user: %s (%s)", email, models.RoleAdmin)
	return nil
}

// SeedFleets writes the given fleets, replacing units and zones of existing ones
func SeedFleets(ctx context.Context, db *sqlx.DB, fleets []models.Fleet) error {
	log.Printf("🌱 Seeding %d fleets...", len(fleets))
	for _, fleet := range fleets {
		if err := UpsertFleet(ctx, db, fleet); err != nil {
			return err
		}
		log.Printf("  ✓ %s: %d units, %d zones", fleet.Name, len(fleet.UnitIDs), fleet.Zones.Count())
	}
	return nil
}
