package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"

	"fleetwatch-backend/internal/config"
	"fleetwatch-backend/internal/database"
)

func main() {
	fleetsFile := flag.String("fleets", "", "fleet definitions to import (defaults to FLEETS_FILE)")
	flag.Parse()

	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL environment variable not set")
	}

	db, err := database.Connect(dbURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}
	log.Println("Schema is up to date")

	if email, password := os.Getenv("ADMIN_EMAIL"), os.Getenv("ADMIN_PASSWORD"); email != "" && password != "" {
		if err := database.SeedAdmin(db, email, password); err != nil {
			log.Fatalf("Failed to seed admin: %v", err)
		}
	}

	path := *fleetsFile
	if path == "" {
		path = os.Getenv("FLEETS_FILE")
	}
	if path == "" {
		log.Println("No fleets file given, skipping fleet import")
		return
	}

	fleets, err := config.LoadFleetsFile(path)
	if err != nil {
		log.Fatalf("Failed to read fleets: %v", err)
	}
	fleets, err = config.FilterValidFleets(fleets)
	if err != nil {
		log.Fatalf("Nothing to import: %v", err)
	}

	ctx := context.Background()
	if err := database.SeedFleets(ctx, db, fleets); err != nil {
		log.Fatalf("Fleet import failed: %v", err)
	}

	// Query and display summary
	var result struct {
		Fleets int `db:"fleets"`
		Units  int `db:"units"`
		Zones  int `db:"zones"`
	}
	query := `
		SELECT
			(SELECT COUNT(*) FROM fleets) AS fleets,
			(SELECT COUNT(*) FROM fleet_units) AS units,
			(SELECT COUNT(*) FROM zones) AS zones
	`
	if err := db.GetContext(ctx, &result, query); err != nil {
		log.Fatalf("Failed to query summary: %v", err)
	}

	fmt.Println("\n============================================================")
	fmt.Println("IMPORT SUMMARY")
	fmt.Println("============================================================")
	fmt.Printf("Fleets:  %d\n", result.Fleets)
	fmt.Printf("Units:   %d\n", result.Units)
	fmt.Printf("Zones:   %d\n", result.Zones)
	fmt.Println("============================================================")
}
