// cmd/seed/main.go
//
// Loads the location catalog from a JSON file into the database:
//
//	seed -file locations.json
//
// The file is an array of {"lat": .., "lon": .., "region": "..", "country": ".."}.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"

	"github.com/geoduel-gg/geoduel/internal/database"
	"github.com/geoduel-gg/geoduel/internal/models"
)

func main() {
	file := flag.String("file", "locations.json", "path to the location catalog")
	flag.Parse()

	logger := logrus.New()

	data, err := os.ReadFile(*file)
	if err != nil {
		logger.Fatalf("failed to read %s: %v", *file, err)
	}
	var locs []models.Location
	if err := json.Unmarshal(data, &locs); err != nil {
		logger.Fatalf("failed to parse %s: %v", *file, err)
	}
	if len(locs) == 0 {
		logger.Fatalf("%s holds no locations", *file)
	}

	database.ConnectDB()
	ctx := context.Background()
	if err := database.RunMigrations(ctx, database.DSN()); err != nil {
		logger.Fatalf("migrations failed: %v", err)
	}

	inserted := 0
	for i := range locs {
		if err := database.InsertLocation(ctx, &locs[i]); err != nil {
			logger.WithError(err).WithFields(logrus.Fields{
				"lat": locs[i].Lat, "lon": locs[i].Lon,
			}).Warn("skipping location")
			continue
		}
		inserted++
	}
	logger.Infof("seeded %d of %d locations from %s", inserted, len(locs), *file)
}
