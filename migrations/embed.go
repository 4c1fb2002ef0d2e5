// Package migrations embeds the SensorHub schema into the binary.
package migrations

import (
	"embed"

	"github.com/nerrad567/sensorhub/internal/infrastructure/database"
)

//go:embed *.sql
var migrationsFS embed.FS

func init() {
	database.MigrationsFS = migrationsFS
	database.MigrationsDir = "."
}
