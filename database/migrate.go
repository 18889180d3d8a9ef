// database/migrate.go - Database Migration Runner
package database

import (
	"log"
	"mindhunt/models"

	"gorm.io/gorm"
)

// RunMigrations runs all database migrations
func RunMigrations() {
	db := GetDB()
	log.Println("🔄 Running database migrations...")

	if err := Migrate(db); err != nil {
		log.Fatalf("❌ Failed to run migrations: %v", err)
	}

	createIndexes(db)

	log.Println("✅ All migrations completed successfully")
}

// Migrate creates or updates the schema for every model. Split out
// from RunMigrations so tests can migrate an in-memory database.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Hunt{},
		&models.Episode{},
		&models.Puzzle{},
		&models.Eureka{},
		&models.Hint{},
		&models.Team{},
		&models.Guess{},
		&models.TeamPuzzleLink{},
		&models.PuzzleSolve{},
		&models.TeamEpisodeLink{},
		&models.EpisodeSolve{},
		&models.TeamEurekaLink{},
	)
}

// createIndexes creates indexes the models do not declare via tags
func createIndexes(db *gorm.DB) {
	log.Println("Creating indexes...")

	db.Exec("CREATE INDEX IF NOT EXISTS idx_guesses_team_puzzle ON guesses(team_id, puzzle_id, guess_time)")
	db.Exec("CREATE INDEX IF NOT EXISTS idx_episode_solves_episode_time ON episode_solves(episode_id, time)")
	db.Exec("CREATE INDEX IF NOT EXISTS idx_puzzles_episode_number ON puzzles(episode_id, number)")
	db.Exec("CREATE INDEX IF NOT EXISTS idx_teams_join_code ON teams(join_code)")

	log.Println("✅ Indexes created successfully")
}
