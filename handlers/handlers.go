// handlers/handlers.go - Shared service wiring for the HTTP layer
package handlers

import (
	"mindhunt/database"
	"mindhunt/realtime"
	"mindhunt/services"
)

var (
	hub            *realtime.Hub
	catalogService *services.CatalogService
	teamService    *services.TeamService
	unlockService  *services.UnlockService
	guessService   *services.GuessService
	hintScheduler  *services.HintScheduler
)

// Init wires every handler to the shared services. Must run after
// database.InitDB.
func Init(h *realtime.Hub, scheduler *services.HintScheduler) {
	db := database.GetDB()
	if db == nil {
		panic("Database not initialized before handlers.Init")
	}

	hub = h
	hintScheduler = scheduler
	catalogService = services.NewCatalogService(db)
	unlockService = services.NewUnlockService()
	teamService = services.NewTeamService(db, unlockService, scheduler)
	guessService = services.NewGuessService(db, unlockService, scheduler, hub)
}
