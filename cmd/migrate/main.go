package main

import (
	"log"

	"medichat-be/internal/config"
	"medichat-be/internal/model"
	"medichat-be/pkg/database"
)

func main() {
	cfg := config.Load()

	db, err := database.NewGormDBFromDSN(cfg.Database.Connection)
	if err != nil {
		log.Fatalf("Unable to connect to GORM DB: %v", err)
	}

	if err := db.AutoMigrate(
		&model.User{},
		&model.ChatSession{},
		&model.ChatMessage{},
	); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}

	log.Println("✅ Migration complete")
}
