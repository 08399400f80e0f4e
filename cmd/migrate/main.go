package main

import (
	"log"
	"os"

	"support-chat-be/internal/model"
	"support-chat-be/pkg/database"

	"github.com/joho/godotenv"
)

func main() {
	// 1. Load Environment Variables
	if err := godotenv.Load(); err != nil {
		log.Println("Info: No .env file found, using system env")
	}

	dsn := os.Getenv("DB_CONNECTION_STRING")
	if dsn == "" {
		log.Fatal("Error: DB_CONNECTION_STRING is not set")
	}

	// 2. Connect to Database using existing GORM helpers
	db, err := database.NewGormDBFromDSN(dsn)
	if err != nil {
		log.Fatal("Error: Failed to connect to database:", err)
	}

	log.Println("Starting GORM Migration...")

	// 3. AutoMigrate
	models := []interface{}{
		&model.ChatSession{},
		&model.ChatMessage{},
	}

	if err := db.AutoMigrate(models...); err != nil {
		log.Fatalf("Error: AutoMigrate failed: %v", err)
	}

	// 4. Post-Migration: constraints and partial indexes AutoMigrate cannot express
	postMigrationSQL := []string{
		`DO $$ BEGIN IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = 'chk_chat_sessions_status') THEN ALTER TABLE chat_sessions ADD CONSTRAINT chk_chat_sessions_status CHECK (status IN ('active', 'closed', 'archived')); END IF; END $$;`,
		`DO $$ BEGIN IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = 'chk_chat_sessions_ended_at') THEN ALTER TABLE chat_sessions ADD CONSTRAINT chk_chat_sessions_ended_at CHECK ((status = 'active') = (ended_at IS NULL)); END IF; END $$;`,
		`DO $$ BEGIN IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = 'chk_chat_sessions_closed_agent') THEN ALTER TABLE chat_sessions ADD CONSTRAINT chk_chat_sessions_closed_agent CHECK (status <> 'closed' OR agent_id IS NOT NULL); END IF; END $$;`,
		`DO $$ BEGIN IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = 'chk_chat_messages_sender_type') THEN ALTER TABLE chat_messages ADD CONSTRAINT chk_chat_messages_sender_type CHECK (sender_type IN ('contact', 'agent', 'system')); END IF; END $$;`,
		`CREATE INDEX IF NOT EXISTS idx_chat_sessions_idle ON chat_sessions (updated_at) WHERE status = 'active';`,
		`CREATE INDEX IF NOT EXISTS idx_chat_messages_unread ON chat_messages (session_id) WHERE read_at IS NULL;`,
	}

	for _, sql := range postMigrationSQL {
		if err := db.Exec(sql).Error; err != nil {
			log.Printf("Warn: Failed to execute post-migration SQL: %v", err)
		}
	}

	log.Println("✅ Success: Database migration completed successfully via GORM.")
}
