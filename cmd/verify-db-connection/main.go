package main

import (
	"database/sql"
	"fmt"
	"log"

	"bridge-backend/internal/config"

	_ "github.com/lib/pq"
)

// Sanity-checks the database connection and the bridge schema: verifies the
// processed_transfers tx_id column is wide enough for a 0x-prefixed 32-byte
// digest and that the primary key enforcing replay protection exists.
func main() {
	fmt.Println("🔍 Verifying database connection and bridge schema...")

	if err := config.LoadConfig(""); err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	dsn := config.AppConfig.Database.DSN
	if dsn == "" {
		log.Fatalf("database.dsn is not configured")
	}

	sqlDB, err := sql.Open("postgres", dsn)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer sqlDB.Close()

	var dbName string
	if err := sqlDB.QueryRow("SELECT current_database()").Scan(&dbName); err != nil {
		log.Fatalf("Failed to query database name: %v", err)
	}
	fmt.Printf("📋 Connected to database: %s\n", dbName)

	var size sql.NullInt64
	err = sqlDB.QueryRow(`
		SELECT character_maximum_length
		FROM information_schema.columns
		WHERE table_schema = 'public'
		AND table_name = 'processed_transfers'
		AND column_name = 'tx_id'
	`).Scan(&size)
	if err != nil {
		log.Fatalf("Failed to query processed_transfers.tx_id: %v (did the server run AutoMigrate?)", err)
	}
	if !size.Valid || size.Int64 < 66 {
		fmt.Printf("❌ processed_transfers.tx_id must be at least VARCHAR(66), got %v\n", size.Int64)
		return
	}
	fmt.Printf("✅ processed_transfers.tx_id: VARCHAR(%d)\n", size.Int64)

	var constraint string
	err = sqlDB.QueryRow(`
		SELECT constraint_name
		FROM information_schema.table_constraints
		WHERE table_schema = 'public'
		AND table_name = 'processed_transfers'
		AND constraint_type = 'PRIMARY KEY'
	`).Scan(&constraint)
	if err != nil {
		fmt.Println("❌ processed_transfers has no primary key; replay protection would not hold")
		return
	}
	fmt.Printf("✅ Replay-guard primary key present: %s\n", constraint)

	var transfers int64
	if err := sqlDB.QueryRow("SELECT COUNT(*) FROM processed_transfers").Scan(&transfers); err == nil {
		fmt.Printf("📋 Processed transfers on record: %d\n", transfers)
	}

	fmt.Println("✅ Schema verification complete")
}
