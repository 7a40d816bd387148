// cmd/seeder/main.go
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/unclebandit/anniversary-reminder/internal/app"
	"github.com/unclebandit/anniversary-reminder/internal/config"
	"github.com/unclebandit/anniversary-reminder/internal/mailer"
)

func main() {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	ctx := context.Background()
	// Seeding never sends mail.
	a, err := app.New(ctx, cfg, mailer.NewConsoleSender(nil))
	if err != nil {
		log.Fatal(err)
	}
	defer a.Close()

	dir := os.Getenv("SEED_DIR")
	if dir == "" {
		dir = "seed"
	}
	seedFiles := []string{
		filepath.Join(dir, "records.sql"),
		filepath.Join(dir, "templates.sql"),
	}

	for _, file := range seedFiles {
		content, err := os.ReadFile(file)
		if err != nil {
			log.Fatalf("failed to read %s: %v", file, err)
		}

		if _, err := a.DB.ExecContext(ctx, string(content)); err != nil {
			log.Fatalf("failed to execute %s: %v", file, err)
		}
		fmt.Printf("Seeded: %s\n", file)
	}

	seeded, err := a.Reminders.MigrateSchedules(ctx)
	if err != nil {
		log.Fatalf("failed to seed schedules: %v", err)
	}
	fmt.Printf("Schedules seeded for %d records\n", seeded)
	fmt.Println("Database seeding completed successfully!")
}
