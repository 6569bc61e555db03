// seed inserts a handful of test accounts into the local dev database.
// Run: go run ./cmd/seed
package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/msu-life/auth-service/internal/infrastructure/postgres"
)

type userSpec struct {
	email     string
	username  string
	firstName string
	lastName  string
	isAdmin   bool
	isActive  bool
	isBanned  bool
}

var users = []userSpec{
	// Regular students
	{"jane.doe22@ndus.edu", "jane_doe22", "Jane", "Doe", false, true, false},
	{"bob.smith@ndus.edu", "bob_smith", "Bob", "Smith", false, true, false},
	{"99999@ndus.edu", "", "", "", false, true, false},

	// Admin for the management panel
	{"admin@ndus.edu", "admin", "Ada", "Min", true, true, false},

	// Accounts that must be refused a session
	{"banned.user@ndus.edu", "banned_user", "Banned", "User", false, true, true},
	{"inactive.user@ndus.edu", "inactive_user", "Inactive", "User", false, false, false},
}

func main() {
	ctx := context.Background()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL is not set")
	}

	pool, err := postgres.NewPool(ctx, dbURL)
	if err != nil {
		log.Fatalf("db connect: %v", err)
	}
	defer pool.Close()

	var inserted, skipped int
	for _, spec := range users {
		var username, firstName, lastName *string
		if spec.username != "" {
			username = &spec.username
		}
		if spec.firstName != "" {
			firstName = &spec.firstName
		}
		if spec.lastName != "" {
			lastName = &spec.lastName
		}

		tag, err := pool.Exec(ctx, `
			INSERT INTO users (email, username, first_name, last_name, is_admin, is_active, is_banned)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (email) DO NOTHING`,
			spec.email, username, firstName, lastName,
			spec.isAdmin, spec.isActive, spec.isBanned,
		)
		if err != nil {
			log.Fatalf("insert user %s: %v", spec.email, err)
		}
		if tag.RowsAffected() == 0 {
			skipped++
		} else {
			inserted++
		}
	}

	fmt.Println("Seed complete")
	fmt.Println()
	fmt.Printf("  Inserted: %d\n", inserted)
	fmt.Printf("  Skipped:  %d (already present)\n", skipped)
	fmt.Println()
	fmt.Println("Log in locally with any @ndus.edu address; the code is printed")
	fmt.Println("to the server log when ENV=local.")
}
