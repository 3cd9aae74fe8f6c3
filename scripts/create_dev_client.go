package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"

	"github.com/franciscosanchezn/gin-forms-api/internal/config"
	"github.com/franciscosanchezn/gin-forms-api/internal/database"
	"github.com/franciscosanchezn/gin-forms-api/internal/services"
)

// Creates an OAuth2 client owned by an existing account and prints its
// credentials. The client acts with the owner's role.
func main() {
	email := flag.String("email", "", "Email of the account that owns the client (required)")
	name := flag.String("name", "Development Client", "Client name")
	scopes := flag.String("scopes", "read write", "Space separated scopes")
	flag.Parse()

	log.SetFormatter(&log.JSONFormatter{})
	if *email == "" {
		log.Fatal("-email is required")
	}
	if err := godotenv.Load(); err != nil {
		log.Warn("No .env file found, using system environment variables")
	}

	conf, err := config.LoadConfig()
	if err != nil {
		log.WithError(err).Fatal("Failed to load configuration")
	}

	ctx := context.Background()
	db, err := database.InitDatabase(ctx, conf.DatabaseConfig())
	if err != nil {
		log.WithError(err).Fatal("Failed to connect to database")
	}
	defer database.Close(db)
	if err := database.Migrate(db); err != nil {
		log.WithError(err).Fatal("Failed to migrate database")
	}

	owner, err := services.NewUserService(db).GetByEmail(ctx, *email)
	if err != nil {
		log.WithError(err).WithField("email", *email).Fatal("Owner account not found")
	}

	client, secret, err := services.NewClientService(db).CreateClient(ctx, owner.ID, services.ClientInput{
		Name:   *name,
		Domain: "http://localhost",
		Scopes: *scopes,
	})
	if err != nil {
		log.WithError(err).Fatal("Failed to create client")
	}

	fmt.Printf("OAuth client created for %s (role %s)\n", owner.Email, owner.Role)
	fmt.Printf("Client ID: %s\n", client.ID)
	fmt.Printf("Client Secret: %s\n", secret)
	fmt.Println("\nUse these credentials for testing:")
	fmt.Printf("curl -X POST http://%s/api/oauth/token \\\n", conf.Address())
	fmt.Printf("  -d 'grant_type=client_credentials' \\\n")
	fmt.Printf("  -d 'client_id=%s' \\\n", client.ID)
	fmt.Printf("  -d 'client_secret=%s'\n", secret)
}
