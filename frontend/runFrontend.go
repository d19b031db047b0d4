package frontend

import (
	"fmt"
	"os"

	"github.com/inkwell-app/inkwell/frontend/client"
	"github.com/inkwell-app/inkwell/frontend/cmd"
	"github.com/joho/godotenv"
)

// RunFrontend starts the interactive ops shell against the configured server.
func RunFrontend() {
	// Load the .env file
	err := godotenv.Load("frontend/.env")
	if err != nil {
		fmt.Println("Error loading .env file")
	}

	// Read the environment variables
	signingKey := os.Getenv("JWT_SIGNING_KEY")
	tokenKey := os.Getenv("API_TOKEN_KEY")
	serverURL := os.Getenv("SERVER_URL")

	if tokenKey == "" {
		tokenKey = "inkwell_api_token"
	}

	client.InitClient(serverURL, signingKey, tokenKey)
	cmd.InitJournalCmd()
	cmd.Execute()
}
