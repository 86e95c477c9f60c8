package main

import (
	"log"

	"github.com/joho/godotenv"

	"github.com/vkazmirchuk/tagmate/app"
	"github.com/vkazmirchuk/tagmate/core/cmd"
)

func main() {
	// Optional .env for local runs; real deployments set the environment.
	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file loaded: %v", err)
	}

	err := cmd.Run(cmd.Options{
		ConfigEnvVar:      "CONFIG_PATH",
		DefaultConfigPath: "config.yaml",
		LoadConfig:        app.LoadConfig,
		Bootstrap:         app.Bootstrap,
	})
	if err != nil {
		log.Fatalf("tagmate: %v", err)
	}
}
