// Package main RAG API Server
//
//	@title			RAG API Server
//	@version		1.0
//	@description	An OpenAI-compatible API server with retrieval-augmented chat completions
//	@termsOfService	http://swagger.io/terms/
//
//	@contact.name	API Support
//	@contact.url	http://www.swagger.io/support
//	@contact.email	support@swagger.io
//
//	@license.name	Apache 2.0
//	@license.url	http://www.apache.org/licenses/LICENSE-2.0.html
//
//	@host		localhost:8080
//	@BasePath	/
//
//	@externalDocs.description	OpenAPI
//	@externalDocs.url			https://swagger.io/resources/open-api/
package main

import (
	"log"
	"os"

	"github.com/joho/godotenv"

	_ "rag-server/docs" // This imports the docs package to initialize swagger
	"rag-server/internal/config"
	"rag-server/internal/server"
)

func main() {
	if err := godotenv.Load(); err == nil {
		log.Println("Loaded configuration from .env")
	}

	logger := log.New(os.Stdout, "[CONFIG] ", log.LstdFlags)
	cfg, err := config.Load(logger)
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	srv := server.NewServer(cfg)
	if err := srv.Start(); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
