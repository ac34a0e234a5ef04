package main

import (
	"fmt"
	"os"

	"stacktax-backend/internal/app"
	"stacktax-backend/internal/config"

	"github.com/gofiber/fiber/v2"
)

var fiberApp *fiber.App

func init() {
	cfg, err := config.Load()
	if err != nil {
		panic("config load: " + err.Error())
	}
	fiberApp, err = app.CreateApp(cfg)
	if err != nil {
		panic("app create: " + err.Error())
	}
}

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	fmt.Printf("Server running at http://localhost:%s\n", port)
	fmt.Printf("Health check: http://localhost:%s/health/json\n", port)

	if err := fiberApp.Listen(":" + port); err != nil {
		panic(err)
	}
}
