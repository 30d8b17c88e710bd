package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"ai-regassist-be/pkg/events"
	pkgNats "ai-regassist-be/pkg/nats"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
)

// Tails the analytics stream so operators can watch turn outcomes live.
func main() {
	// 1. Load Environment Variables
	if err := godotenv.Load(); err != nil {
		log.Println("Info: No .env file found, using system env")
	}

	url := os.Getenv("NATS_URL")
	if url == "" {
		url = "nats://localhost:4222"
	}

	// 2. Connect and subscribe to every analytics subject
	sub, err := pkgNats.NewSubscriber(url)
	if err != nil {
		log.Fatalf("Error: Failed to connect to NATS: %v", err)
	}
	defer sub.Close()

	eventLine := color.New(color.FgGreen)
	err = sub.Subscribe("analytics.>", "analytics-tail", func(ctx context.Context, event events.Event) error {
		eventLine.Printf("%s  %s  %v\n", event.Timestamp().Format("15:04:05"), event.EventType(), event.Payload())
		return nil
	})
	if err != nil {
		log.Fatalf("Error: Failed to subscribe: %v", err)
	}

	log.Println("Tailing analytics events. Ctrl+C to stop.")
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
}
