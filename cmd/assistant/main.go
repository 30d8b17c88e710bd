package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"

	"ai-regassist-be/internal/bootstrap"
	"ai-regassist-be/internal/config"
	"ai-regassist-be/internal/dto"
	"ai-regassist-be/internal/tracer"
	"ai-regassist-be/pkg/database"
	"ai-regassist-be/pkg/rag/response"
	"ai-regassist-be/pkg/session"

	"github.com/fatih/color"
)

func main() {
	// 0. Initialize Tracer
	shutdownTracer := tracer.InitTracer()
	defer shutdownTracer(context.Background())

	// 1. Load Configuration
	cfg := config.Load()

	// 2. Initialize Database
	gormDB, err := database.NewGormDB(cfg.Database.Connection)
	if err != nil {
		log.Panicf("Unable to connect to GORM DB: %v", err)
	}

	// 3. Bootstrap Dependencies (Container)
	container := bootstrap.NewContainer(gormDB, cfg)
	defer container.SysLogger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 4. Start Background Services
	go func() {
		log.Println("Background: Starting Consumer Service...")
		if err := container.ConsumerService.Consume(ctx); err != nil {
			log.Printf("Background Consumer Error: %v", err)
		}
	}()
	go container.SweeperService.Run(ctx)

	// 5. Run the console chat loop
	runChat(ctx, container)
}

func runChat(ctx context.Context, container *bootstrap.Container) {
	banner := color.New(color.FgCyan, color.Bold)
	assistant := color.New(color.FgGreen)
	system := color.New(color.FgYellow)
	errText := color.New(color.FgRed)

	banner.Println("Zaure — Orleu regulatory assistant")
	system.Println("Commands: /new  /history  /stats  /quit")

	created, err := container.ChatService.CreateSession(ctx)
	if err != nil {
		log.Fatalf("Failed to create session: %v", err)
	}
	sessionID := created.SessionId
	system.Printf("Session: %s\n\n", sessionID)

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		switch line {
		case "/quit":
			return
		case "/new":
			created, err := container.ChatService.CreateSession(ctx)
			if err != nil {
				errText.Printf("Failed to create session: %v\n", err)
				continue
			}
			sessionID = created.SessionId
			system.Printf("Session: %s\n", sessionID)
			continue
		case "/history":
			printHistory(ctx, container, sessionID, system, errText)
			continue
		case "/stats":
			printStats(ctx, container, system, errText)
			continue
		}

		resp, err := container.ChatService.SendTurn(ctx, &dto.SendTurnRequest{
			SessionId: sessionID,
			Message:   line,
		})
		if err != nil {
			var limited *dto.RateLimitedError
			switch {
			case errors.As(err, &limited):
				errText.Println(response.RateLimitedMessage(int(limited.RetryAfterSeconds) + 1))
			case errors.Is(err, session.ErrNotFound):
				errText.Println("Session expired. Use /new to start a fresh one.")
			default:
				errText.Println(response.ErrorMessage)
			}
			continue
		}

		assistant.Println(resp.Answer)
		if resp.Document != nil {
			system.Printf("  file: %s (%.2f MB, %s)\n", resp.Document.Path, resp.Document.SizeMB, resp.Document.MatchType)
		}
		system.Printf("  [%s in %dms]\n\n", resp.Decision, resp.DurationMs)
	}
}

func printHistory(ctx context.Context, container *bootstrap.Container, sessionID string, system, errText *color.Color) {
	entries, err := container.ChatService.GetHistory(ctx, sessionID)
	if err != nil {
		errText.Printf("Failed to load history: %v\n", err)
		return
	}
	for _, entry := range entries {
		system.Printf("%s [%s]: %s\n", entry.Timestamp.Format("15:04:05"), entry.Role, entry.Content)
	}
}

func printStats(ctx context.Context, container *bootstrap.Container, system, errText *color.Color) {
	stats, err := container.ChatService.GetStats(ctx)
	if err != nil {
		errText.Printf("Failed to load stats: %v\n", err)
		return
	}
	system.Printf("Active sessions: %d\n", stats.ActiveSessions)
	for id, info := range stats.Sessions {
		system.Printf("  %s: %d messages, last active %s\n", id, info.MessageCount, info.LastAccessedAt.Format("15:04:05"))
	}
}
