package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/m-mizutani/bulletin/pkg/model"
	"github.com/m-mizutani/bulletin/pkg/repository"
	"github.com/m-mizutani/bulletin/pkg/service/mcp"
	"github.com/m-mizutani/bulletin/pkg/usecase/ask"
	"github.com/m-mizutani/bulletin/pkg/usecase/update"
)

// A bulletin MCP server over stdio with one stored update, answering without
// a language model
func main() {
	ctx := context.Background()
	now := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

	repo := repository.NewMemory()
	if err := repo.PutUpdate(ctx, &model.Update{
		ID:          model.NewUpdateID(),
		Date:        "2024-05-01",
		Time:        "09:00",
		Title:       "Budget report",
		Description: "Quarterly numbers are in",
		CreatedAt:   now,
	}); err != nil {
		log.Fatalf("failed to seed: %v", err)
	}

	server := mcp.NewServer(
		ask.New(repo, nil, ask.WithoutLLM()),
		update.New(repo),
		"test",
		mcp.WithClock(func() time.Time { return now }),
	)

	if err := server.RunStdio(ctx); err != nil {
		log.Printf("Server failed: %v", err)
		os.Exit(1)
	}
}
