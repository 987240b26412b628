package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"datadesigner/internal/dataset"
)

// runChat is the interactive REPL. Each line is one agent turn; a turn
// that submits a job blocks until the poller finishes, so generation
// progress shows up inline.
func runChat() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Println("\nBye.")
		cancel()
	}()

	rt, err := buildRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.close()

	// Anonymous chats get a per-process session so parallel shells do
	// not collide on the "default" key.
	session := sessionID
	if session == "" || session == "default" {
		session = "chat-" + uuid.NewString()[:8]
	}

	if rt.cfg.Dataset.Watch && rt.datasets != nil {
		watcher := dataset.NewWatcher(rt.datasets, rt.cfg.Dataset.OutputDir)
		go func() {
			if err := watcher.Run(ctx); err != nil && ctx.Err() == nil {
				logger.Warn("auto-import watcher stopped", zap.Error(err))
			}
		}()
	}

	fmt.Println("Data designer chat. Describe the dataset you want.")
	fmt.Printf("Session: %s  (type 'exit' to quit, '/tables' to list imports)\n\n", session)

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for {
		fmt.Print("you> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			break
		}
		if line == "/tables" {
			printTables(rt)
			continue
		}

		turnCtx, turnCancel := context.WithTimeout(ctx, timeout)
		result, err := rt.agent.ProcessTurn(turnCtx, session, line)
		turnCancel()
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			fmt.Printf("error: %v\n", err)
			continue
		}

		fmt.Printf("\ndesigner> %s\n\n", result.Reply)
		if len(result.Records) > 0 && verbose {
			for _, rec := range result.Records {
				status := "ok"
				if rec.Failed {
					status = "failed"
				}
				fmt.Printf("  [%s] %s\n", status, rec.Tool)
			}
			fmt.Println()
		}
	}

	return scanner.Err()
}

func printTables(rt *runtime) {
	if rt.datasets == nil {
		fmt.Println("No viewer database configured.")
		return
	}
	tables, err := rt.datasets.Tables()
	if err != nil {
		fmt.Printf("error: %v\n", err)
		return
	}
	if len(tables) == 0 {
		fmt.Println("No datasets imported yet.")
		return
	}
	for _, table := range tables {
		count, err := rt.datasets.RowCount(table)
		if err != nil {
			fmt.Printf("  %s\n", table)
			continue
		}
		fmt.Printf("  %s (%d rows)\n", table, count)
	}
}
