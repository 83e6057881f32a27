package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fatih/color"

	"github.com/TAO-07/no-one-answer/internal/sse"
	"github.com/TAO-07/no-one-answer/internal/version"
)

var (
	relayURL      = flag.String("relay", envOr("NOANSWER_RELAY_URL", "http://localhost:8080"), "relayd base URL")
	modelName     = flag.String("model", "", "Model to request; empty uses the relay default")
	systemPrompt  = flag.String("system", "你是\"没人接\"应用中的AI助手。你的任务是关心用户的安全。", "System prompt")
	maxEventBytes = flag.Int("max-event-bytes", sse.DefaultMaxEventBytes, "Largest event accepted from the relay")
	verbose       = flag.Bool("v", false, "Log assembler warnings to stderr")
)

func main() {
	flag.Parse()

	logger := log.New(io.Discard, "[sse] ", log.LstdFlags|log.Lmicroseconds)
	if *verbose {
		logger.SetOutput(os.Stderr)
	}
	assembler := sse.New(sse.Config{
		BaseURL:       *relayURL,
		Model:         *modelName,
		HTTPClient:    &http.Client{},
		MaxEventBytes: *maxEventBytes,
		Logger:        logger,
	})

	// Ctrl+C cancels the call in flight; with nothing in flight it exits.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	go func() {
		for sig := range sigs {
			if h := assembler.Active(); h != nil && sig == os.Interrupt {
				h.Cancel()
				continue
			}
			fmt.Println("\nShutting down...")
			os.Exit(0)
		}
	}()

	boldGreen := color.New(color.FgGreen, color.Bold).SprintFunc()
	boldCyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()

	fmt.Println(boldGreen("没人接 " + version.Banner("relaychat")))
	fmt.Printf("Relay: %s\n", boldCyan(*relayURL))
	fmt.Println("Type a message and press Enter. /ping tests the relay, /reset clears history, exit quits.")
	fmt.Println("Ctrl+C stops a reply in progress.")
	fmt.Println()

	sess := newSession(assembler, *systemPrompt, os.Stdout)
	ctx := context.Background()
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print(boldGreen("You: "))
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		switch strings.ToLower(line) {
		case "":
			continue
		case "exit", "quit":
			return
		case "/reset":
			sess.reset()
			fmt.Println(yellow("history cleared"))
			continue
		case "/ping":
			reply, err := sess.ping(ctx)
			switch {
			case errors.Is(err, context.Canceled):
				fmt.Println(yellow("ping cancelled"))
			case err != nil:
				fmt.Println(red("connection failed: " + err.Error()))
			default:
				fmt.Println(boldCyan("connected: ") + reply)
			}
			continue
		}

		fmt.Print(boldCyan("Assistant: "))
		state, err := sess.turn(ctx, line)
		switch state {
		case sse.StateCancelled:
			fmt.Println(yellow(" [stopped]"))
		case sse.StateErrored:
			fmt.Println()
			fmt.Fprintln(os.Stderr, red("Error: "+err.Error()))
		default:
			fmt.Println()
		}
		fmt.Println()
	}
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}
