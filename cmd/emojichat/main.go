package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/sandwichfarm/emojichat/internal/client"
	"github.com/sandwichfarm/emojichat/internal/compose"
	"github.com/sandwichfarm/emojichat/internal/config"
	"github.com/sandwichfarm/emojichat/internal/ops"
	"github.com/sandwichfarm/emojichat/internal/profiles"
	"github.com/sandwichfarm/emojichat/internal/render"
)

var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "init" {
		handleInit()
		return
	}

	var (
		showVersion = flag.Bool("version", false, "Show version information")
		configPath  = flag.String("config", "", "Path to configuration file")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("emojichat %s\n", version)
		fmt.Printf("  commit: %s\n", commit)
		fmt.Printf("  built:  %s\n", date)
		os.Exit(0)
	}

	if *configPath == "" {
		fmt.Println("emojichat - emoji-only Nostr feed client")
		fmt.Println()
		fmt.Println("No configuration file specified. Use --config <path> to specify config.")
		fmt.Println()
		fmt.Println("Commands:")
		fmt.Println("  emojichat init              Generate example configuration")
		fmt.Println("  emojichat --version         Show version information")
		fmt.Println("  emojichat --config <path>   Start with configuration file")
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	if err := run(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	logger := ops.NewLogger(&cfg.Logging)
	ops.SetDefault(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c, err := client.New(cfg, logger)
	if err != nil {
		return err
	}
	defer c.Close()

	renderer := render.New(os.Stdout, cfg.Display, c.Profiles())
	c.OnFeed(renderer.Render)

	pubkey, err := c.Connect(ctx)
	switch {
	case err == nil:
		fmt.Printf("Connected as %s\n", profiles.TruncatePubkey(pubkey))
	case errors.As(err, new(*compose.SigningError)):
		fmt.Println("No signing key found (set EMOJICHAT_NSEC); running read-only.")
	default:
		return err
	}

	fmt.Printf("Fetching the last %d notes from %d relays...\n",
		cfg.Feed.HistoryLimit, len(cfg.Relays.Publish))
	if err := c.FetchHistory(ctx); err != nil {
		// Bounded history failures are one-shot: report and keep going,
		// the live tail still works and the user can retype /reload.
		fmt.Fprintf(os.Stderr, "History fetch failed: %v\n", err)
	}

	c.StartLive()
	fmt.Println("Live. Type emoji to post, /reply <n>, /cancel, /reload, /quit.")

	// Ctrl+C cancels the input loop
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Println("\nShutting down...")
		cancel()
		os.Stdin.Close()
	}()

	inputLoop(ctx, c, renderer)
	return nil
}

func inputLoop(ctx context.Context, c *client.Client, renderer *render.Renderer) {
	scanner := bufio.NewScanner(os.Stdin)
	composer := c.Composer()

	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		switch {
		case line == "/quit":
			return

		case line == "/cancel":
			composer.ClearReplyContext()
			fmt.Println("Reply cancelled.")

		case line == "/reload":
			if err := c.FetchHistory(ctx); err != nil {
				fmt.Fprintf(os.Stderr, "History fetch failed: %v\n", err)
			}

		case strings.HasPrefix(line, "/reply "):
			arg := strings.TrimSpace(strings.TrimPrefix(line, "/reply "))
			index, err := strconv.Atoi(arg)
			if err != nil {
				fmt.Println("Usage: /reply <note number>")
				continue
			}
			entry, ok := renderer.Lookup(index)
			if !ok {
				fmt.Printf("No note [%d] on screen.\n", index)
				continue
			}
			composer.SetReplyContext(entry.Event.ID, entry.Event.PubKey)
			fmt.Printf("Replying to [%d] by %s. Type your emoji.\n",
				index, c.Profiles().DisplayName(entry.Event.PubKey))

		default:
			composer.SetInput(line)
			if _, err := composer.Send(ctx); err != nil {
				fmt.Fprintf(os.Stderr, "Send failed: %v\n", err)
				continue
			}
			fmt.Println("Sent. It will appear once a relay echoes it back.")
		}
	}
}

func handleInit() {
	exampleConfig, err := config.GetExampleConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading example config: %v\n", err)
		os.Exit(1)
	}
	fmt.Print(string(exampleConfig))
}
