package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/nidhogg/nuka-commands/internal/bus"
	"github.com/nidhogg/nuka-commands/internal/config"
	"go.uber.org/zap"
)

func main() {
	server := flag.String("server", "http://localhost:3210", "Nuka command server URL")
	user := flag.String("user", "cli-user", "User name sent with each command")
	watch := flag.String("watch", "", "Redis URL; print the outcome stream instead of chatting")
	stream := flag.String("stream", config.DefaultStream, "Outcome stream key used with -watch")
	flag.Parse()

	if *watch != "" {
		if err := watchOutcomes(*watch, *stream); err != nil {
			printError("%v", err)
			os.Exit(1)
		}
		return
	}

	fmt.Println("Nuka Commands CLI")
	fmt.Printf("Server: %s | User: %s\n", *server, *user)
	fmt.Println("Type 'exit' or 'quit' to leave. Commands start with '/', try /help.")
	fmt.Println("Local: :status, :commands")
	fmt.Println("---")

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("\n> ")
		if !scanner.Scan() {
			break
		}
		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		switch input {
		case "exit", "quit":
			fmt.Println("Bye!")
			return
		case ":status":
			fetchStatus(*server)
			continue
		case ":commands":
			fetchCommands(*server)
			continue
		}

		sendMessage(*server, *user, input)
	}
}

func fetchCommands(server string) {
	resp, err := http.Get(server + "/api/commands")
	if err != nil {
		printError("Failed to fetch commands: %v", err)
		return
	}
	defer resp.Body.Close()

	var cmds []struct {
		Usage       string   `json:"usage"`
		Description string   `json:"description"`
		Aliases     []string `json:"aliases"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&cmds); err != nil {
		printError("Failed to parse commands: %v", err)
		return
	}
	if len(cmds) == 0 {
		fmt.Println("No commands registered yet.")
		return
	}
	fmt.Println("Available commands:")
	for _, c := range cmds {
		fmt.Printf("  %s", c.Usage)
		if c.Description != "" {
			fmt.Printf(" - %s", c.Description)
		}
		if len(c.Aliases) > 0 {
			fmt.Printf(" (aliases: %s)", strings.Join(c.Aliases, ", "))
		}
		fmt.Println()
	}
}

func fetchStatus(server string) {
	resp, err := http.Get(server + "/api/gateway/status")
	if err != nil {
		printError("Failed to fetch status: %v", err)
		return
	}
	defer resp.Body.Close()

	var statuses []struct {
		Platform    string  `json:"platform"`
		Connected   bool    `json:"connected"`
		ConnectedAt *string `json:"connected_at,omitempty"`
		Error       string  `json:"error,omitempty"`
		Details     string  `json:"details,omitempty"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&statuses); err != nil {
		printError("Failed to parse status: %v", err)
		return
	}
	fmt.Println("Gateway Status:")
	for _, s := range statuses {
		icon := "\033[31m✗\033[0m"
		if s.Connected {
			icon = "\033[32m✓\033[0m"
		}
		fmt.Printf("  %s %s", icon, s.Platform)
		if s.Details != "" {
			fmt.Printf(" (%s)", s.Details)
		}
		if s.Error != "" {
			fmt.Printf(" \033[31m(%s)\033[0m", s.Error)
		}
		fmt.Println()
	}
}

func sendMessage(server, user, content string) {
	body, _ := json.Marshal(map[string]string{
		"user_id":   user,
		"user_name": user,
		"content":   content,
	})

	client := &http.Client{Timeout: 65 * time.Second}
	resp, err := client.Post(
		server+"/api/gateway/rest/message",
		"application/json",
		bytes.NewReader(body),
	)
	if err != nil {
		printError("Request failed: %v", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		printError("Server error (%d): %s", resp.StatusCode, string(data))
		return
	}

	var reply struct {
		Messages []string `json:"messages"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		printError("Failed to parse response: %v", err)
		return
	}
	for _, m := range reply.Messages {
		fmt.Println(m)
	}
}

func watchOutcomes(redisURL, stream string) error {
	b, err := bus.New(redisURL, stream, zap.NewNop())
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	fmt.Printf("Watching %s (Ctrl-C to stop)\n", stream)
	for msg := range b.Subscribe(ctx, "$") {
		line := fmt.Sprintf("%s  %-16s %-12s %s (%dms)",
			msg.Timestamp.Local().Format("15:04:05"), msg.Command, msg.Sender, msg.Outcome, msg.DurationMS)
		if msg.Error != "" {
			line += "  \033[31m" + msg.Error + "\033[0m"
		}
		fmt.Println(line)
	}

	closeCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	return b.Close(closeCtx)
}

func printError(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "\033[31m"+format+"\033[0m\n", args...)
}
