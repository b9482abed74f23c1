//go:build e2e

package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"testing"
	"time"
)

var baseURL string

func TestMain(m *testing.M) {
	baseURL = os.Getenv("NUKA_BASE_URL")
	if baseURL == "" {
		baseURL = "http://localhost:3210"
	}

	// Wait for server readiness (up to 30s)
	ready := false
	for i := 0; i < 30; i++ {
		resp, err := http.Get(baseURL + "/api/health")
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				ready = true
				break
			}
		}
		time.Sleep(1 * time.Second)
	}
	if !ready {
		fmt.Fprintf(os.Stderr, "server at %s not ready after 30s\n", baseURL)
		os.Exit(1)
	}

	os.Exit(m.Run())
}

// messageRequest is the payload sent to the REST gateway.
type messageRequest struct {
	UserID   string `json:"user_id"`
	UserName string `json:"user_name"`
	Content  string `json:"content"`
}

// messageResponse is what the REST gateway returns for one command.
type messageResponse struct {
	Platform  string   `json:"platform"`
	ChannelID string   `json:"channel_id"`
	Content   string   `json:"content"`
	Messages  []string `json:"messages"`
}

// sendMessage POSTs a chat message through the REST gateway and returns the response content.
func sendMessage(t *testing.T, content string) string {
	t.Helper()

	body, err := json.Marshal(messageRequest{
		UserID:   "smoke-test",
		UserName: "smokebot",
		Content:  content,
	})
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}

	client := &http.Client{Timeout: 90 * time.Second}
	resp, err := client.Post(
		baseURL+"/api/gateway/rest/message",
		"application/json",
		bytes.NewReader(body),
	)
	if err != nil {
		t.Fatalf("POST /api/gateway/rest/message: %v", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read response body: %v", err)
	}

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", resp.StatusCode, string(raw))
	}

	var msg messageResponse
	if err := json.Unmarshal(raw, &msg); err != nil {
		t.Fatalf("unmarshal response: %v (body: %s)", err, string(raw))
	}
	return msg.Content
}

// execute runs a command through POST /api/execute.
func execute(t *testing.T, name string, args ...string) map[string]any {
	t.Helper()

	body, _ := json.Marshal(map[string]any{"sender": "smokebot", "command": name, "args": args})
	resp, err := http.Post(baseURL+"/api/execute", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST /api/execute: %v", err)
	}
	defer resp.Body.Close()

	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode execute response: %v", err)
	}
	return out
}

func TestSlashHelp(t *testing.T) {
	reply := sendMessage(t, "/help")
	if !strings.Contains(reply, "/help") {
		t.Errorf("expected response to contain '/help', got: %s", reply)
	}
	t.Logf("reply: %.200s", reply)
}

func TestSlashStatus(t *testing.T) {
	reply := sendMessage(t, "/status")
	if !strings.Contains(reply, "Registered commands:") {
		t.Errorf("expected command count in status, got: %s", reply)
	}
	t.Logf("reply: %.200s", reply)
}

func TestSlashEcho(t *testing.T) {
	reply := sendMessage(t, "/echo -u smoke test")
	if reply != "SMOKE TEST" {
		t.Errorf("expected upper-cased echo, got: %s", reply)
	}
}

func TestUnknownCommand(t *testing.T) {
	reply := sendMessage(t, "/definitely-not-a-command")
	if !strings.Contains(reply, "Unknown command") {
		t.Errorf("expected unknown command reply, got: %s", reply)
	}
}

func TestExecuteEndpoint(t *testing.T) {
	out := execute(t, "echo", "--shout", "x")
	if out["outcome"] != "invalid_flags" {
		t.Errorf("expected invalid_flags, got: %v", out)
	}

	out = execute(t, "echo", "hello")
	if out["outcome"] != "success" {
		t.Errorf("expected success, got: %v", out)
	}
}

func TestRunsCommand(t *testing.T) {
	reply := sendMessage(t, "/runs 5")
	if strings.HasPrefix(reply, "Unknown command") {
		t.Skip("server runs without a run store")
	}
	if len(reply) == 0 {
		t.Error("expected non-empty response for /runs")
	}
	t.Logf("reply: %.300s", reply)
}
