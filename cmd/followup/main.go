// Command followup is the CLI client for the followup server.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/GoCodeAlone/followup/internal/version"
	"github.com/GoCodeAlone/followup/update"
)

const defaultServer = "http://localhost:9090"

func main() {
	var (
		serverURL = flag.String("server", defaultServer, "followup server URL")
		token     = flag.String("token", os.Getenv("FOLLOWUP_TOKEN"), "JWT auth token")
	)
	flag.Usage = usage
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		usage()
		os.Exit(1)
	}

	cli := &Client{
		BaseURL:    strings.TrimRight(*serverURL, "/"),
		Token:      *token,
		HTTPClient: &http.Client{Timeout: 60 * time.Second},
	}

	cmd := args[0]
	rest := args[1:]

	var err error
	switch cmd {
	case "version":
		err = cmdVersion(rest)
	case "status":
		err = cli.cmdStatus(rest)
	case "login":
		err = cli.cmdLogin(rest)
	case "run":
		err = cli.cmdRun(rest)
	case "tasks":
		err = cli.cmdTasks(rest)
	case "summary":
		err = cli.cmdSummary(rest)
	case "agents":
		err = cli.cmdAgents(rest)
	case "upgrade":
		err = cmdUpgrade(rest)
	case "serve":
		fmt.Fprintln(os.Stderr, "use followupd to run the server")
		os.Exit(1)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", cmd)
		usage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprint(os.Stderr, `followup — meeting follow-up CLI

Usage:
  followup [flags] <command> [args]

Flags:
  --server  <url>    server URL (default: http://localhost:9090)
  --token   <token>  JWT auth token (or $FOLLOWUP_TOKEN)

Commands:
  version                     print version
  status                      show server status
  login <user>                obtain a token (password read from stdin)
  run <query>                 run the pipeline for a query
  tasks                       list extracted tasks
  summary <meeting-id>        show the stored summary for a meeting
  agents                      list registered pipeline agents
  upgrade                     self-update to the latest release
`)
}

// --- version ---

func cmdVersion(_ []string) error {
	fmt.Printf("followup %s (commit %s, built %s)\n",
		version.Version, version.Commit, version.BuildDate)
	return nil
}

// --- upgrade ---

func cmdUpgrade(_ []string) error {
	updater := update.New(version.Version)
	release, err := updater.CheckForUpdate()
	if err != nil {
		return err
	}
	if release == nil {
		fmt.Println("already on the latest version")
		return nil
	}
	fmt.Printf("upgrading %s -> %s\n", version.Version, release.Version)
	if err := updater.Apply(release); err != nil {
		return err
	}
	fmt.Println("upgrade complete, restart to use the new version")
	return nil
}

// Client holds HTTP client state for CLI commands.
type Client struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
}

// get performs a GET and decodes JSON into v.
func (c *Client) get(path string, v any) error {
	req, err := http.NewRequest(http.MethodGet, c.BaseURL+path, nil)
	if err != nil {
		return err
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck
	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return json.NewDecoder(resp.Body).Decode(v)
}

// post performs a POST and decodes JSON response into v (may be nil).
func (c *Client) post(path string, body io.Reader, v any) error {
	req, err := http.NewRequest(http.MethodPost, c.BaseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck
	if resp.StatusCode >= 400 {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	if v != nil && resp.ContentLength != 0 {
		return json.NewDecoder(resp.Body).Decode(v)
	}
	return nil
}

// --- status ---

func (c *Client) cmdStatus(_ []string) error {
	var result map[string]any
	if err := c.get("/api/status", &result); err != nil {
		return err
	}
	fmt.Printf("status:  %s\n", strVal(result["status"]))
	fmt.Printf("version: %s\n", strVal(result["version"]))
	fmt.Printf("uptime:  %ss\n", strVal(result["uptime_seconds"]))
	return nil
}

// --- login ---

func (c *Client) cmdLogin(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: followup login <user>")
	}
	fmt.Fprint(os.Stderr, "password: ")
	reader := make([]byte, 256)
	n, err := os.Stdin.Read(reader)
	if err != nil {
		return fmt.Errorf("read password: %w", err)
	}
	password := strings.TrimSpace(string(reader[:n]))

	body := fmt.Sprintf(`{"username":%q,"password":%q}`, args[0], password)
	var result map[string]string
	if err := c.post("/api/auth/login", strings.NewReader(body), &result); err != nil {
		return err
	}
	fmt.Println(result["token"])
	fmt.Fprintln(os.Stderr, "export FOLLOWUP_TOKEN=<token above> to use it")
	return nil
}

// --- run ---

func (c *Client) cmdRun(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: followup run <query> [--sync]")
	}
	approve := false
	var words []string
	for _, a := range args {
		if a == "--sync" {
			approve = true
			continue
		}
		words = append(words, a)
	}
	query := strings.Join(words, " ")

	body, err := json.Marshal(map[string]any{
		"query":        query,
		"approve_sync": approve,
	})
	if err != nil {
		return err
	}
	var result map[string]any
	if err := c.post("/api/run", strings.NewReader(string(body)), &result); err != nil {
		return err
	}
	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

// --- tasks ---

func (c *Client) cmdTasks(_ []string) error {
	var result struct {
		Tasks []map[string]any `json:"tasks"`
	}
	if err := c.get("/api/tasks", &result); err != nil {
		return err
	}
	if len(result.Tasks) == 0 {
		fmt.Println("no tasks")
		return nil
	}
	fmt.Printf("%-36s %-40s %-12s %-10s %-8s\n", "ID", "TITLE", "OWNER", "DUE", "STATUS")
	fmt.Println(strings.Repeat("-", 110))
	for _, t := range result.Tasks {
		fmt.Printf("%-36s %-40s %-12s %-10s %-8s\n",
			strVal(t["id"]),
			truncate(strVal(t["title"]), 39),
			truncate(strVal(t["owner"]), 11),
			strVal(t["due"]),
			strVal(t["status"]),
		)
	}
	return nil
}

// --- summary ---

func (c *Client) cmdSummary(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: followup summary <meeting-id>")
	}
	var result map[string]any
	if err := c.get("/api/summaries/"+args[0], &result); err != nil {
		return err
	}
	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

// --- agents ---

func (c *Client) cmdAgents(_ []string) error {
	var result struct {
		Agents []map[string]any `json:"agents"`
	}
	if err := c.get("/api/agents", &result); err != nil {
		return err
	}
	if len(result.Agents) == 0 {
		fmt.Println("no agents")
		return nil
	}
	fmt.Printf("%-20s %-12s %-30s\n", "NAME", "ENDPOINT", "CAPABILITIES")
	fmt.Println(strings.Repeat("-", 64))
	for _, a := range result.Agents {
		caps := ""
		if list, ok := a["capabilities"].([]any); ok {
			parts := make([]string, len(list))
			for i, c := range list {
				parts[i] = strVal(c)
			}
			caps = strings.Join(parts, ",")
		}
		fmt.Printf("%-20s %-12s %-30s\n", strVal(a["name"]), strVal(a["endpoint"]), caps)
	}
	return nil
}

// --- helpers ---

func strVal(v any) string {
	if v == nil {
		return ""
	}
	return fmt.Sprint(v)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "…"
}
