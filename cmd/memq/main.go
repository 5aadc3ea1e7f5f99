package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"
)

func main() {
	server := flag.String("server", "http://localhost:8080", "mnemo server URL")
	agent := flag.String("agent", "cli-agent", "Agent whose memory to query")
	flag.Parse()

	fmt.Println("mnemo CLI")
	fmt.Printf("Server: %s | Agent: %s\n", *server, *agent)
	fmt.Println("Type a query to retrieve memories, or 'exit' to leave.")
	fmt.Println("Commands: /status, /agents, /add <imp> <source> <text>,")
	fmt.Println("          /plan <context>, /reflect [hours], /social <name>, /know <topic>")
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
		if input == "exit" || input == "quit" {
			fmt.Println("Bye!")
			return
		}

		switch {
		case input == "/status":
			fetchStatus(*server)
		case input == "/agents":
			fetchAgents(*server)
		case strings.HasPrefix(input, "/add "):
			addMemory(*server, *agent, strings.TrimPrefix(input, "/add "))
		case strings.HasPrefix(input, "/plan"):
			post(*server, *agent, "/retrieve/planning", map[string]interface{}{
				"context": strings.TrimSpace(strings.TrimPrefix(input, "/plan")),
			})
		case strings.HasPrefix(input, "/reflect"):
			hours := 0
			if arg := strings.TrimSpace(strings.TrimPrefix(input, "/reflect")); arg != "" {
				hours, _ = strconv.Atoi(arg)
			}
			post(*server, *agent, "/retrieve/reflection", map[string]interface{}{
				"period_hours": hours,
			})
		case strings.HasPrefix(input, "/social "):
			post(*server, *agent, "/retrieve/social", map[string]interface{}{
				"other_agent": strings.TrimSpace(strings.TrimPrefix(input, "/social ")),
			})
		case strings.HasPrefix(input, "/know "):
			post(*server, *agent, "/retrieve/knowledge", map[string]interface{}{
				"topic": strings.TrimSpace(strings.TrimPrefix(input, "/know ")),
			})
		default:
			post(*server, *agent, "/retrieve", map[string]interface{}{
				"query": input, "k": 8, "summarize": true,
			})
		}
	}
}

func fetchAgents(server string) {
	resp, err := http.Get(server + "/api/agents")
	if err != nil {
		printError("Failed to fetch agents: %v", err)
		return
	}
	defer resp.Body.Close()

	var ids []string
	if err := json.NewDecoder(resp.Body).Decode(&ids); err != nil {
		printError("Failed to parse agents: %v", err)
		return
	}
	if len(ids) == 0 {
		fmt.Println("No agents have memories yet.")
		return
	}
	fmt.Println("Agents with memories:")
	for _, id := range ids {
		fmt.Printf("  %s\n", id)
	}
}

func fetchStatus(server string) {
	resp, err := http.Get(server + "/api/world/status")
	if err != nil {
		printError("Failed to fetch status: %v", err)
		return
	}
	defer resp.Body.Close()

	var status struct {
		Service    string `json:"service"`
		WorldTime  string `json:"world_time"`
		AgentCount int    `json:"agent_count"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		printError("Failed to parse status: %v", err)
		return
	}
	fmt.Printf("Service: %s | World time: %s | Agents: %d\n",
		status.Service, status.WorldTime, status.AgentCount)
}

// addMemory parses "/add <importance> <source> <text...>".
func addMemory(server, agent, args string) {
	parts := strings.SplitN(args, " ", 3)
	if len(parts) < 3 {
		printError("usage: /add <importance> <source> <text>")
		return
	}
	importance, err := strconv.ParseFloat(parts[0], 64)
	if err != nil {
		printError("bad importance %q: %v", parts[0], err)
		return
	}

	body, _ := json.Marshal(map[string]interface{}{
		"text":       parts[2],
		"importance": importance,
		"source":     parts[1],
	})
	resp, err := httpClient().Post(
		server+"/api/agents/"+agent+"/memories",
		"application/json",
		bytes.NewReader(body),
	)
	if err != nil {
		printError("Request failed: %v", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		data, _ := io.ReadAll(resp.Body)
		printError("Server error (%d): %s", resp.StatusCode, string(data))
		return
	}
	fmt.Println("Stored.")
}

func post(server, agent, path string, body map[string]interface{}) {
	b, _ := json.Marshal(body)
	resp, err := httpClient().Post(
		server+"/api/agents/"+agent+path,
		"application/json",
		bytes.NewReader(b),
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

	var result struct {
		Count    int `json:"count"`
		Memories []struct {
			Text       string    `json:"text"`
			Importance float64   `json:"importance"`
			Source     string    `json:"source"`
			Timestamp  time.Time `json:"timestamp"`
		} `json:"memories"`
		Summary string `json:"summary,omitempty"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		printError("Failed to parse response: %v", err)
		return
	}

	if result.Count == 0 {
		fmt.Println("No memories.")
		return
	}
	for _, m := range result.Memories {
		fmt.Printf("\033[36m[%s %4.1f]\033[0m %s \033[90m(%s)\033[0m\n",
			m.Source, m.Importance, m.Text, m.Timestamp.Format("Jan 2 15:04"))
	}
	if result.Summary != "" {
		fmt.Println("---")
		fmt.Println(result.Summary)
	}
}

func httpClient() *http.Client {
	return &http.Client{Timeout: 30 * time.Second}
}

func printError(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "\033[31m"+format+"\033[0m\n", args...)
}
