// textpile-admin drives a running instance's admin API: removing posts and
// inspecting the resolved configuration.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		baseURL  string
		token    string
		removeID string
		showEnv  bool
	)

	flag.StringVar(&baseURL, "url", envOrDefault("TEXTPILE_URL", "http://localhost:3000"), "Base URL of the Textpile instance")
	flag.StringVar(&token, "token", envOrDefault("ADMIN_TOKEN", ""), "Admin access token")
	flag.StringVar(&removeID, "remove", "", "Remove the post with this id")
	flag.BoolVar(&showEnv, "env", false, "Print the instance's environment configuration")
	flag.Parse()

	if token == "" {
		return fmt.Errorf("--token is required (or set ADMIN_TOKEN)")
	}
	if removeID == "" && !showEnv {
		return fmt.Errorf("nothing to do: pass --remove <id> or --env")
	}

	client := &http.Client{Timeout: 15 * time.Second}

	if removeID != "" {
		if err := removePost(client, baseURL, token, removeID); err != nil {
			return err
		}
		fmt.Printf("Post %s removed.\n", removeID)
	}

	if showEnv {
		if err := printEnv(client, baseURL, token); err != nil {
			return err
		}
	}

	return nil
}

func removePost(client *http.Client, baseURL, token, id string) error {
	payload, err := json.Marshal(map[string]string{"id": id, "token": token})
	if err != nil {
		return err
	}

	resp, err := client.Post(baseURL+"/api/remove", "application/json", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("remove request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return apiError("remove", resp)
	}
	return nil
}

func printEnv(client *http.Client, baseURL, token string) error {
	req, err := http.NewRequest(http.MethodGet, baseURL+"/api/admin/env", nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("env request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return apiError("env", resp)
	}

	var body struct {
		EnvVars []struct {
			Category  string `json:"category"`
			Variables []struct {
				Name        string `json:"name"`
				Value       string `json:"value"`
				Description string `json:"description"`
			} `json:"variables"`
		} `json:"envVars"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return fmt.Errorf("decode env response: %w", err)
	}

	for _, cat := range body.EnvVars {
		fmt.Printf("%s\n", cat.Category)
		for _, v := range cat.Variables {
			fmt.Printf("  %-20s %-24s %s\n", v.Name, v.Value, v.Description)
		}
	}
	return nil
}

func apiError(op string, resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var body struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(raw, &body) == nil && body.Error != "" {
		return fmt.Errorf("%s failed (%s): %s", op, resp.Status, body.Error)
	}
	return fmt.Errorf("%s failed (%s)", op, resp.Status)
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
