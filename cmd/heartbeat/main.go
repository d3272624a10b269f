// Command heartbeat polls an orchidd instance for the orchids one address
// owns, reporting each plant's stage. With -water it also waters every
// living plant on each pass, keeping a collection alive unattended.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"orchidcore/internal/infra/logging"
	"orchidcore/pkg/domain"
)

type client struct {
	base   string
	http   *http.Client
	logger *logging.Logger
}

type tokensResponse struct {
	Tokens []domain.TokenID `json:"tokens"`
}

type stageResponse struct {
	Stage string `json:"stage"`
}

func (c *client) tokensOf(owner string) ([]domain.TokenID, error) {
	resp, err := c.http.Get(fmt.Sprintf("%s/orchids?owner=%s", c.base, owner))
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("list tokens: status %d", resp.StatusCode)
	}
	var out tokensResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	return out.Tokens, nil
}

func (c *client) stage(id domain.TokenID) (string, error) {
	resp, err := c.http.Get(fmt.Sprintf("%s/orchids/%d/stage", c.base, id))
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("stage %d: status %d", id, resp.StatusCode)
	}
	var out stageResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	return out.Stage, nil
}

func (c *client) water(owner string, id domain.TokenID) error {
	body, _ := json.Marshal(map[string]string{"caller": owner})
	resp, err := c.http.Post(fmt.Sprintf("%s/orchids/%d/water", c.base, id), "application/json", bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	// Conflict means no open window or already watered; both are fine for a
	// polling loop.
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusConflict {
		return fmt.Errorf("water %d: status %d", id, resp.StatusCode)
	}
	return nil
}

func (c *client) pass(owner string, water bool) {
	tokens, err := c.tokensOf(owner)
	if err != nil {
		c.logger.Error("list tokens", "error", err.Error())
		return
	}
	for _, id := range tokens {
		stage, err := c.stage(id)
		if err != nil {
			c.logger.Error("read stage", "token", id, "error", err.Error())
			continue
		}
		c.logger.Info("orchid", "token", id, "stage", stage)
		if water && stage == string(domain.StageFlowering) {
			if err := c.water(owner, id); err != nil {
				c.logger.Error("water", "token", id, "error", err.Error())
			}
		}
	}
}

func main() {
	server := flag.String("server", "http://localhost:8642", "orchidd base URL")
	owner := flag.String("owner", "", "address whose orchids to watch")
	interval := flag.Duration("interval", 5*time.Minute, "poll interval")
	water := flag.Bool("water", false, "water living plants on each pass")
	once := flag.Bool("once", false, "run a single pass and exit")
	flag.Parse()

	logger := logging.New("heartbeat")
	if *owner == "" {
		logger.Error("owner address required")
		os.Exit(1)
	}

	c := &client{
		base:   *server,
		http:   &http.Client{Timeout: 30 * time.Second},
		logger: logger,
	}

	c.pass(*owner, *water)
	if *once {
		return
	}
	ticker := time.NewTicker(*interval)
	defer ticker.Stop()
	for range ticker.C {
		c.pass(*owner, *water)
	}
}
