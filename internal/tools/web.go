package tools

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

// WebTool drives a headless browser for the agent's "web" tool (spec
// §1's tool list), grounded in the teacher's pkg/browser/tool.go
// action-dispatch shape (fetch/navigate/extract), reduced to the two
// operations a text-oriented agent actually needs: fetching rendered
// page text and taking a screenshot. Each call launches and closes its
// own browser instance rather than holding one open across calls —
// simpler lifecycle than the teacher's persistent Manager, appropriate
// for a tool invoked a handful of times per run rather than driven
// interactively tab-by-tab.
type WebTool struct {
	timeout time.Duration
}

// NewWebTool builds a WebTool. timeout <= 0 defaults to 20s per call.
func NewWebTool(timeout time.Duration) *WebTool {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &WebTool{timeout: timeout}
}

// Register adds the "web_fetch" and "web_screenshot" tools to r.
func (w *WebTool) Register(r *Registry) {
	r.MustRegister(Tool{
		Name:        "web_fetch",
		Description: "Navigate to a URL and return its rendered page text",
		Schema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"url": map[string]interface{}{"type": "string", "description": "URL to fetch"},
			},
			"required": []string{"url"},
		},
		Run: w.fetch,
	})
	r.MustRegister(Tool{
		Name:        "web_screenshot",
		Description: "Navigate to a URL and return a base64-encoded PNG screenshot",
		Schema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"url": map[string]interface{}{"type": "string", "description": "URL to screenshot"},
			},
			"required": []string{"url"},
		},
		Run: w.screenshot,
	})
}

func (w *WebTool) withPage(ctx context.Context, url string, fn func(page *rod.Page) (string, error)) (string, error) {
	if url == "" {
		return "", fmt.Errorf("url is required")
	}

	runCtx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	u := launcher.New().Headless(true).MustLaunch()
	browser := rod.New().ControlURL(u).Context(runCtx)
	if err := browser.Connect(); err != nil {
		return "", fmt.Errorf("launch browser: %w", err)
	}
	defer browser.Close()

	page, err := browser.Page(proto.TargetCreateTarget{URL: url})
	if err != nil {
		return "", fmt.Errorf("open page %s: %w", url, err)
	}
	defer page.Close()
	if err := page.WaitLoad(); err != nil {
		return "", fmt.Errorf("wait for %s to load: %w", url, err)
	}
	return fn(page)
}

func (w *WebTool) fetch(ctx context.Context, _ string, args map[string]interface{}) (string, error) {
	url, _ := args["url"].(string)
	return w.withPage(ctx, url, func(page *rod.Page) (string, error) {
		body, err := page.Element("body")
		if err != nil {
			return "", fmt.Errorf("locate page body: %w", err)
		}
		text, err := body.Text()
		if err != nil {
			return "", fmt.Errorf("extract page text: %w", err)
		}
		return text, nil
	})
}

func (w *WebTool) screenshot(ctx context.Context, _ string, args map[string]interface{}) (string, error) {
	url, _ := args["url"].(string)
	return w.withPage(ctx, url, func(page *rod.Page) (string, error) {
		data, err := page.Screenshot(false, nil)
		if err != nil {
			return "", fmt.Errorf("screenshot %s: %w", url, err)
		}
		return fmt.Sprintf("data:image/png;base64,%s", base64.StdEncoding.EncodeToString(data)), nil
	})
}
