package adapters

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/chromedp"

	"github.com/tdermendjiev/aiwe-client/internal/catalog"
)

// BrowserAdapter drives a long-lived Chrome instance. The window stays
// open across actions until closeBrowser runs, so multi-step plans can
// navigate, inspect, and interact with the same page state.
type BrowserAdapter struct {
	mu            sync.Mutex
	allocCtx      context.Context
	browserCtx    context.Context
	allocCancel   context.CancelFunc
	browserCancel context.CancelFunc
}

func NewBrowserAdapter() *BrowserAdapter {
	return &BrowserAdapter{}
}

func (b *BrowserAdapter) Name() string {
	return "browser"
}

func (b *BrowserAdapter) Catalog() *catalog.Catalog {
	selector := catalog.ParamSpec{Type: "string", Description: "CSS selector for the target element", Required: true}
	return &catalog.Catalog{
		Service:     "browser",
		Description: "Control a browser to interact with websites. The window remains open between actions until closeBrowser is called.",
		Actions: []catalog.ActionSpec{
			{
				Name:        "navigate",
				Description: "Open a URL in the browser",
				Parameters: map[string]catalog.ParamSpec{
					"url": {Type: "string", Description: "The URL to navigate to", Required: true},
				},
			},
			{
				Name:        "getContent",
				Description: "Return the current page's HTML",
			},
			{
				Name:        "click",
				Description: "Click the first element matching a selector",
				Parameters:  map[string]catalog.ParamSpec{"selector": selector},
			},
			{
				Name:        "typeText",
				Description: "Type text into the element matching a selector",
				Parameters: map[string]catalog.ParamSpec{
					"selector": selector,
					"text":     {Type: "string", Description: "The text to type", Required: true},
				},
			},
			{
				Name:        "pressKey",
				Description: "Press a keyboard key, such as Enter",
				Parameters: map[string]catalog.ParamSpec{
					"key": {Type: "string", Description: "The key to press", Required: true},
				},
			},
			{
				Name:        "scroll",
				Description: "Scroll an element into view, or to the page bottom without a selector",
				Parameters: map[string]catalog.ParamSpec{
					"selector": {Type: "string", Description: "CSS selector to scroll to"},
				},
			},
			{
				Name:        "waitFor",
				Description: "Wait until a selector is visible, or sleep a number of seconds",
				Parameters: map[string]catalog.ParamSpec{
					"selector": {Type: "string", Description: "CSS selector to wait for"},
					"seconds":  {Type: "integer", Description: "Time to wait in seconds"},
				},
			},
			{Name: "goBack", Description: "Navigate back in history"},
			{Name: "goForward", Description: "Navigate forward in history"},
			{Name: "reload", Description: "Reload the current page"},
			{Name: "screenshot", Description: "Capture the visible page to a PNG file"},
			{Name: "closeBrowser", Description: "Close the browser window"},
		},
	}
}

func (b *BrowserAdapter) init(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.browserCtx != nil {
		select {
		case <-b.browserCtx.Done():
			b.cleanup()
		default:
			return nil
		}
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.NoSandbox,
		chromedp.Flag("headless", false),
		chromedp.Flag("no-first-run", true),
		chromedp.Flag("no-default-browser-check", true),
	)

	b.allocCtx, b.allocCancel = chromedp.NewExecAllocator(context.Background(), opts...)
	b.browserCtx, b.browserCancel = chromedp.NewContext(b.allocCtx)

	return chromedp.Run(b.browserCtx)
}

func (b *BrowserAdapter) cleanup() {
	if b.browserCancel != nil {
		b.browserCancel()
	}
	if b.allocCancel != nil {
		b.allocCancel()
	}
	b.browserCtx = nil
	b.allocCtx = nil
}

func (b *BrowserAdapter) Execute(ctx context.Context, action string, params map[string]any) (any, error) {
	if action == "closeBrowser" {
		b.mu.Lock()
		b.cleanup()
		b.mu.Unlock()
		return map[string]any{"message": "Browser closed."}, nil
	}

	if err := b.init(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize browser: %v", err)
	}

	actionCtx, cancel := context.WithTimeout(b.browserCtx, 60*time.Second)
	defer cancel()

	selector := stringParam(params, "selector")
	var message string
	var err error

	switch action {
	case "navigate":
		url := stringParam(params, "url")
		if url == "" {
			return nil, fmt.Errorf("url is required")
		}
		err = chromedp.Run(actionCtx, chromedp.Navigate(url))
		message = fmt.Sprintf("Navigated to %s", url)

	case "getContent":
		var html string
		err = chromedp.Run(actionCtx,
			chromedp.ActionFunc(func(ctx context.Context) error {
				node, err := dom.GetDocument().Do(ctx)
				if err != nil {
					return err
				}
				html, err = dom.GetOuterHTML().WithNodeID(node.NodeID).Do(ctx)
				return err
			}),
		)
		if err == nil {
			if len(html) > 50000 {
				html = html[:50000] + "\n... (truncated)"
			}
			return map[string]any{"content": html}, nil
		}

	case "click":
		if selector == "" {
			return nil, fmt.Errorf("selector is required")
		}
		err = chromedp.Run(actionCtx, chromedp.Click(selector, chromedp.ByQuery))
		message = fmt.Sprintf("Clicked %s", selector)

	case "typeText":
		text := stringParam(params, "text")
		if selector == "" || text == "" {
			return nil, fmt.Errorf("selector and text are required")
		}
		err = chromedp.Run(actionCtx, chromedp.SendKeys(selector, text, chromedp.ByQuery))
		message = fmt.Sprintf("Typed text in %s", selector)

	case "pressKey":
		key := stringParam(params, "key")
		if key == "" {
			return nil, fmt.Errorf("key is required")
		}
		err = chromedp.Run(actionCtx, chromedp.KeyEvent(key))
		message = fmt.Sprintf("Pressed key %s", key)

	case "scroll":
		if selector != "" {
			err = chromedp.Run(actionCtx, chromedp.ScrollIntoView(selector, chromedp.ByQuery))
			message = fmt.Sprintf("Scrolled to %s", selector)
		} else {
			err = chromedp.Run(actionCtx, chromedp.Evaluate("window.scrollTo(0, document.body.scrollHeight)", nil))
			message = "Scrolled to bottom"
		}

	case "waitFor":
		seconds := intParam(params, "seconds")
		if selector != "" {
			err = chromedp.Run(actionCtx, chromedp.WaitVisible(selector, chromedp.ByQuery))
			message = fmt.Sprintf("Finished waiting for %s", selector)
		} else if seconds > 0 {
			time.Sleep(time.Duration(seconds) * time.Second)
			message = fmt.Sprintf("Waited for %d seconds", seconds)
		} else {
			message = "Nothing to wait for"
		}

	case "goBack":
		err = chromedp.Run(actionCtx, chromedp.NavigateBack())
		message = "Navigated back"

	case "goForward":
		err = chromedp.Run(actionCtx, chromedp.NavigateForward())
		message = "Navigated forward"

	case "reload":
		err = chromedp.Run(actionCtx, chromedp.Reload())
		message = "Page reloaded"

	case "screenshot":
		var buf []byte
		err = chromedp.Run(actionCtx, chromedp.CaptureScreenshot(&buf))
		if err == nil {
			os.MkdirAll("screenshots", 0755)
			filename := fmt.Sprintf("screenshot_%d.png", time.Now().Unix())
			path := filepath.Join("screenshots", filename)
			if err = os.WriteFile(path, buf, 0644); err == nil {
				absPath, _ := filepath.Abs(path)
				return map[string]any{"message": "Screenshot saved", "path": absPath}, nil
			}
		}

	default:
		return nil, &UnknownActionError{Service: b.Name(), Action: action}
	}

	if err != nil {
		return nil, fmt.Errorf("browser action %s failed: %v", action, err)
	}
	return map[string]any{"message": message}, nil
}
