package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	cdpruntime "github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
)

// Options configures the Chrome surface.
type Options struct {
	// AttachURL is a DevTools websocket URL to attach to an already
	// running browser. When empty a local instance is launched.
	AttachURL string

	// Headless applies only to launched instances.
	Headless bool

	// UserDataDir optionally pins the launched profile directory.
	UserDataDir string
}

// Chrome drives a single Chrome session over CDP via chromedp.
type Chrome struct {
	ctx    context.Context
	cancel context.CancelFunc
}

// NewChrome launches or attaches to a browser per opts. Close releases
// the session.
func NewChrome(parent context.Context, opts Options) (*Chrome, error) {
	var allocCtx context.Context
	var allocCancel context.CancelFunc

	if opts.AttachURL != "" {
		allocCtx, allocCancel = chromedp.NewRemoteAllocator(parent, opts.AttachURL)
	} else {
		allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("headless", opts.Headless),
		)
		if opts.UserDataDir != "" {
			allocOpts = append(allocOpts, chromedp.UserDataDir(opts.UserDataDir))
		}
		allocCtx, allocCancel = chromedp.NewExecAllocator(parent, allocOpts...)
	}

	ctx, cancel := chromedp.NewContext(allocCtx)
	return &Chrome{
		ctx: ctx,
		cancel: func() {
			cancel()
			allocCancel()
		},
	}, nil
}

// Close tears down the session.
func (c *Chrome) Close() error {
	c.cancel()
	return nil
}

// run executes actions on the session context. The caller context only
// gates cancellation between operations; in-flight CDP calls follow the
// session's own lifetime.
func (c *Chrome) run(ctx context.Context, actions ...chromedp.Action) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return chromedp.Run(c.ctx, actions...)
}

func (c *Chrome) Navigate(ctx context.Context, url string) error {
	return c.run(ctx, chromedp.Navigate(url))
}

func (c *Chrome) Click(ctx context.Context, selector string) error {
	return c.run(ctx, chromedp.Click(selector, chromedp.ByQuery))
}

func (c *Chrome) Type(ctx context.Context, selector, text string) error {
	return c.run(ctx, chromedp.SendKeys(selector, text, chromedp.ByQuery))
}

func (c *Chrome) Scroll(ctx context.Context, selector string) error {
	return c.run(ctx, chromedp.ScrollIntoView(selector, chromedp.ByQuery))
}

func (c *Chrome) ExtractHTML(ctx context.Context, selector string) (string, error) {
	var html string
	if err := c.run(ctx, chromedp.OuterHTML(selector, &html, chromedp.ByQuery)); err != nil {
		return "", err
	}
	return html, nil
}

func (c *Chrome) EvaluateScript(ctx context.Context, source string, timeout time.Duration) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	evalCtx, cancel := context.WithTimeout(c.ctx, timeout)
	defer cancel()

	var raw json.RawMessage
	err := chromedp.Run(evalCtx, chromedp.Evaluate(source, &raw,
		func(p *cdpruntime.EvaluateParams) *cdpruntime.EvaluateParams {
			return p.WithAwaitPromise(true).WithReturnByValue(true)
		},
	))
	if err != nil {
		return "", fmt.Errorf("evaluating script: %w", err)
	}
	return string(raw), nil
}
