package surface

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

const userAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36"

// Browser drives a headless Chrome tab through chromedp.
type Browser struct {
	tab     context.Context
	cancels []context.CancelFunc
	log     *zap.Logger
}

// NewBrowser starts a Chrome instance and opens one tab. The browser's
// lifetime is bound to ctx: cancelling it tears the surface down.
func NewBrowser(ctx context.Context, headless bool, log *zap.Logger) (*Browser, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.UserAgent(userAgent),
	)

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	tab, cancelTab := chromedp.NewContext(allocCtx)

	b := &Browser{
		tab:     tab,
		cancels: []context.CancelFunc{cancelTab, cancelAlloc},
		log:     log,
	}
	// Force the browser process to start now so a broken Chrome install
	// fails the run instead of the first navigation.
	if err := chromedp.Run(tab); err != nil {
		b.Close()
		return nil, fmt.Errorf("start browser: %w", err)
	}
	return b, nil
}

// Close tears down the tab and the browser process.
func (b *Browser) Close() {
	for _, cancel := range b.cancels {
		cancel()
	}
}

func (b *Browser) run(ctx context.Context, actions ...chromedp.Action) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return chromedp.Run(b.tab, actions...)
}

func (b *Browser) Navigate(ctx context.Context, url string) error {
	err := b.run(ctx,
		chromedp.Navigate(url),
		chromedp.Sleep(2*time.Second),
		chromedp.Evaluate(consentScript, nil),
	)
	if err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	return nil
}

func (b *Browser) WaitVisible(ctx context.Context, selector string, timeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	waitCtx, cancel := context.WithTimeout(b.tab, timeout)
	defer cancel()
	return chromedp.Run(waitCtx, chromedp.WaitVisible(selector, chromedp.ByQuery))
}

func (b *Browser) Text(ctx context.Context, selector string) (string, error) {
	var out string
	script := fmt.Sprintf(`(function(){
		const n = document.querySelector(%q);
		return n ? n.textContent.trim() : '';
	})()`, selector)
	if err := b.run(ctx, chromedp.Evaluate(script, &out)); err != nil {
		return "", err
	}
	return out, nil
}

func (b *Browser) Attr(ctx context.Context, selector, name string) (string, error) {
	var out string
	script := fmt.Sprintf(`(function(){
		const n = document.querySelector(%q);
		if (!n) { return ''; }
		return n.getAttribute(%q) || n[%q] || '';
	})()`, selector, name, name)
	if err := b.run(ctx, chromedp.Evaluate(script, &out)); err != nil {
		return "", err
	}
	return out, nil
}

func (b *Browser) Attrs(ctx context.Context, selector, name string) ([]string, error) {
	var out []string
	script := fmt.Sprintf(`(function(){
		return Array.from(document.querySelectorAll(%q))
			.map(n => n.getAttribute(%q) || n[%q] || '')
			.filter(v => v !== '');
	})()`, selector, name, name)
	if err := b.run(ctx, chromedp.Evaluate(script, &out)); err != nil {
		return nil, err
	}
	return out, nil
}

func (b *Browser) Click(ctx context.Context, selector string) error {
	var clicked bool
	script := fmt.Sprintf(`(function(){
		const n = document.querySelector(%q);
		if (!n) { return false; }
		n.scrollIntoView(true);
		n.click();
		return true;
	})()`, selector)
	if err := b.run(ctx, chromedp.Evaluate(script, &clicked)); err != nil {
		return err
	}
	if !clicked {
		return fmt.Errorf("click: no element matches %q", selector)
	}
	return nil
}

func (b *Browser) ScrollFeed(ctx context.Context) error {
	return b.run(ctx, chromedp.Evaluate(scrollScript, nil))
}

func (b *Browser) Back(ctx context.Context) error {
	return b.run(ctx, chromedp.NavigateBack())
}

const consentScript = `(function () {
  const selectors = [
    'button[aria-label="Accept all"]',
    'button[aria-label="I agree"]',
    'button[aria-label="Alles akzeptieren"]',
    'button.VfPpkd-LgbsSe-OWXEXe-k8QpJ'
  ];
  for (const sel of selectors) {
    const btn = document.querySelector(sel);
    if (btn) {
      btn.click();
      return true;
    }
  }
  return false;
})();`

const scrollScript = `(function () {
  const feed = document.querySelector('div[role="feed"]') || document.querySelector('div[role="main"]');
  if (feed) {
    feed.scrollTop = feed.scrollHeight;
  }
  window.scrollTo(0, document.body.scrollHeight);
})();`
