// Package crawl drives WebForms postback pagination: page one is a plain
// GET, every further page re-submits the previous page's hidden form fields
// with the pager target and the page number. The sequence is inherently
// ordered and never parallelized.
package crawl

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"github.com/echecs92/chess-sync/internal/extract"
	"github.com/echecs92/chess-sync/internal/fetch"
)

// state carries the crawl position across postbacks.
type state struct {
	hidden  map[string]string
	page    int
	maxPage int
	target  string
}

// Pager collects every page of paginated listings.
type Pager struct {
	client *fetch.Client
	pacer  *rate.Limiter
}

// New builds a Pager. pageDelay shapes the gap between sequential postback
// requests; zero disables pacing.
func New(client *fetch.Client, pageDelay time.Duration) *Pager {
	p := &Pager{client: client}
	if pageDelay > 0 {
		p.pacer = rate.NewLimiter(rate.Every(pageDelay), 1)
	}
	return p
}

// Pages fetches all pages of the listing at rawURL in order. A failed page
// fetch fails the whole listing; the caller decides what partial tolerance
// means.
func (p *Pager) Pages(ctx context.Context, rawURL string) ([]string, error) {
	first, err := p.client.Text(ctx, rawURL, fetch.DefaultOptions())
	if err != nil {
		return nil, fmt.Errorf("page 1: %w", err)
	}
	pages := []string{first}

	info := extract.ExtractPagerInfo(first)
	if info.EventTarget == "" || info.MaxPage <= 1 {
		return pages, nil
	}

	st := state{
		hidden:  extract.ExtractHiddenFields(first),
		page:    1,
		maxPage: info.MaxPage,
		target:  info.EventTarget,
	}

	for st.page < st.maxPage {
		next := st.page + 1
		if p.pacer != nil {
			if err := p.pacer.Wait(ctx); err != nil {
				return nil, fmt.Errorf("page %d: %w", next, err)
			}
		}

		form := url.Values{}
		for k, v := range st.hidden {
			form.Set(k, v)
		}
		form.Set("__EVENTTARGET", st.target)
		form.Set("__EVENTARGUMENT", fmt.Sprintf("%d", next))

		html, err := p.client.PostForm(ctx, rawURL, form, fetch.DefaultOptions())
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", next, err)
		}
		pages = append(pages, html)
		st.hidden = extract.ExtractHiddenFields(html)
		st.page = next
	}
	return pages, nil
}
