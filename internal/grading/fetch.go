package grading

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/checkyourpaper/checkyourpaper-backend/internal/domain/report"
)

const defaultContentType = "application/octet-stream"

// Fetcher downloads report attachments over HTTP.
type Fetcher struct {
	client   *http.Client
	timeout  time.Duration
	maxBytes int64
}

func NewFetcher(client *http.Client, timeout time.Duration, maxBytes int64) *Fetcher {
	if client == nil {
		client = http.DefaultClient
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Fetcher{client: client, timeout: timeout, maxBytes: maxBytes}
}

func (f *Fetcher) Fetch(ctx context.Context, url string) (Attachment, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Attachment{}, err
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return Attachment{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Attachment{}, fmt.Errorf("GET %s: %s", redactURL(url), resp.Status)
	}

	body := io.Reader(resp.Body)
	if f.maxBytes > 0 {
		body = io.LimitReader(resp.Body, f.maxBytes+1)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return Attachment{}, err
	}
	if f.maxBytes > 0 && int64(len(data)) > f.maxBytes {
		return Attachment{}, fmt.Errorf("file exceeds %d bytes", f.maxBytes)
	}
	if len(data) == 0 {
		return Attachment{}, fmt.Errorf("GET %s: empty body", redactURL(url))
	}
	return Attachment{MIMEType: contentType(resp.Header.Get("Content-Type"), data), Data: data}, nil
}

// FetchForReport downloads the worksheet and, when attached, the markscheme
// concurrently. The first failure cancels the other download.
func (f *Fetcher) FetchForReport(ctx context.Context, r *report.Report) (Attachment, *Attachment, error) {
	var worksheet Attachment
	var markscheme *Attachment

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a, err := f.Fetch(gctx, r.WorksheetURL)
		if err != nil {
			return fmt.Errorf("failed to fetch worksheet: %w", err)
		}
		worksheet = a
		return nil
	})
	if r.HasMarkscheme() {
		g.Go(func() error {
			a, err := f.Fetch(gctx, r.MarkschemeURL)
			if err != nil {
				return fmt.Errorf("failed to fetch markscheme: %w", err)
			}
			markscheme = &a
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Attachment{}, nil, err
	}
	return worksheet, markscheme, nil
}

func contentType(header string, data []byte) string {
	if mt, _, err := mime.ParseMediaType(header); err == nil && mt != "" && mt != defaultContentType {
		return mt
	}
	if sniffed := http.DetectContentType(data); sniffed != "" {
		if mt, _, err := mime.ParseMediaType(sniffed); err == nil {
			return mt
		}
	}
	return defaultContentType
}

// redactURL drops the query string, which may carry signed credentials.
func redactURL(u string) string {
	if i := strings.IndexByte(u, '?'); i >= 0 {
		return u[:i]
	}
	return u
}
