// Package fetcher 负责拉取网页并抽取纯文本快照。
//
// 任何失败（网络错误、超时、非 2xx、解析失败、空文本）都只返回 ok=false，
// 调用方按“本轮没有拿到内容”处理，下一轮自然重试。
package fetcher

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
)

// Fetcher 抽象出“获取某个资源的文本快照”能力，便于替换和测试。
type Fetcher interface {
	Fetch(ctx context.Context, url string) (string, bool)
}

// FetcherFunc 让普通函数满足 Fetcher。
type FetcherFunc func(ctx context.Context, url string) (string, bool)

func (f FetcherFunc) Fetch(ctx context.Context, url string) (string, bool) { return f(ctx, url) }

type Options struct {
	Timeout      time.Duration
	UserAgent    string
	MaxBodyBytes int64
	MaxRedirects int
	Logger       *slog.Logger
}

func (o *Options) defaults() {
	if o.Timeout <= 0 {
		o.Timeout = 20 * time.Second
	}
	if o.UserAgent == "" {
		o.UserAgent = "DocWatch/1.0"
	}
	if o.MaxBodyBytes <= 0 {
		o.MaxBodyBytes = 5 << 20
	}
	if o.MaxRedirects <= 0 {
		o.MaxRedirects = 5
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}

// HTTPFetcher 基于 resty 拉取页面，用 goquery 去掉标记只留可读文本。
type HTTPFetcher struct {
	client *resty.Client
	opts   Options
}

func NewHTTPFetcher(opts Options) *HTTPFetcher {
	opts.defaults()
	client := resty.New().
		SetTimeout(opts.Timeout).
		SetHeader("User-Agent", opts.UserAgent).
		SetHeader("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8").
		SetRedirectPolicy(resty.FlexibleRedirectPolicy(opts.MaxRedirects))
	return &HTTPFetcher{client: client, opts: opts}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, url string) (string, bool) {
	log := f.opts.Logger.With("component", "fetcher", "url", url)

	res, err := f.client.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		Get(url)
	if err != nil {
		log.Warn("fetch failed", "error", err)
		return "", false
	}
	body := res.RawBody()
	defer body.Close()

	if !res.IsSuccess() {
		log.Warn("fetch failed", "status", res.StatusCode())
		return "", false
	}

	text, err := ExtractText(io.LimitReader(body, f.opts.MaxBodyBytes))
	if err != nil {
		log.Warn("extract failed", "error", err)
		return "", false
	}
	if text == "" {
		log.Warn("extract failed", "error", "empty text")
		return "", false
	}
	return text, true
}

const droppedTags = "script, style, noscript, template, iframe, svg"

// ExtractText 去掉脚本/样式等非正文节点，返回逐行 trim、去空行后的文本。
// 同样的输入总是得到同样的输出。
func ExtractText(r io.Reader) (string, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return "", err
	}
	doc.Find(droppedTags).Remove()
	// 块级元素之间补换行，避免相邻段落粘成一行
	doc.Find("p, div, li, tr, br, h1, h2, h3, h4, h5, h6, section, article, pre, dt, dd").Each(func(_ int, s *goquery.Selection) {
		s.AppendHtml("\n")
	})
	return normalize(doc.Text()), nil
}

func normalize(raw string) string {
	raw = strings.ReplaceAll(raw, "\r\n", "\n")
	lines := strings.Split(raw, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line == "" {
			continue
		}
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}
