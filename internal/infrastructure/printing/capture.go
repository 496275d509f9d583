package printing

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"mime"
	"net"
	"net/http"
	"net/url"
	"strings"
	"syscall"
	"time"

	"github.com/invoicer/backend/internal/domain/shared"
	"github.com/invoicer/backend/internal/infrastructure/config"
	"github.com/invoicer/backend/internal/infrastructure/logger"
	"go.uber.org/zap"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

const defaultMaxAssetBytes = 5 << 20

// controlTags are removed from the captured subtree
var controlTags = map[atom.Atom]bool{
	atom.Button:   true,
	atom.Input:    true,
	atom.Select:   true,
	atom.Textarea: true,
	atom.Form:     true,
}

var (
	errAssetTooLarge   = errors.New("asset exceeds size limit")
	errAssetNotAllowed = errors.New("asset host is not allowed")
	errBlockedAddress  = errors.New("asset address is not reachable from capture")
)

// Capturer turns a rendered page into a self-contained invoice document:
// only the invoice subtree, no controls, images as data URIs and all styles embedded.
//
// Assets are fetched only from the configured hosts. The base URL of a capture
// request decides how references resolve, never which hosts may be contacted.
type Capturer struct {
	client   *http.Client
	maxBytes int64
	hosts    map[string]bool
	logger   *zap.Logger
}

// CapturerOption configures a Capturer
type CapturerOption func(*Capturer)

// WithAssetHosts adds hosts ("host" or "host:port") capture may fetch assets from
func WithAssetHosts(hosts ...string) CapturerOption {
	return func(c *Capturer) {
		for _, h := range hosts {
			if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
				c.hosts[h] = true
			}
		}
	}
}

// NewCapturer creates a capturer bounded by the renderer settings. It may fetch from
// the asset base URL host and renderer.asset_hosts, and unless renderer.allow_private_assets
// is set its connections to loopback, private and link-local addresses are refused.
func NewCapturer(cfg config.RendererConfig, log *zap.Logger) *Capturer {
	hosts := cfg.AssetHosts
	if base, err := url.Parse(cfg.AssetBaseURL); err == nil && base.Host != "" {
		hosts = append([]string{base.Host}, hosts...)
	}
	client := &http.Client{
		Timeout:   cfg.AssetTimeout,
		Transport: assetTransport(cfg.AllowPrivateAssets),
	}
	return NewCapturerWithClient(client, cfg.MaxAssetBytes, log, WithAssetHosts(hosts...))
}

// NewCapturerWithClient creates a capturer fetching assets with a copy of client.
// Without WithAssetHosts no asset is fetched.
func NewCapturerWithClient(client *http.Client, maxBytes int64, log *zap.Logger, opts ...CapturerOption) *Capturer {
	if client == nil {
		client = http.DefaultClient
	}
	if maxBytes <= 0 {
		maxBytes = defaultMaxAssetBytes
	}
	if log == nil {
		log = zap.NewNop()
	}
	c := &Capturer{maxBytes: maxBytes, hosts: make(map[string]bool), logger: log}
	for _, opt := range opts {
		opt(c)
	}

	guarded := *client
	guarded.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		if len(via) >= 5 {
			return errors.New("too many redirects")
		}
		return c.allow(req.URL)
	}
	c.client = &guarded
	return c
}

// allow reports whether u may be fetched
func (c *Capturer) allow(u *url.URL) error {
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: scheme %q", errAssetNotAllowed, u.Scheme)
	}
	host := strings.ToLower(u.Host)
	if c.hosts[host] || c.hosts[strings.ToLower(u.Hostname())] {
		return nil
	}
	return fmt.Errorf("%w: %s", errAssetNotAllowed, u.Host)
}

// assetTransport dials through a guard that refuses internal addresses unless allowPrivate is set.
// The check runs on the resolved address, so DNS names pointing inward are refused too.
func assetTransport(allowPrivate bool) *http.Transport {
	dialer := &net.Dialer{Timeout: 5 * time.Second}
	if !allowPrivate {
		dialer.Control = refuseInternal
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.Proxy = nil
	transport.DialContext = dialer.DialContext
	return transport
}

func refuseInternal(network, address string, _ syscall.RawConn) error {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return err
	}
	ip := net.ParseIP(host)
	if ip == nil || isInternalIP(ip) {
		return fmt.Errorf("%w: %s", errBlockedAddress, address)
	}
	return nil
}

func isInternalIP(ip net.IP) bool {
	return ip.IsLoopback() || ip.IsPrivate() || ip.IsUnspecified() ||
		ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() ||
		ip.IsInterfaceLocalMulticast() || ip.IsMulticast()
}

// Capture extracts the invoice subtree of doc and returns it wrapped in a minimal
// standalone document. Relative asset references resolve against baseURL; stylesheets
// from another origin are skipped.
func (c *Capturer) Capture(ctx context.Context, doc, baseURL string) (string, error) {
	tree, err := html.Parse(strings.NewReader(doc))
	if err != nil {
		return "", shared.WrapDomainError(shared.CodeValidation, "Invoice document could not be parsed", err)
	}

	root := findInvoiceRoot(tree)
	if root == nil {
		return "", shared.NewDomainError(shared.CodeValidation, "Invoice preview element not found")
	}

	var base *url.URL
	if baseURL != "" {
		if base, err = url.Parse(baseURL); err != nil {
			return "", shared.WrapDomainError(shared.CodeValidation, "Invalid base URL", err)
		}
	}

	styles := c.collectStyles(ctx, tree, base)

	fragment := cloneNode(root)
	stripControls(fragment)
	c.inlineImages(ctx, fragment, base)

	out, err := renderShell(fragment, styles)
	if err != nil {
		return "", shared.WrapDomainError(shared.CodeRenderFailure, "Failed to serialize invoice document", err)
	}
	return out, nil
}

// findInvoiceRoot returns the first element with id="invoice-preview" or a data-invoice-root attribute
func findInvoiceRoot(n *html.Node) *html.Node {
	if n.Type == html.ElementNode {
		if attr(n, "id") == "invoice-preview" || hasAttr(n, "data-invoice-root") {
			return n
		}
	}
	for ch := n.FirstChild; ch != nil; ch = ch.NextSibling {
		if found := findInvoiceRoot(ch); found != nil {
			return found
		}
	}
	return nil
}

// collectStyles concatenates every <style> block and every same-origin stylesheet in document order
func (c *Capturer) collectStyles(ctx context.Context, tree *html.Node, base *url.URL) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch {
			case n.DataAtom == atom.Style:
				for ch := n.FirstChild; ch != nil; ch = ch.NextSibling {
					if ch.Type == html.TextNode {
						sb.WriteString(ch.Data)
					}
				}
				sb.WriteString("\n")
			case n.DataAtom == atom.Link && isStylesheet(n):
				if css, ok := c.fetchStylesheet(ctx, attr(n, "href"), base); ok {
					sb.WriteString(css)
					sb.WriteString("\n")
				}
			}
		}
		for ch := n.FirstChild; ch != nil; ch = ch.NextSibling {
			walk(ch)
		}
	}
	walk(tree)
	return sb.String()
}

func (c *Capturer) fetchStylesheet(ctx context.Context, href string, base *url.URL) (string, bool) {
	if base == nil || href == "" {
		return "", false
	}
	ref, err := base.Parse(href)
	if err != nil || !sameOrigin(base, ref) {
		return "", false
	}
	body, _, err := c.fetch(ctx, ref.String())
	if err != nil {
		c.logger.Debug("Skipping stylesheet", zap.String("href", ref.String()), zap.Error(err))
		return "", false
	}
	return string(body), true
}

// inlineImages replaces every <img src> below n with a data URI; failures keep the original src
func (c *Capturer) inlineImages(ctx context.Context, n *html.Node, base *url.URL) {
	if n.Type == html.ElementNode && n.DataAtom == atom.Img {
		src := attr(n, "src")
		if src != "" && !strings.HasPrefix(src, "data:") {
			if dataURI, err := c.toDataURI(ctx, src, base); err != nil {
				logger.Or(ctx, c.logger).Warn("Failed to inline image", zap.String("src", src), zap.Error(err))
			} else {
				setAttr(n, "src", dataURI)
			}
		}
	}
	for ch := n.FirstChild; ch != nil; ch = ch.NextSibling {
		c.inlineImages(ctx, ch, base)
	}
}

func (c *Capturer) toDataURI(ctx context.Context, src string, base *url.URL) (string, error) {
	target, err := url.Parse(src)
	if err != nil {
		return "", err
	}
	if base != nil {
		target = base.ResolveReference(target)
	}
	if !target.IsAbs() {
		return "", fmt.Errorf("cannot resolve relative image %q without a base URL", src)
	}

	data, contentType, err := c.fetch(ctx, target.String())
	if err != nil {
		return "", err
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil || mediaType == "" || mediaType == "application/octet-stream" {
		mediaType, _, _ = mime.ParseMediaType(http.DetectContentType(data))
	}
	return "data:" + mediaType + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}

// fetch GETs rawURL from an allowed host and returns the body (bounded by maxBytes) and its Content-Type
func (c *Capturer) fetch(ctx context.Context, rawURL string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, "", err
	}
	if err := c.allow(req.URL); err != nil {
		return nil, "", err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, "", fmt.Errorf("GET %s: status %d", rawURL, resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBytes+1))
	if err != nil {
		return nil, "", err
	}
	if int64(len(data)) > c.maxBytes {
		return nil, "", errAssetTooLarge
	}
	return data, resp.Header.Get("Content-Type"), nil
}

// stripControls removes interactive elements and anything hidden from print below n
func stripControls(n *html.Node) {
	for ch := n.FirstChild; ch != nil; {
		next := ch.NextSibling
		if ch.Type == html.ElementNode && isControl(ch) {
			n.RemoveChild(ch)
		} else {
			stripControls(ch)
		}
		ch = next
	}
}

func isControl(n *html.Node) bool {
	if controlTags[n.DataAtom] || hasAttr(n, "data-print-hidden") {
		return true
	}
	for _, class := range strings.Fields(attr(n, "class")) {
		if class == "print:hidden" {
			return true
		}
	}
	return false
}

// renderShell wraps fragment in a minimal document with one embedded stylesheet
func renderShell(fragment *html.Node, styles string) (string, error) {
	doc := &html.Node{Type: html.DocumentNode}
	doc.AppendChild(&html.Node{Type: html.DoctypeNode, Data: "html"})

	htmlEl := element(atom.Html)
	head := element(atom.Head)
	meta := element(atom.Meta)
	meta.Attr = []html.Attribute{{Key: "charset", Val: "UTF-8"}}
	head.AppendChild(meta)
	if styles != "" {
		style := element(atom.Style)
		style.AppendChild(&html.Node{Type: html.TextNode, Data: styles})
		head.AppendChild(style)
	}
	body := element(atom.Body)
	body.AppendChild(fragment)

	htmlEl.AppendChild(head)
	htmlEl.AppendChild(body)
	doc.AppendChild(htmlEl)

	var buf bytes.Buffer
	if err := html.Render(&buf, doc); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// cloneNode deep-copies n into a detached tree
func cloneNode(n *html.Node) *html.Node {
	clone := &html.Node{
		Type:      n.Type,
		DataAtom:  n.DataAtom,
		Data:      n.Data,
		Namespace: n.Namespace,
		Attr:      append([]html.Attribute(nil), n.Attr...),
	}
	for ch := n.FirstChild; ch != nil; ch = ch.NextSibling {
		clone.AppendChild(cloneNode(ch))
	}
	return clone
}

func element(a atom.Atom) *html.Node {
	return &html.Node{Type: html.ElementNode, DataAtom: a, Data: a.String()}
}

func isStylesheet(n *html.Node) bool {
	for _, rel := range strings.Fields(strings.ToLower(attr(n, "rel"))) {
		if rel == "stylesheet" {
			return true
		}
	}
	return false
}

func sameOrigin(a, b *url.URL) bool {
	return strings.EqualFold(a.Scheme, b.Scheme) && strings.EqualFold(a.Host, b.Host)
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func hasAttr(n *html.Node, key string) bool {
	for _, a := range n.Attr {
		if a.Key == key {
			return true
		}
	}
	return false
}

func setAttr(n *html.Node, key, val string) {
	for i := range n.Attr {
		if n.Attr[i].Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}
