package proxy

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/craftlab/canvas-gateway/internal/config"
)

const apiPrefix = "/v1"

// Rule describes one upstream mount. StripPrefix removes the mount
// prefix from the forwarded path instead of the default /v1 -> /api
// rewrite.
type Rule struct {
	Prefix      string
	Target      *url.URL
	StripPrefix bool
	Streaming   bool
}

type route struct {
	rule  Rule
	proxy *httputil.ReverseProxy
}

// Table is the routing table for upstream services. It is built once
// at startup and never mutated afterwards, so handlers share it by
// reference without locking.
type Table struct {
	routes  []route
	timeout time.Duration
	logger  *zap.Logger
}

// NewTable builds the routing table from configured upstream addresses.
// Rules are ordered longest prefix first so /v1/media/upload wins over
// /v1/media.
func NewTable(cfg config.Config, logger *zap.Logger) (*Table, error) {
	rules := []struct {
		prefix    string
		addr      string
		strip     bool
		streaming bool
	}{
		{prefix: "/v1/designs", addr: cfg.DesignServiceURL},
		{prefix: "/v1/media/upload", addr: cfg.UploadServiceURL, streaming: true},
		{prefix: "/v1/media", addr: cfg.UploadServiceURL},
		{prefix: "/v1/subscription", addr: cfg.SubscriptionServiceURL},
		{prefix: "/v1/admin", addr: cfg.AdminServiceURL, strip: true},
	}

	t := &Table{timeout: cfg.ProxyTimeout, logger: logger}
	for _, r := range rules {
		target, err := url.Parse(r.addr)
		if err != nil {
			return nil, fmt.Errorf("parse upstream %q: %w", r.addr, err)
		}
		rule := Rule{Prefix: r.prefix, Target: target, StripPrefix: r.strip, Streaming: r.streaming}
		t.routes = append(t.routes, route{rule: rule, proxy: t.buildProxy(rule)})
	}

	sort.SliceStable(t.routes, func(i, j int) bool {
		return len(t.routes[i].rule.Prefix) > len(t.routes[j].rule.Prefix)
	})
	return t, nil
}

// Rules returns a copy of the table's rules, longest prefix first.
func (t *Table) Rules() []Rule {
	out := make([]Rule, len(t.routes))
	for i, r := range t.routes {
		out[i] = r.rule
	}
	return out
}

// Match returns the rule owning the given path, if any. Prefixes match
// on segment boundaries only: /v1/mediafiles does not match /v1/media.
func (t *Table) Match(path string) (Rule, bool) {
	for _, r := range t.routes {
		if path == r.rule.Prefix || strings.HasPrefix(path, r.rule.Prefix+"/") {
			return r.rule, true
		}
	}
	return Rule{}, false
}

// Handle forwards the request to the matching upstream. It is mounted
// as the router's fallback, so unmatched paths get a 404.
func (t *Table) Handle(c *gin.Context) {
	var matched *route
	path := c.Request.URL.Path
	for i := range t.routes {
		r := &t.routes[i]
		if path == r.rule.Prefix || strings.HasPrefix(path, r.rule.Prefix+"/") {
			matched = r
			break
		}
	}
	if matched == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "route not found"})
		return
	}

	req := c.Request
	if matched.rule.Streaming {
		// Streaming bodies carry no deadline, but the proxy still needs
		// a cancellable context to observe client disconnects.
		ctx, cancel := context.WithCancel(req.Context())
		defer cancel()
		req = req.WithContext(ctx)
	} else {
		ctx, cancel := context.WithTimeout(req.Context(), t.timeout)
		defer cancel()
		req = req.WithContext(ctx)
	}
	matched.proxy.ServeHTTP(c.Writer, req)
}

func (t *Table) buildProxy(rule Rule) *httputil.ReverseProxy {
	p := &httputil.ReverseProxy{
		Director: func(req *http.Request) {
			req.URL.Scheme = rule.Target.Scheme
			req.URL.Host = rule.Target.Host
			req.Host = rule.Target.Host
			req.URL.Path = rewritePath(rule, req.URL.Path)
		},
		ErrorHandler: func(w http.ResponseWriter, req *http.Request, err error) {
			status := http.StatusBadGateway
			if errors.Is(err, context.DeadlineExceeded) {
				status = http.StatusGatewayTimeout
			}
			t.logger.Error("upstream request failed",
				zap.String("path", req.URL.Path),
				zap.String("upstream", rule.Target.Host),
				zap.Error(err),
			)
			w.Header().Set("Content-Type", "application/json; charset=utf-8")
			w.WriteHeader(status)
			fmt.Fprintf(w, `{"message":"Internal server error!","error":%q}`, err.Error())
		},
	}
	if rule.Streaming {
		p.FlushInterval = -1
	}
	return p
}

func rewritePath(rule Rule, path string) string {
	if rule.StripPrefix {
		stripped := strings.TrimPrefix(path, rule.Prefix)
		if stripped == "" {
			stripped = "/"
		}
		return stripped
	}
	if strings.HasPrefix(path, apiPrefix) {
		return "/api" + strings.TrimPrefix(path, apiPrefix)
	}
	return path
}
