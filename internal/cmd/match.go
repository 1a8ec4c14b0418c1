package cmd

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/AdguardTeam/filterengine"
	"github.com/AdguardTeam/filterengine/rules"
	"github.com/AdguardTeam/golibs/errors"
	"github.com/bluele/gcache"
	"github.com/miekg/dns"
)

// request is a single line of the requests input.  Either URL or Hostname must
// be set.
type request struct {
	// URL is the URL of a web request.
	URL string `json:"url,omitempty"`

	// SourceURL is the URL of the page that made the web request.
	SourceURL string `json:"source_url,omitempty"`

	// Type is the name of the web request type, for example "script".  If
	// empty, "other" is used.
	Type string `json:"type,omitempty"`

	// Hostname is the hostname of a DNS request.
	Hostname string `json:"hostname,omitempty"`

	// DNSType is the name of the DNS question type, for example "AAAA".
	DNSType string `json:"dnstype,omitempty"`
}

// result is a single line of the results output.
type result struct {
	// Request is the request the result is for.
	Request *request `json:"request"`

	// Rule is the text of the rule that defines the result.
	Rule string `json:"rule,omitempty"`

	// Error is the error of processing the request, if any.
	Error string `json:"error,omitempty"`

	// HostRules are the texts of the matching hosts-syntax rules.
	HostRules []string `json:"host_rules,omitempty"`

	// Blocked is true if the request is blocked.
	Blocked bool `json:"blocked"`
}

// errNoTarget is returned when a request has neither URL nor hostname.
const errNoTarget errors.Error = "url or hostname required"

// matcher matches the requests against the engines.
type matcher struct {
	engine    *filterengine.Engine
	dnsEngine *filterengine.DNSEngine

	// cache maps request values to results.  It is nil if caching is
	// disabled.
	cache gcache.Cache
}

// newMatcher returns a new *matcher with an LRU result cache of cacheSize
// items.  If cacheSize is zero, results aren't cached.
func newMatcher(
	engine *filterengine.Engine,
	dnsEngine *filterengine.DNSEngine,
	cacheSize int,
) (m *matcher) {
	m = &matcher{
		engine:    engine,
		dnsEngine: dnsEngine,
	}

	if cacheSize > 0 {
		m.cache = gcache.New(cacheSize).LRU().Build()
	}

	return m
}

// processRequests reads JSON lines of requests from r and writes a JSON line
// with the result for each of them into w.  Malformed requests produce results
// with errors.  It stops when ctx is canceled.
func (m *matcher) processRequests(ctx context.Context, r io.Reader, w io.Writer) (err error) {
	sc := bufio.NewScanner(r)
	enc := json.NewEncoder(w)

	for sc.Scan() {
		if err = ctx.Err(); err != nil {
			return err
		}

		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}

		req := &request{}
		var res *result
		if err = json.Unmarshal([]byte(line), req); err != nil {
			res = &result{Request: req, Error: fmt.Errorf("parsing request: %w", err).Error()}
		} else {
			res = m.matchCached(req)
		}

		err = enc.Encode(res)
		if err != nil {
			return fmt.Errorf("writing result: %w", err)
		}
	}

	return sc.Err()
}

// matchCached returns the cached result for req, if there is one, and matches
// and caches it otherwise.
func (m *matcher) matchCached(req *request) (res *result) {
	if m.cache == nil {
		return m.match(req)
	}

	key := *req
	if v, err := m.cache.Get(key); err == nil {
		cached := *v.(*result)
		cached.Request = req

		return &cached
	}

	res = m.match(req)

	// Set never fails for caches without loaders.
	_ = m.cache.Set(key, res)

	return res
}

// match returns the result for a single request.
func (m *matcher) match(req *request) (res *result) {
	res = &result{Request: req}

	var err error
	switch {
	case req.URL != "":
		err = m.matchURL(req, res)
	case req.Hostname != "":
		err = m.matchHostname(req, res)
	default:
		err = errNoTarget
	}

	if err != nil {
		res.Error = err.Error()
	}

	return res
}

// matchURL fills res with the result of matching a web request.
func (m *matcher) matchURL(req *request, res *result) (err error) {
	typ := rules.TypeOther
	if req.Type != "" {
		var ok bool
		typ, ok = rules.ParseRequestType(req.Type)
		if !ok {
			return fmt.Errorf("type: %w: %q", errors.ErrBadEnumValue, req.Type)
		}
	}

	mr := m.engine.MatchRequest(rules.NewRequest(req.URL, req.SourceURL, typ))
	if basic := mr.GetBasicResult(); basic != nil {
		res.Rule = basic.Text()
		res.Blocked = !basic.Allowlist
	}

	return nil
}

// matchHostname fills res with the result of matching a DNS request.
func (m *matcher) matchHostname(req *request, res *result) (err error) {
	var qtype uint16
	if req.DNSType != "" {
		var ok bool
		qtype, ok = dns.StringToType[strings.ToUpper(req.DNSType)]
		if !ok {
			return fmt.Errorf("dnstype: %w: %q", errors.ErrBadEnumValue, req.DNSType)
		}
	}

	dnsRes, ok := m.dnsEngine.MatchRequest(&filterengine.DNSRequest{
		Hostname: req.Hostname,
		DNSType:  qtype,
	})
	if !ok {
		return nil
	}

	if nr := dnsRes.NetworkRule; nr != nil {
		res.Rule = nr.Text()
		res.Blocked = !nr.Allowlist

		return nil
	}

	hostRules := dnsRes.HostRulesByType(qtype)
	if qtype == 0 {
		hostRules = slices.Concat(dnsRes.HostRulesV4, dnsRes.HostRulesV6)
	}

	for _, hr := range hostRules {
		res.HostRules = append(res.HostRules, hr.Text())
		if hr.IP.IsUnspecified() {
			res.Blocked = true
		}
	}

	return nil
}
