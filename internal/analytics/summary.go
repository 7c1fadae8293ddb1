package analytics

import (
	"net"
	"net/url"
	"sort"
	"strings"

	"github.com/JakeFAU/flightdeck/internal/site"
)

// DirectReferrer labels views with no referrer or a self-referral.
const DirectReferrer = "direct"

const defaultTopN = 10

// PathCount is a page path and its view count.
type PathCount struct {
	Path  string `json:"path"`
	Count int    `json:"count"`
}

// ReferrerCount is a referring host and its view count.
type ReferrerCount struct {
	Host  string `json:"host"`
	Count int    `json:"count"`
}

// Summary aggregates a set of views.
type Summary struct {
	TotalViews     int             `json:"total_views"`
	UniqueSessions int             `json:"unique_sessions"`
	TopPaths       []PathCount     `json:"top_paths"`
	TopReferrers   []ReferrerCount `json:"top_referrers"`
}

type summaryOptions struct {
	siteHost string
	topN     int
}

// SummaryOption customises Summarize.
type SummaryOption func(*summaryOptions)

// WithSiteHost treats referrers from host as direct traffic.
func WithSiteHost(host string) SummaryOption {
	return func(o *summaryOptions) { o.siteHost = normaliseHost(host) }
}

// WithTopN limits the top path and referrer lists. n <= 0 keeps the default of 10.
func WithTopN(n int) SummaryOption {
	return func(o *summaryOptions) {
		if n > 0 {
			o.topN = n
		}
	}
}

// Summarize counts total views, distinct sessions, top paths and top referrer hosts.
func Summarize(views []site.PageView, opts ...SummaryOption) Summary {
	o := summaryOptions{topN: defaultTopN}
	for _, opt := range opts {
		opt(&o)
	}

	sessions := make(map[string]struct{})
	paths := make(map[string]int)
	referrers := make(map[string]int)
	for _, v := range views {
		if v.SessionID != "" {
			sessions[v.SessionID] = struct{}{}
		}
		paths[v.Path]++
		referrers[referrerHost(v.Referrer, o.siteHost)]++
	}

	s := Summary{
		TotalViews:     len(views),
		UniqueSessions: len(sessions),
		TopPaths:       make([]PathCount, 0, len(paths)),
		TopReferrers:   make([]ReferrerCount, 0, len(referrers)),
	}
	for p, c := range paths {
		s.TopPaths = append(s.TopPaths, PathCount{Path: p, Count: c})
	}
	for h, c := range referrers {
		s.TopReferrers = append(s.TopReferrers, ReferrerCount{Host: h, Count: c})
	}
	sort.Slice(s.TopPaths, func(i, j int) bool {
		if s.TopPaths[i].Count != s.TopPaths[j].Count {
			return s.TopPaths[i].Count > s.TopPaths[j].Count
		}
		return s.TopPaths[i].Path < s.TopPaths[j].Path
	})
	sort.Slice(s.TopReferrers, func(i, j int) bool {
		if s.TopReferrers[i].Count != s.TopReferrers[j].Count {
			return s.TopReferrers[i].Count > s.TopReferrers[j].Count
		}
		return s.TopReferrers[i].Host < s.TopReferrers[j].Host
	})
	if len(s.TopPaths) > o.topN {
		s.TopPaths = s.TopPaths[:o.topN]
	}
	if len(s.TopReferrers) > o.topN {
		s.TopReferrers = s.TopReferrers[:o.topN]
	}
	return s
}

func referrerHost(referrer, siteHost string) string {
	referrer = strings.TrimSpace(referrer)
	if referrer == "" {
		return DirectReferrer
	}
	u, err := url.Parse(referrer)
	if err != nil || u.Hostname() == "" {
		return DirectReferrer
	}
	host := normaliseHost(u.Hostname())
	if siteHost != "" && host == siteHost {
		return DirectReferrer
	}
	return host
}

func normaliseHost(host string) string {
	host = strings.ToLower(strings.TrimSpace(host))
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.TrimSuffix(strings.TrimPrefix(host, "["), "]")
	return strings.TrimPrefix(host, "www.")
}
