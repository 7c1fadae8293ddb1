package scraper

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// Clean normalises scraped rows: it collapses whitespace, formats US phone
// numbers, normalises website URLs, drops nameless rows, merges duplicates by
// name and location and sorts by state, city and name. Clean(Clean(x)) equals Clean(x).
func Clean(rows []School) []School {
	index := make(map[string]int, len(rows))
	out := make([]School, 0, len(rows))
	for _, r := range rows {
		r = cleanRow(r)
		if r.Name == "" {
			continue
		}
		key := dedupeKey(r)
		if i, ok := index[key]; ok {
			out[i] = merge(out[i], r)
			continue
		}
		index[key] = len(out)
		out = append(out, r)
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if x, y := strings.ToLower(a.State), strings.ToLower(b.State); x != y {
			return x < y
		}
		if x, y := strings.ToLower(a.City), strings.ToLower(b.City); x != y {
			return x < y
		}
		return strings.ToLower(a.Name) < strings.ToLower(b.Name)
	})
	return out
}

func cleanRow(r School) School {
	r.Name = collapse(r.Name)
	r.Address = collapse(r.Address)
	r.City = collapse(r.City)
	r.State = strings.ToUpper(collapse(r.State))
	r.Phone = FormatPhone(r.Phone)
	r.DetailURL = collapse(r.DetailURL)
	r.Website = NormalizeURL(r.Website)
	r.WebsiteChecked = collapse(r.WebsiteChecked)
	if r.Website != "" {
		r.WebsiteChecked = WebsiteFound
	}
	return r
}

func dedupeKey(r School) string {
	return strings.ToLower(r.Name) + "\x00" + strings.ToLower(r.City) + "\x00" + strings.ToLower(r.State)
}

func merge(dst, src School) School {
	fill := func(d *string, s string) {
		if *d == "" {
			*d = s
		}
	}
	if dst.Page == 0 {
		dst.Page = src.Page
	}
	fill(&dst.Address, src.Address)
	fill(&dst.Phone, src.Phone)
	fill(&dst.DetailURL, src.DetailURL)
	fill(&dst.Website, src.Website)
	if dst.Website != "" {
		dst.WebsiteChecked = WebsiteFound
	} else {
		fill(&dst.WebsiteChecked, src.WebsiteChecked)
	}
	return dst
}

// FormatPhone renders 10-digit US numbers (optionally with a leading 1) as
// (AAA) BBB-CCCC and returns anything else trimmed.
func FormatPhone(raw string) string {
	raw = collapse(raw)
	var digits []byte
	for i := 0; i < len(raw); i++ {
		if raw[i] >= '0' && raw[i] <= '9' {
			digits = append(digits, raw[i])
		}
	}
	if len(digits) == 11 && digits[0] == '1' {
		digits = digits[1:]
	}
	if len(digits) != 10 {
		return raw
	}
	return fmt.Sprintf("(%s) %s-%s", digits[:3], digits[3:6], digits[6:])
}

// NormalizeURL lower-cases the scheme and host, adds https:// when the scheme
// is missing and returns "" for values that cannot be a website.
func NormalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.ContainsAny(raw, " \t\n") {
		return ""
	}
	if !strings.Contains(raw, "://") {
		if i := strings.Index(raw, ":"); i > 0 && !strings.Contains(raw[:i], ".") {
			return ""
		}
		raw = "https://" + strings.TrimPrefix(raw, "//")
	}
	u, err := url.Parse(raw)
	if err != nil || u.User != nil {
		return ""
	}
	u.Scheme = strings.ToLower(u.Scheme)
	if u.Scheme != "http" && u.Scheme != "https" {
		return ""
	}
	host := strings.ToLower(u.Hostname())
	if host == "" || !strings.Contains(host, ".") || strings.HasPrefix(host, ".") || strings.HasSuffix(host, ".") {
		return ""
	}
	if port := u.Port(); port != "" {
		u.Host = host + ":" + port
	} else {
		u.Host = host
	}
	return u.String()
}
