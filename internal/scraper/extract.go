package scraper

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Selectors lists CSS selectors tried in order for each field. The first
// selector that matches something wins.
type Selectors struct {
	Card       []string
	Name       []string
	Address    []string
	Location   []string
	Phone      []string
	DetailLink []string
	Pagination []string
	Website    []string
}

// DefaultSelectors covers the directory layouts seen so far.
func DefaultSelectors() Selectors {
	return Selectors{
		Card:       []string{".school-card", ".school-listing", ".listing-item", ".result", "article.school", "li.school"},
		Name:       []string{".school-name", "[itemprop=name]", "h2 a", "h3 a", "h2", "h3", ".name"},
		Address:    []string{".street-address", "[itemprop=streetAddress]", ".address"},
		Location:   []string{".location", ".city-state", "[itemprop=addressLocality]"},
		Phone:      []string{".phone", "[itemprop=telephone]", "a[href^='tel:']"},
		DetailLink: []string{"a.details", "a.more-info", ".school-name a", "h2 a", "h3 a", "a[href]"},
		Pagination: []string{".pagination a", "nav.pagination a", "ul.pager a", "a.page-link", "a.page-numbers"},
		Website: []string{
			"a.website", "a.school-website", "[itemprop=url]", ".website a",
			"a[rel~='external']", "a[target='_blank'][href^='http']", "a[href^='http']",
		},
	}
}

var (
	spaceRun    = regexp.MustCompile(`\s+`)
	cityStateRe = regexp.MustCompile(`^(.*?),\s*([A-Za-z]{2})(?:\s+\d{5}(?:-\d{4})?)?\s*$`)
)

// ExtractSchools parses the schools on one listing page. Relative detail links
// are resolved against pageURL.
func ExtractSchools(html, pageURL string, sel Selectors) ([]School, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse listing: %w", err)
	}
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("parse page url: %w", err)
	}

	cards := firstMatch(doc.Selection, sel.Card)
	if cards == nil {
		return nil, nil
	}
	var out []School
	cards.Each(func(_ int, card *goquery.Selection) {
		s := School{
			Name:    text(firstMatch(card, sel.Name)),
			Address: text(firstMatch(card, sel.Address)),
			Phone:   phoneText(firstMatch(card, sel.Phone)),
		}
		if s.Name == "" {
			return
		}
		s.City, s.State = splitLocation(text(firstMatch(card, sel.Location)))
		if s.City == "" && s.State == "" {
			s.Address, s.City, s.State = splitAddress(s.Address)
		}
		if link := firstMatch(card, sel.DetailLink); link != nil {
			if href, ok := link.Attr("href"); ok {
				s.DetailURL = resolve(base, href)
			}
		}
		out = append(out, s)
	})
	return out, nil
}

// MaxPage returns the highest page number linked from the listing's pagination,
// or 0 when there is none. Numbers come from link text or the pageParam query value.
func MaxPage(html, pageParam string, sel Selectors) (int, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return 0, fmt.Errorf("parse listing: %w", err)
	}
	links := firstMatch(doc.Selection, sel.Pagination)
	if links == nil {
		return 0, nil
	}
	highest := 0
	links.Each(func(_ int, a *goquery.Selection) {
		if n, err := strconv.Atoi(strings.TrimSpace(a.Text())); err == nil && n > highest {
			highest = n
		}
		href, ok := a.Attr("href")
		if !ok || pageParam == "" {
			return
		}
		u, err := url.Parse(href)
		if err != nil {
			return
		}
		if n, err := strconv.Atoi(u.Query().Get(pageParam)); err == nil && n > highest {
			highest = n
		}
	})
	return highest, nil
}

// PageURL returns the listing URL for page n. Page 1 is the listing itself.
func PageURL(listing, pageParam string, n int) (string, error) {
	u, err := url.Parse(listing)
	if err != nil {
		return "", fmt.Errorf("parse listing url: %w", err)
	}
	if n <= 1 {
		return u.String(), nil
	}
	q := u.Query()
	q.Set(pageParam, strconv.Itoa(n))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func firstMatch(root *goquery.Selection, selectors []string) *goquery.Selection {
	for _, s := range selectors {
		if m := root.Find(s); m.Length() > 0 {
			return m
		}
	}
	return nil
}

func text(s *goquery.Selection) string {
	if s == nil {
		return ""
	}
	return collapse(s.First().Text())
}

func phoneText(s *goquery.Selection) string {
	if s == nil {
		return ""
	}
	if href, ok := s.First().Attr("href"); ok && strings.HasPrefix(href, "tel:") {
		return collapse(strings.TrimPrefix(href, "tel:"))
	}
	return text(s)
}

func collapse(s string) string {
	return strings.TrimSpace(spaceRun.ReplaceAllString(s, " "))
}

func splitLocation(loc string) (city, state string) {
	if loc == "" {
		return "", ""
	}
	if m := cityStateRe.FindStringSubmatch(loc); m != nil {
		return strings.TrimSpace(m[1]), strings.ToUpper(m[2])
	}
	return loc, ""
}

// splitAddress pulls "City, ST" off the end of a one-line address.
func splitAddress(addr string) (street, city, state string) {
	parts := strings.Split(addr, ",")
	if len(parts) < 3 {
		return addr, "", ""
	}
	tail := strings.TrimSpace(parts[len(parts)-2]) + ", " + strings.TrimSpace(parts[len(parts)-1])
	m := cityStateRe.FindStringSubmatch(tail)
	if m == nil {
		return addr, "", ""
	}
	street = strings.TrimSpace(strings.Join(parts[:len(parts)-2], ","))
	return street, strings.TrimSpace(m[1]), strings.ToUpper(m[2])
}

func resolve(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(strings.ToLower(href), "javascript:") {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	abs := base.ResolveReference(ref)
	if abs.Scheme != "http" && abs.Scheme != "https" {
		return ""
	}
	abs.Fragment = ""
	return abs.String()
}
