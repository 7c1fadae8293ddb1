package catalog

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"sort"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	goldmarkHTML "github.com/yuin/goldmark/renderer/html"

	"github.com/JakeFAU/flightdeck/internal/docstore"
	"github.com/JakeFAU/flightdeck/internal/site"
)

// Raw HTML in program bodies is escaped; WithUnsafe is not set.
var mdRenderer = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
	goldmark.WithRendererOptions(
		goldmarkHTML.WithHardWraps(),
	),
)

// RenderMarkdown converts a markdown program body to HTML safe for templates.
func RenderMarkdown(body string) (template.HTML, error) {
	var buf bytes.Buffer
	if err := mdRenderer.Convert([]byte(body), &buf); err != nil {
		return "", fmt.Errorf("render markdown: %w", err)
	}
	// #nosec G203 -- goldmark output with raw HTML disabled.
	return template.HTML(buf.String()), nil
}

// ListPrograms returns programs ordered by sort order then title.
func (s *Service) ListPrograms(ctx context.Context, featuredOnly bool) ([]site.Program, error) {
	all, err := s.programs.List(ctx)
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, p := range all {
		if featuredOnly && !p.Featured {
			continue
		}
		out = append(out, p)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].SortOrder != out[j].SortOrder {
			return out[i].SortOrder < out[j].SortOrder
		}
		return out[i].Title < out[j].Title
	})
	return out, nil
}

// GetProgramBySlug finds a program by its public slug.
func (s *Service) GetProgramBySlug(ctx context.Context, slug string) (site.Program, error) {
	all, err := s.programs.List(ctx)
	if err != nil {
		return site.Program{}, err
	}
	for _, p := range all {
		if p.Slug == slug {
			return p, nil
		}
	}
	return site.Program{}, docstore.ErrNotFound
}

// SaveProgram validates and upserts a program, assigning an ID and slug when missing.
func (s *Service) SaveProgram(ctx context.Context, p site.Program) (site.Program, error) {
	if err := p.Validate(); err != nil {
		return site.Program{}, err
	}
	if p.ID == "" {
		id, err := s.ids.NewID()
		if err != nil {
			return site.Program{}, fmt.Errorf("program id: %w", err)
		}
		p.ID = id
	}
	if p.Slug == "" {
		p.Slug = site.Slugify(p.Title)
	}
	if err := s.programs.Put(ctx, p.ID, p); err != nil {
		return site.Program{}, err
	}
	return p, nil
}

// ListTestimonials returns testimonials ordered by rating, best first.
func (s *Service) ListTestimonials(ctx context.Context, featuredOnly bool) ([]site.Testimonial, error) {
	all, err := s.testimonials.List(ctx)
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, t := range all {
		if featuredOnly && !t.Featured {
			continue
		}
		out = append(out, t)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Rating > out[j].Rating })
	return out, nil
}

// SaveTestimonial validates and upserts a testimonial, assigning an ID when missing.
func (s *Service) SaveTestimonial(ctx context.Context, t site.Testimonial) (site.Testimonial, error) {
	if err := t.Validate(); err != nil {
		return site.Testimonial{}, err
	}
	if t.ID == "" {
		id, err := s.ids.NewID()
		if err != nil {
			return site.Testimonial{}, fmt.Errorf("testimonial id: %w", err)
		}
		t.ID = id
	}
	if err := s.testimonials.Put(ctx, t.ID, t); err != nil {
		return site.Testimonial{}, err
	}
	return t, nil
}
