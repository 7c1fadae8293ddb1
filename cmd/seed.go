package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/JakeFAU/flightdeck/internal/app"
	"github.com/JakeFAU/flightdeck/internal/catalog"
	"github.com/JakeFAU/flightdeck/internal/clock/system"
	"github.com/JakeFAU/flightdeck/internal/docstore"
	"github.com/JakeFAU/flightdeck/internal/id/uuid"
	"github.com/JakeFAU/flightdeck/internal/site"
)

// seedFile is the YAML layout accepted by the seed command.
type seedFile struct {
	Aircraft     []site.Aircraft    `yaml:"aircraft"`
	Programs     []site.Program     `yaml:"programs"`
	Testimonials []site.Testimonial `yaml:"testimonials"`
}

type seedResult struct {
	Aircraft     int `json:"aircraft"`
	Programs     int `json:"programs"`
	Testimonials int `json:"testimonials"`
}

func newSeedCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Loads aircraft, programs and testimonials from a YAML file",
		Long: `Upserts catalog content from YAML. Aircraft and programs are matched by
slug, so running the same file twice updates rather than duplicates.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := resolveRuntime(cmd.Context())
			if err != nil {
				return err
			}
			f, err := os.Open(file)
			if err != nil {
				return fmt.Errorf("open seed file: %w", err)
			}
			defer func() { _ = f.Close() }()
			seed, err := decodeSeed(f)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			stores, err := app.OpenStores(ctx, rt.cfg, rt.logger)
			if err != nil {
				return err
			}
			defer stores.Close()
			svc, err := catalog.New(catalog.Config{
				Backend: stores.Docs,
				Clock:   system.New(),
				IDs:     uuid.New(),
				Logger:  rt.logger.Named("catalog"),
			})
			if err != nil {
				return err
			}
			res, err := applySeed(ctx, svc, seed)
			if err != nil {
				return err
			}
			rt.logger.Info("seed applied",
				zap.Int("aircraft", res.Aircraft),
				zap.Int("programs", res.Programs),
				zap.Int("testimonials", res.Testimonials),
			)
			return printJSON(cmd, res)
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "seed.yaml", "YAML seed file")
	return cmd
}

func decodeSeed(r io.Reader) (seedFile, error) {
	var seed seedFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&seed); err != nil && !errors.Is(err, io.EOF) {
		return seedFile{}, fmt.Errorf("decode seed: %w", err)
	}
	return seed, nil
}

func applySeed(ctx context.Context, svc *catalog.Service, seed seedFile) (seedResult, error) {
	var res seedResult
	for _, a := range seed.Aircraft {
		key := a.Slug
		if key == "" {
			key = a.Name
		}
		existing, err := svc.GetAircraftBySlug(ctx, site.Slugify(key))
		switch {
		case err == nil:
			a.Slug = existing.Slug
			if _, err := svc.UpdateAircraft(ctx, existing.ID, a); err != nil {
				return res, fmt.Errorf("aircraft %q: %w", a.Name, err)
			}
		case errors.Is(err, docstore.ErrNotFound):
			if _, err := svc.CreateAircraft(ctx, a); err != nil {
				return res, fmt.Errorf("aircraft %q: %w", a.Name, err)
			}
		default:
			return res, err
		}
		res.Aircraft++
	}
	for _, p := range seed.Programs {
		p.Slug = site.Slugify(p.Slug)
		if p.Slug == "" {
			p.Slug = site.Slugify(p.Title)
		}
		if p.ID == "" {
			existing, err := svc.GetProgramBySlug(ctx, p.Slug)
			if err != nil && !errors.Is(err, docstore.ErrNotFound) {
				return res, err
			}
			p.ID = existing.ID
		}
		if _, err := svc.SaveProgram(ctx, p); err != nil {
			return res, fmt.Errorf("program %q: %w", p.Title, err)
		}
		res.Programs++
	}
	for _, t := range seed.Testimonials {
		if _, err := svc.SaveTestimonial(ctx, t); err != nil {
			return res, fmt.Errorf("testimonial by %q: %w", t.Author, err)
		}
		res.Testimonials++
	}
	return res, nil
}
