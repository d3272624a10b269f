// Package assets manages the species artwork catalog over the blob store.
// Each species carries one image per growth stage, keyed by stage and a slug
// of the common name.
package assets

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"orchidcore/internal/blob"
	"orchidcore/pkg/domain"
)

// Catalog publishes and resolves species artwork.
type Catalog struct {
	store blob.Store
}

// NewCatalog wraps a blob store.
func NewCatalog(store blob.Store) *Catalog {
	return &Catalog{store: store}
}

// Slug lowercases the species common name and joins words with hyphens.
func Slug(species domain.Species) string {
	s := strings.ToLower(species.CommonName)
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return !('a' <= r && r <= 'z') && !('0' <= r && r <= '9')
	})
	return strings.Join(fields, "-")
}

// Key returns the blob key for one species image at one stage.
func Key(species domain.Species, stage domain.GrowthStage) string {
	return fmt.Sprintf("artwork/%s/%s.png", stage, Slug(species))
}

// Publish stores the artwork image for a species at a stage. Keys are
// create-only; republishing an existing image fails.
func (c *Catalog) Publish(ctx context.Context, species domain.Species, stage domain.GrowthStage, image io.Reader) (blob.Info, error) {
	if species.IsZero() {
		return blob.Info{}, fmt.Errorf("publish artwork: species required")
	}
	return c.store.Put(ctx, Key(species, stage), image, blob.PutOptions{
		ContentType: "image/png",
		Metadata: map[string]string{
			"species": species.CommonName,
			"latin":   species.LatinName,
			"stage":   string(stage),
		},
	})
}

// Resolve returns a URL for the artwork, presigned when the driver supports
// it, falling back to the blob key otherwise. Missing artwork is an error.
func (c *Catalog) Resolve(ctx context.Context, species domain.Species, stage domain.GrowthStage) (string, error) {
	key := Key(species, stage)
	if _, err := c.store.Head(ctx, key); err != nil {
		return "", fmt.Errorf("resolve artwork %s: %w", key, err)
	}
	url, err := c.store.PresignURL(ctx, key, blob.SignedURLOptions{Method: "GET"})
	if err != nil {
		if errors.Is(err, blob.ErrUnsupported) {
			return key, nil
		}
		return "", err
	}
	return url, nil
}

// List returns the stored artwork for one stage, key ascending.
func (c *Catalog) List(ctx context.Context, stage domain.GrowthStage) ([]blob.Info, error) {
	return c.store.List(ctx, fmt.Sprintf("artwork/%s/", stage))
}
