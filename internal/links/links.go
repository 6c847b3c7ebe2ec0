// Package links resolves the outbound destination for a region and applies
// administrative updates.
//
// Resolve is total: any region, including empty or never-configured codes,
// yields the DEFAULT URL when no specific mapping exists.  Update never
// creates a mapping; unknown regions report ErrNotFound and leave the table
// untouched.  URLs are validated with go-playground/validator before they
// reach storage.
package links

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/yanizio/geofunnel/internal/store"
)

var (
	// ErrNotFound means the region has no mapping to update.
	ErrNotFound = errors.New("region not found")
	// ErrInvalidURL means the new destination is not an absolute URL.
	ErrInvalidURL = errors.New("invalid destination url")
)

// Repository is the storage contract, satisfied by *store.Store.
type Repository interface {
	Destination(ctx context.Context, region string) (string, error)
	SetDestination(ctx context.Context, region, url string) error
}

// Service wraps a Repository.
type Service struct {
	repo     Repository
	validate *validator.Validate
}

// New returns a Service backed by repo.
func New(repo Repository) *Service {
	return &Service{repo: repo, validate: validator.New()}
}

// Resolve returns the effective URL for region.  An error means storage is
// unavailable, never that the region is unknown.
func (s *Service) Resolve(ctx context.Context, region string) (string, error) {
	region = normalize(region)
	if region == "" {
		region = store.DefaultRegion
	}
	url, err := s.repo.Destination(ctx, region)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", region, err)
	}
	if url == "" {
		return "", fmt.Errorf("resolve %s: %w", region, store.ErrNoDefault)
	}
	return url, nil
}

// Update replaces the URL of an existing region.
func (s *Service) Update(ctx context.Context, region, url string) error {
	region = normalize(region)
	url = strings.TrimSpace(url)
	if err := s.validate.Var(url, "required,url"); err != nil {
		return ErrInvalidURL
	}

	err := s.repo.SetDestination(ctx, region, url)
	if errors.Is(err, store.ErrRegionNotFound) {
		return ErrNotFound
	}
	return err
}

func normalize(region string) string {
	return strings.ToUpper(strings.TrimSpace(region))
}
