package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"letterbox/internal/features/newsletters/models"

	"gopkg.in/yaml.v3"
)

// SeedFile is the YAML layout of a subscription list:
//
//	subscriptions:
//	  - feed_url: https://example.com/feeds/abc.xml
//	    title: Weekly Letter
type SeedFile struct {
	Subscriptions []models.SubscriptionCreate `yaml:"subscriptions"`
}

// ImportResult counts the outcome of an import
type ImportResult struct {
	Created  []string
	Existing int
	Invalid  []string
}

// ReadSeed decodes a subscription list
func ReadSeed(r io.Reader) (*SeedFile, error) {
	var seed SeedFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&seed); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to decode subscription list: %w", err)
	}
	return &seed, nil
}

// LoadSeedFile reads a subscription list from disk
func LoadSeedFile(path string) (*SeedFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open subscription list: %w", err)
	}
	defer f.Close()
	return ReadSeed(f)
}

// ImportSubscriptions creates every listed subscription that does not exist
// yet. Invalid URLs are reported and skipped.
func (s *SubscriptionService) ImportSubscriptions(ctx context.Context, seed *SeedFile) (*ImportResult, error) {
	result := &ImportResult{}
	for i := range seed.Subscriptions {
		create := &seed.Subscriptions[i]
		if err := ValidateFeedURL(create.FeedURL); err != nil {
			s.logger.Warn("Skipping invalid subscription", "feed_url", create.FeedURL, "error", err)
			result.Invalid = append(result.Invalid, create.FeedURL)
			continue
		}

		sub, err := s.CreateSubscription(ctx, create)
		switch {
		case errors.Is(err, ErrConflict):
			result.Existing++
		case err != nil:
			return result, err
		default:
			result.Created = append(result.Created, sub.ID)
		}
	}

	s.logger.Info("Imported subscriptions",
		"created", len(result.Created),
		"existing", result.Existing,
		"invalid", len(result.Invalid),
	)
	return result, nil
}
