// Package pricefeed provides token price sources for settlement conversion.
package pricefeed

import (
	"context"

	"github.com/gridmarket/backend/internal/domain/grid"
	"github.com/gridmarket/backend/internal/domain/pricing"
	"github.com/gridmarket/backend/internal/infrastructure/config"
)

// StaticFeed serves a fixed price reading from configuration. The clamp
// bounds travel with the reading so conversion stays consistent even when a
// live feed replaces this one later.
type StaticFeed struct {
	reading pricing.PriceReading
}

// NewStaticFeed creates a feed from the configured price bounds
func NewStaticFeed(cfg config.FeedConfig) *StaticFeed {
	return &StaticFeed{reading: pricing.PriceReading{
		Average: cfg.Average,
		Min:     cfg.Min,
		Max:     cfg.Max,
	}}
}

// Current returns the configured price reading.
func (f *StaticFeed) Current(ctx context.Context) (pricing.PriceReading, error) {
	return f.reading, nil
}

var _ grid.PriceFeed = (*StaticFeed)(nil)
