package menu

import (
	"context"
	"log/slog"
	"strings"
)

// Resolution is a category resolved against the live configuration.
type Resolution struct {
	CategoryID    string
	DestinationID string
	Label         string
	MentionText   string

	// DestinationExists is false when the transport no longer has the
	// destination; the move is skipped in that case.
	DestinationExists bool
}

// Resolver turns a chosen category id into a destination and mention text.
type Resolver struct {
	config    ConfigSource
	directory Directory
	logger    *slog.Logger
}

// NewResolver creates a resolver. directory may be nil, in which case every
// destination is assumed to exist and no mentions are rendered.
func NewResolver(config ConfigSource, directory Directory, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		config:    config,
		directory: directory,
		logger:    logger.With("component", "resolver"),
	}
}

// Resolve looks categoryID up in the configuration as it is now, which may
// differ from the snapshot the menu was rendered with.
func (r *Resolver) Resolve(ctx context.Context, categoryID string) Resolution {
	live := r.config.Snapshot()
	res := Resolution{
		CategoryID:        categoryID,
		DestinationID:     categoryID,
		Label:             live.Label(categoryID),
		DestinationExists: true,
	}
	if r.directory == nil {
		return res
	}

	exists, err := r.directory.LookupDestination(ctx, categoryID)
	if err != nil {
		// Let the move itself report the failure.
		r.logger.Warn("destination lookup failed", "category", categoryID, "error", err)
	} else {
		res.DestinationExists = exists
	}

	cat, ok := live.Category(categoryID)
	if !ok {
		return res
	}
	mentions := make([]string, 0, len(cat.Mentions))
	for _, target := range cat.Mentions {
		text, err := r.directory.ResolveMention(ctx, target)
		if err != nil {
			r.logger.Debug("mention target skipped", "category", categoryID, "target", target.ID, "error", err)
			continue
		}
		if text == "" {
			continue
		}
		mentions = append(mentions, text)
	}
	res.MentionText = strings.Join(mentions, " ")
	return res
}
