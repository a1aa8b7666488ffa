package mods

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/EditMySave/HyOS-sub001/internal/provider"
)

// Details is a provider mod with its downloadable files.
type Details struct {
	Mod         *provider.Mod      `json:"mod"`
	Versions    []provider.Version `json:"versions"`
	Description string             `json:"description,omitempty"`
}

// Details fetches a mod and its files from a provider. The long description
// is fetched only where the provider serves one, and its failure is logged.
func (m *Manager) Details(ctx context.Context, id provider.ID, modID string) (*Details, error) {
	p, err := m.adapter(id)
	if err != nil {
		return nil, err
	}

	out := &Details{}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		mod, err := p.ModDetails(gctx, modID)
		out.Mod = mod
		return err
	})
	g.Go(func() error {
		versions, err := p.ModVersions(gctx, modID)
		out.Versions = versions
		return err
	})
	if d, ok := p.(provider.Describer); ok {
		g.Go(func() error {
			desc, err := d.ModDescription(gctx, modID)
			if err != nil {
				slog.Warn("fetching mod description failed", "provider", id, "mod", modID, "error", err)
				return nil
			}
			out.Description = desc
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if out.Versions == nil {
		out.Versions = []provider.Version{}
	}
	return out, nil
}
