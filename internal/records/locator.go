// Package records attaches resolved coordinates to case and vaccination
// records.
package records

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/ccz-paraguacu/zoonoses/internal/model"
	"github.com/ccz-paraguacu/zoonoses/pkg/geocode"
)

// Resolver is the part of geocode.Resolver the locator needs.
type Resolver interface {
	Resolve(ctx context.Context, addr string) *geocode.Result
	ResolveWithArea(ctx context.Context, q geocode.Query) *geocode.Result
	Manual(lat, lng float64, addr string) *geocode.Result
}

var _ Resolver = (*geocode.Resolver)(nil)

// Locator resolves record locations.
type Locator struct {
	resolver Resolver
}

// NewLocator creates a Locator.
func NewLocator(r Resolver) *Locator {
	return &Locator{resolver: r}
}

// Locate resolves loc in place. Area and block, when both present, route
// through the synthesizing entry point so the record always lands on the
// map. A failed resolution leaves loc unchanged and is returned as-is.
func (l *Locator) Locate(ctx context.Context, loc *model.Location) *geocode.Result {
	var res *geocode.Result
	if loc.HasAreaBlock() {
		res = l.resolver.ResolveWithArea(ctx, loc.Query())
	} else {
		res = l.resolver.Resolve(ctx, loc.Address)
	}
	if !loc.Apply(*res) {
		zap.L().Info("records: location not resolved",
			zap.String("address", loc.Address),
			zap.String("reason", res.ErrorMessage),
		)
	}
	return res
}

// Pin stores operator-supplied coordinates on loc.
func (l *Locator) Pin(loc *model.Location, lat, lng float64) *geocode.Result {
	addr := loc.Address
	if strings.TrimSpace(addr) == "" && loc.HasAreaBlock() {
		addr = "Area " + loc.Area + ", Block " + loc.Block
	}
	res := l.resolver.Manual(lat, lng, addr)
	loc.Apply(*res)
	return res
}

// Prepare resolves loc for a record being saved. Pinned locations and
// locations that already carry coordinates at or above minConfidence are
// left alone.
func (l *Locator) Prepare(ctx context.Context, loc *model.Location, minConfidence float64) {
	if !loc.NeedsGeocode(minConfidence) {
		return
	}
	l.Locate(ctx, loc)
}
