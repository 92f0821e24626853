package records

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/ccz-paraguacu/zoonoses/pkg/geocode"
)

type mockResolver struct {
	mock.Mock
}

func (m *mockResolver) Resolve(ctx context.Context, addr string) *geocode.Result {
	return m.Called(ctx, addr).Get(0).(*geocode.Result)
}

func (m *mockResolver) ResolveWithArea(ctx context.Context, q geocode.Query) *geocode.Result {
	return m.Called(ctx, q).Get(0).(*geocode.Result)
}

func (m *mockResolver) Manual(lat, lng float64, addr string) *geocode.Result {
	return m.Called(lat, lng, addr).Get(0).(*geocode.Result)
}

func hit(provider string, conf float64) *geocode.Result {
	return &geocode.Result{
		Latitude:        -22.41,
		Longitude:       -50.57,
		ResolvedAddress: "Paraguaçu Paulista",
		Succeeded:       true,
		Provider:        provider,
		Confidence:      conf,
	}
}

func miss() *geocode.Result {
	return &geocode.Result{ErrorMessage: geocode.MsgNotFound}
}
