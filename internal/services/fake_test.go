package services

import (
	"context"

	"eino_voice_shop/pkg"
)

// fakeCommerce is a CommerceClient whose behavior is set per test
type fakeCommerce struct {
	SearchProductsFunc func(ctx context.Context, query string) ([]RawProduct, error)
	AddToCartFunc      func(ctx context.Context, req AddToCartRequest) (pkg.CartOutcome, error)
	ClearCartFunc      func(ctx context.Context, token string, cc ClearCartContext) (bool, error)

	searches []string
	adds     []AddToCartRequest
}

func (f *fakeCommerce) SearchProducts(ctx context.Context, query string) ([]RawProduct, error) {
	f.searches = append(f.searches, query)
	if f.SearchProductsFunc != nil {
		return f.SearchProductsFunc(ctx, query)
	}
	return nil, nil
}

func (f *fakeCommerce) AddToCart(ctx context.Context, req AddToCartRequest) (pkg.CartOutcome, error) {
	f.adds = append(f.adds, req)
	if f.AddToCartFunc != nil {
		return f.AddToCartFunc(ctx, req)
	}
	return pkg.CartOutcome{OK: true}, nil
}

func (f *fakeCommerce) ClearCart(ctx context.Context, token string, cc ClearCartContext) (bool, error) {
	if f.ClearCartFunc != nil {
		return f.ClearCartFunc(ctx, token, cc)
	}
	return true, nil
}
