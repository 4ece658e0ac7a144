package services

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"eino_voice_shop/pkg"
	"eino_voice_shop/src/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCommerceConfig() model.CommerceConfig {
	return model.CommerceConfig{
		WarehouseID:   "1",
		OutletID:      "11512",
		DeviceID:      "device-1",
		CustomerToken: "default-token",
		DefaultLat:    28.6016406,
		DefaultLong:   77.3896809,
		SearchLimit:   5,
	}
}

func product(id int, name string) RawProduct {
	return RawProduct(fmt.Sprintf(`{"id":%d,"name":%q,"product_images":[{"base_price":"2.5","path":"/img/%d.png"}]}`, id, name, id))
}

func TestSearchReturnsAtMostFiveMatches(t *testing.T) {
	client := &fakeCommerce{
		SearchProductsFunc: func(ctx context.Context, query string) ([]RawProduct, error) {
			var out []RawProduct
			for i := 1; i <= 8; i++ {
				out = append(out, product(i, fmt.Sprintf("Rice %d", i)))
			}
			return out, nil
		},
	}
	exec := NewExecutor(client, testCommerceConfig())

	out := exec.Execute(context.Background(), pkg.Intent{Kind: pkg.IntentSearch, Query: "rice"}, pkg.Memory{})

	require.Len(t, out.Products, 5)
	assert.Equal(t, "1", out.Products[0].ID)
	assert.Contains(t, out.Summary, "I found these products: Rice 1 (ID: 1, Price: $2.50, Image: /img/1.png)")
}

func TestSearchNotFoundAndFailure(t *testing.T) {
	empty := NewExecutor(&fakeCommerce{}, testCommerceConfig())
	out := empty.Execute(context.Background(), pkg.Intent{Kind: pkg.IntentSearch, Query: "unicorn"}, pkg.Memory{})
	assert.Equal(t, `I couldn't find any products matching "unicorn". `, out.Summary)
	assert.NotNil(t, out.Products)
	assert.Empty(t, out.Products)

	failing := NewExecutor(&fakeCommerce{
		SearchProductsFunc: func(ctx context.Context, query string) ([]RawProduct, error) {
			return nil, errors.New("connection refused")
		},
	}, testCommerceConfig())
	out = failing.Execute(context.Background(), pkg.Intent{Kind: pkg.IntentSearch, Query: "rice"}, pkg.Memory{})
	assert.Equal(t, "I had trouble searching for products. ", out.Summary)
	assert.Empty(t, out.Products)
}

func TestAddToCartResolvesPhrasesIndependently(t *testing.T) {
	client := &fakeCommerce{
		SearchProductsFunc: func(ctx context.Context, query string) ([]RawProduct, error) {
			switch query {
			case "wireless mouse":
				return []RawProduct{product(1, "Mouse Pad"), product(2, "Wireless Mouse M185")}, nil
			case "blue keyboard":
				return []RawProduct{product(3, "Blue Keyboard")}, nil
			}
			return nil, nil
		},
		AddToCartFunc: func(ctx context.Context, req AddToCartRequest) (pkg.CartOutcome, error) {
			if req.ProductID == "3" {
				return pkg.CartOutcome{}, errors.New("out of stock")
			}
			return pkg.CartOutcome{OK: true}, nil
		},
	}
	exec := NewExecutor(client, testCommerceConfig())

	intent := pkg.Intent{Kind: pkg.IntentAddToCart, Phrases: []string{"wireless mouse", "blue keyboard"}}
	out := exec.Execute(context.Background(), intent, pkg.Memory{CustomerToken: "tok-1"})

	assert.Equal(t, []string{"wireless mouse", "blue keyboard"}, client.searches)
	require.Len(t, client.adds, 2)
	assert.Equal(t, "2", client.adds[0].ProductID, "name containing the phrase wins over rank")
	assert.Equal(t, "tok-1", client.adds[0].Token)
	assert.Equal(t, 1, client.adds[0].Quantity)
	assert.InDelta(t, 28.6016406, client.adds[0].Lat, 1e-9)

	require.Len(t, out.Added, 1)
	assert.Equal(t, "Wireless Mouse M185", out.Added[0].Name)
	require.Len(t, out.Failures, 1)
	assert.Equal(t, "blue keyboard", out.Failures[0].Phrase)
	assert.Len(t, out.Products, 3)
	assert.True(t, out.Partial())

	assert.Contains(t, out.Summary, "Sorry for the inconvenience, Blue Keyboard is not available. ")
	assert.Contains(t, out.Summary, "Successfully added: Wireless Mouse M185. ")
}

func TestAddToCartSelectsMatchBeyondDisplayLimit(t *testing.T) {
	client := &fakeCommerce{
		SearchProductsFunc: func(ctx context.Context, query string) ([]RawProduct, error) {
			var out []RawProduct
			for i := 1; i <= 5; i++ {
				out = append(out, product(i, fmt.Sprintf("Generic item %d", i)))
			}
			return append(out, product(6, "Wireless Mouse Pro")), nil
		},
	}
	exec := NewExecutor(client, testCommerceConfig())

	out := exec.Execute(context.Background(),
		pkg.Intent{Kind: pkg.IntentAddToCart, Phrases: []string{"wireless mouse"}},
		pkg.Memory{CustomerToken: "tok-1"})

	require.Len(t, client.adds, 1)
	assert.Equal(t, "6", client.adds[0].ProductID)
	require.Len(t, out.Added, 1)
	assert.Equal(t, "Wireless Mouse Pro", out.Added[0].Name)
	assert.Len(t, out.Products, 5)
}

func TestAddToCartNotFoundAndRejectedResult(t *testing.T) {
	client := &fakeCommerce{
		SearchProductsFunc: func(ctx context.Context, query string) ([]RawProduct, error) {
			if query == "tea" {
				return []RawProduct{product(7, "Green Tea")}, nil
			}
			return nil, nil
		},
		AddToCartFunc: func(ctx context.Context, req AddToCartRequest) (pkg.CartOutcome, error) {
			return pkg.CartOutcome{OK: false, Message: "unavailable"}, nil
		},
	}
	exec := NewExecutor(client, testCommerceConfig())

	loc := &pkg.Location{Lat: 1.5, Long: 2.5}
	out := exec.Execute(context.Background(),
		pkg.Intent{Kind: pkg.IntentAddToCart, Phrases: []string{"tea", "dragon fruit"}},
		pkg.Memory{Location: loc})

	assert.Equal(t, []string{"dragon fruit"}, out.NotFound)
	assert.Empty(t, out.Added)
	assert.Len(t, out.CartResults, 1)
	assert.Equal(t, "default-token", client.adds[0].Token)
	assert.Equal(t, 1.5, client.adds[0].Lat)
	assert.Contains(t, out.Summary, "Couldn't find: dragon fruit. ")
	assert.NotContains(t, out.Summary, "Successfully added")
}

func TestAddToCartWithoutPhrases(t *testing.T) {
	client := &fakeCommerce{}
	exec := NewExecutor(client, testCommerceConfig())

	out := exec.Execute(context.Background(), pkg.Intent{Kind: pkg.IntentAddToCart, Raw: "the"}, pkg.Memory{})

	assert.Contains(t, out.Summary, `I couldn't parse any products from "the".`)
	assert.Empty(t, client.searches)
}

func TestAddToCartFirstResultPolicy(t *testing.T) {
	client := &fakeCommerce{
		SearchProductsFunc: func(ctx context.Context, query string) ([]RawProduct, error) {
			return []RawProduct{product(1, "Mouse Pad"), product(2, "Wireless Mouse")}, nil
		},
	}
	exec := NewExecutor(client, testCommerceConfig(), WithMatchPolicy(FirstResult))

	exec.Execute(context.Background(), pkg.Intent{Kind: pkg.IntentAddToCart, Phrases: []string{"wireless mouse"}}, pkg.Memory{})

	require.Len(t, client.adds, 1)
	assert.Equal(t, "1", client.adds[0].ProductID)
}

func TestClearCart(t *testing.T) {
	start := pkg.Memory{Lists: pkg.Lists{Shopping: []string{"milk", "eggs"}}, CustomerToken: "live-token"}

	t.Run("success empties the list", func(t *testing.T) {
		var gotToken string
		var gotCtx ClearCartContext
		client := &fakeCommerce{
			ClearCartFunc: func(ctx context.Context, token string, cc ClearCartContext) (bool, error) {
				gotToken, gotCtx = token, cc
				return true, nil
			},
		}
		out := NewExecutor(client, testCommerceConfig()).Execute(context.Background(), pkg.Intent{Kind: pkg.IntentClearCart}, start)

		assert.True(t, out.CartCleared)
		assert.Empty(t, out.Memory.Lists.Shopping)
		assert.Equal(t, []string{"milk", "eggs"}, start.Lists.Shopping)
		assert.Equal(t, "Your cart has been successfully cleared! ", out.Summary)
		assert.Equal(t, "live-token", gotToken)
		assert.Equal(t, "device-1", gotCtx.DeviceID)
		assert.Equal(t, 1, gotCtx.OrderDeliveryType)
	})

	t.Run("rejected leaves memory", func(t *testing.T) {
		client := &fakeCommerce{
			ClearCartFunc: func(ctx context.Context, token string, cc ClearCartContext) (bool, error) {
				return false, nil
			},
		}
		out := NewExecutor(client, testCommerceConfig()).Execute(context.Background(), pkg.Intent{Kind: pkg.IntentClearCart}, start)

		assert.False(t, out.CartCleared)
		assert.True(t, out.ClearAttempted)
		assert.Equal(t, []string{"milk", "eggs"}, out.Memory.Lists.Shopping)
		assert.Equal(t, "Sorry, I couldn't clear your cart. Please try again. ", out.Summary)
	})

	t.Run("error leaves memory", func(t *testing.T) {
		client := &fakeCommerce{
			ClearCartFunc: func(ctx context.Context, token string, cc ClearCartContext) (bool, error) {
				return false, errors.New("network down")
			},
		}
		out := NewExecutor(client, testCommerceConfig()).Execute(context.Background(), pkg.Intent{Kind: pkg.IntentClearCart}, start)

		assert.Equal(t, []string{"milk", "eggs"}, out.Memory.Lists.Shopping)
		assert.Equal(t, "I had trouble clearing your cart. Please try again. ", out.Summary)
	})
}

func TestNoneIntentDoesNothing(t *testing.T) {
	client := &fakeCommerce{}
	out := NewExecutor(client, testCommerceConfig()).Execute(context.Background(), pkg.Intent{Kind: pkg.IntentNone}, pkg.Memory{})

	assert.Empty(t, out.Summary)
	assert.Nil(t, out.Products)
	assert.Empty(t, client.searches)
}

func TestPolicyByName(t *testing.T) {
	p, err := PolicyByName("first")
	require.NoError(t, err)
	assert.Equal(t, "b", p.Select("x", []pkg.ProductMatch{{Name: "b"}, {Name: "x"}}).Name)

	p, err = PolicyByName("")
	require.NoError(t, err)
	assert.Equal(t, "X ray", p.Select("x", []pkg.ProductMatch{{Name: "b"}, {Name: "X ray"}}).Name)

	_, err = PolicyByName("cheapest")
	assert.Error(t, err)
}
