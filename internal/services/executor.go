package services

import (
	"context"
	"fmt"
	"strings"

	"eino_voice_shop/internal/metrics"
	"eino_voice_shop/pkg"
	"eino_voice_shop/src/logger"
	"eino_voice_shop/src/model"
)

const (
	msgCartCleared      = "Your cart has been successfully cleared! "
	msgCartNotCleared   = "Sorry, I couldn't clear your cart. Please try again. "
	msgCartClearTrouble = "I had trouble clearing your cart. Please try again. "
	msgSearchTrouble    = "I had trouble searching for products. "
)

// ItemFailure is one add-to-cart phrase that could not be completed
type ItemFailure struct {
	Phrase  string `json:"phrase"`
	Product string `json:"product,omitempty"`
	Reason  string `json:"reason"`
}

// Outcome aggregates what the executor did for one intent
type Outcome struct {
	Intent pkg.IntentKind
	// Summary is the human-readable prefix for the reply
	Summary string
	// Products holds search results, or the matches shown for add-to-cart.
	// nil when no catalog lookup happened.
	Products    []pkg.ProductMatch
	NotFound    []string
	Added       []pkg.CartResult
	CartResults []pkg.CartResult
	Failures    []ItemFailure
	CartCleared bool
	// ClearAttempted is true whenever the clear-cart branch ran
	ClearAttempted bool
	Memory         pkg.Memory
}

// Partial reports a mixed add-to-cart result: some phrases added, some failed
func (o Outcome) Partial() bool {
	return len(o.Added) > 0 && (len(o.Failures) > 0 || len(o.NotFound) > 0)
}

// Executor runs the commerce side effects for a classified intent
type Executor struct {
	client       CommerceClient
	policy       MatchPolicy
	limit        int
	clearContext ClearCartContext
	defaultToken string
	defaultLoc   pkg.Location
}

// ExecutorOption customizes an Executor
type ExecutorOption func(*Executor)

// WithMatchPolicy replaces the best-match policy
func WithMatchPolicy(p MatchPolicy) ExecutorOption {
	return func(e *Executor) { e.policy = p }
}

// WithClearCartContext replaces the fixed clear-cart context
func WithClearCartContext(cc ClearCartContext) ExecutorOption {
	return func(e *Executor) { e.clearContext = cc }
}

// NewExecutor creates an executor over a commerce client
func NewExecutor(client CommerceClient, cfg model.CommerceConfig, opts ...ExecutorOption) *Executor {
	limit := cfg.SearchLimit
	if limit <= 0 {
		limit = 5
	}
	e := &Executor{
		client:       client,
		policy:       ContainsThenFirst,
		limit:        limit,
		clearContext: DefaultClearCartContext(cfg),
		defaultToken: cfg.CustomerToken,
		defaultLoc:   pkg.Location{Lat: cfg.DefaultLat, Long: cfg.DefaultLong},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute performs the side effects for intent. It never returns an error:
// every collaborator failure becomes a sentence in the summary.
func (e *Executor) Execute(ctx context.Context, intent pkg.Intent, mem pkg.Memory) Outcome {
	out := Outcome{Intent: intent.Kind, Memory: mem}

	switch intent.Kind {
	case pkg.IntentClearCart:
		e.clearCart(ctx, &out)
	case pkg.IntentSearch:
		e.search(ctx, intent.Query, &out)
	case pkg.IntentAddToCart:
		e.addToCart(ctx, intent, &out)
	}

	return out
}

func (e *Executor) clearCart(ctx context.Context, out *Outcome) {
	out.ClearAttempted = true

	ok, err := e.client.ClearCart(ctx, e.token(out.Memory), e.clearContext)
	metrics.ObserveCommerce("clear_cart", err)

	switch {
	case err != nil:
		logger.Error().Err(err).Msg("Clear cart failed")
		out.Summary = msgCartClearTrouble
	case !ok:
		logger.Warn().Msg("Clear cart rejected by backend")
		out.Summary = msgCartNotCleared
	default:
		cleared := out.Memory.Clone()
		cleared.Lists.Shopping = []string{}
		out.Memory = cleared
		out.CartCleared = true
		out.Summary = msgCartCleared
	}
}

func (e *Executor) search(ctx context.Context, query string, out *Outcome) {
	raw, err := e.client.SearchProducts(ctx, query)
	metrics.ObserveCommerce("search", err)
	if err != nil {
		logger.Error().Err(err).Str("query", query).Msg("Product search failed")
		out.Products = []pkg.ProductMatch{}
		out.Summary = msgSearchTrouble
		return
	}

	out.Products = e.normalize(raw)
	if len(out.Products) == 0 {
		out.Summary = fmt.Sprintf("I couldn't find any products matching %q. ", query)
		return
	}

	lines := make([]string, len(out.Products))
	for i, p := range out.Products {
		lines[i] = describe(p)
	}
	out.Summary = "I found these products: " + strings.Join(lines, ", ") + ". "

	logger.Info().Str("query", query).Int("results", len(out.Products)).Msg("Product search completed")
}

// addToCart resolves each phrase in order. One phrase failing never stops
// the ones after it.
func (e *Executor) addToCart(ctx context.Context, intent pkg.Intent, out *Outcome) {
	if len(intent.Phrases) == 0 {
		out.Summary = fmt.Sprintf("I couldn't parse any products from %q. Please list items like \"Item\" or \"Item1, Item2\". ", intent.Raw)
		return
	}

	var summary strings.Builder
	out.Products = []pkg.ProductMatch{}
	token := e.token(out.Memory)
	loc := e.location(out.Memory)

	for _, phrase := range intent.Phrases {
		raw, err := e.client.SearchProducts(ctx, phrase)
		metrics.ObserveCommerce("search", err)
		if err != nil {
			logger.Error().Err(err).Str("phrase", phrase).Msg("Product lookup for cart failed")
			out.Failures = append(out.Failures, ItemFailure{Phrase: phrase, Reason: err.Error()})
			fmt.Fprintf(&summary, "I had trouble searching for %s. ", phrase)
			continue
		}

		// the policy sees every result; only the listed products are capped
		matches := normalizeAll(raw)
		if len(matches) == 0 {
			out.NotFound = append(out.NotFound, phrase)
			continue
		}
		out.Products = append(out.Products, e.display(matches)...)

		chosen := e.policy.Select(phrase, matches)
		result, err := e.client.AddToCart(ctx, AddToCartRequest{
			ProductID: chosen.ID,
			Quantity:  1,
			Token:     token,
			Lat:       loc.Lat,
			Long:      loc.Long,
		})
		metrics.ObserveCommerce("add_to_cart", err)
		if err != nil {
			logger.Error().Err(err).Str("product", chosen.Name).Msg("Add to cart failed")
			out.Failures = append(out.Failures, ItemFailure{Phrase: phrase, Product: chosen.Name, Reason: err.Error()})
			fmt.Fprintf(&summary, "Sorry for the inconvenience, %s is not available. ", chosen.Name)
			continue
		}

		cr := pkg.CartResult{Name: chosen.Name, ProductID: chosen.ID, Result: result}
		out.CartResults = append(out.CartResults, cr)
		if !result.OK {
			out.Failures = append(out.Failures, ItemFailure{Phrase: phrase, Product: chosen.Name, Reason: result.Message})
			fmt.Fprintf(&summary, "Sorry for the inconvenience, %s is not available. ", chosen.Name)
			continue
		}
		out.Added = append(out.Added, cr)
	}

	if len(out.Products) > 0 {
		lines := make([]string, len(out.Products))
		for i, p := range out.Products {
			lines[i] = describe(p)
		}
		summary.WriteString("I found these products: " + strings.Join(lines, ", ") + ". ")
	}
	if len(out.NotFound) > 0 {
		summary.WriteString("Couldn't find: " + strings.Join(out.NotFound, ", ") + ". ")
	}
	if len(out.Added) > 0 {
		names := make([]string, len(out.Added))
		for i, a := range out.Added {
			names[i] = a.Name
		}
		summary.WriteString("Successfully added: " + strings.Join(names, ", ") + ". ")
	}
	out.Summary = summary.String()

	logger.Info().
		Int("phrases", len(intent.Phrases)).
		Int("added", len(out.Added)).
		Int("not_found", len(out.NotFound)).
		Int("failed", len(out.Failures)).
		Msg("Add to cart completed")
}

func (e *Executor) normalize(raw []RawProduct) []pkg.ProductMatch {
	if len(raw) > e.limit {
		raw = raw[:e.limit]
	}
	return normalizeAll(raw)
}

func (e *Executor) display(matches []pkg.ProductMatch) []pkg.ProductMatch {
	if len(matches) > e.limit {
		return matches[:e.limit]
	}
	return matches
}

func normalizeAll(raw []RawProduct) []pkg.ProductMatch {
	out := make([]pkg.ProductMatch, 0, len(raw))
	for _, r := range raw {
		out = append(out, NormalizeProduct(r))
	}
	return out
}

func (e *Executor) token(mem pkg.Memory) string {
	if mem.CustomerToken != "" {
		return mem.CustomerToken
	}
	return e.defaultToken
}

func (e *Executor) location(mem pkg.Memory) pkg.Location {
	if mem.Location != nil {
		return *mem.Location
	}
	return e.defaultLoc
}

func describe(p pkg.ProductMatch) string {
	price := "Price not available"
	if p.Price != nil {
		price = fmt.Sprintf("$%.2f", *p.Price)
	}
	image := "No image available"
	if p.Image != nil {
		image = *p.Image
	}
	return fmt.Sprintf("%s (ID: %s, Price: %s, Image: %s)", p.Name, p.ID, price, image)
}
