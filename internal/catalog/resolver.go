package catalog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/MiSArch/shoppingcart/pkg/errors"
	"github.com/MiSArch/shoppingcart/pkg/httpclient"
)

// VariantRef identifies a product variant in the catalog. The cart stores
// references only, so the id is all that crosses this boundary.
type VariantRef struct {
	ID uuid.UUID `json:"id"`
}

// Resolver confirms that product variants exist in the catalog.
type Resolver interface {
	Resolve(ctx context.Context, variantID uuid.UUID) (VariantRef, error)
}

// HTTPDoer is the subset of the shared HTTP client the resolver needs. Both
// httpclient.Client and httpclient.CircuitBreakerClient satisfy it.
type HTTPDoer interface {
	Do(ctx context.Context, req *http.Request) (*http.Response, error)
}

// CatalogResolver checks the local variant read model first and falls back
// to the product-catalog HTTP API on a miss. Remote failures map to two
// classes: a 404 is a permanent caller error, everything else (5xx, timeout,
// connection failure, open circuit) is a transient catalog outage.
type CatalogResolver struct {
	readModel *ReadModel
	client    HTTPDoer
	baseURL   string
	timeout   time.Duration
	logger    *slog.Logger
}

// NewResolver creates a resolver backed by the read model and the catalog
// service at baseURL. Each remote call is bounded by timeout.
func NewResolver(readModel *ReadModel, client HTTPDoer, baseURL string, timeout time.Duration, logger *slog.Logger) *CatalogResolver {
	return &CatalogResolver{
		readModel: readModel,
		client:    client,
		baseURL:   strings.TrimRight(baseURL, "/"),
		timeout:   timeout,
		logger:    logger,
	}
}

// Resolve confirms the variant exists, consulting the read model before the
// catalog API. A read-model outage falls through to the API; the catalog
// stays the source of truth.
func (r *CatalogResolver) Resolve(ctx context.Context, variantID uuid.UUID) (VariantRef, error) {
	known, err := r.readModel.Contains(ctx, variantID)
	if err != nil {
		r.logger.WarnContext(ctx, "variant read model unavailable, falling back to catalog",
			slog.String("variant_id", variantID.String()),
			slog.String("error", err.Error()),
		)
	}
	if known {
		return VariantRef{ID: variantID}, nil
	}

	return r.resolveRemote(ctx, variantID)
}

func (r *CatalogResolver) resolveRemote(ctx context.Context, variantID uuid.UUID) (VariantRef, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	url := fmt.Sprintf("%s/api/v1/variants/%s", r.baseURL, variantID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return VariantRef{}, fmt.Errorf("build catalog request: %w", err)
	}

	resp, err := r.client.Do(ctx, req)
	if err != nil {
		if errors.Is(err, httpclient.ErrCircuitOpen) {
			return VariantRef{}, apperrors.ServiceUnavailable("product catalog temporarily unavailable")
		}
		return VariantRef{}, apperrors.ServiceUnavailable("product catalog unreachable")
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		// Existence is all we need from the catalog; drain the body so the
		// connection can be reused.
		_, _ = io.Copy(io.Discard, resp.Body)
		if err := r.readModel.Add(ctx, variantID); err != nil {
			r.logger.WarnContext(ctx, "failed to record resolved variant in read model",
				slog.String("variant_id", variantID.String()),
				slog.String("error", err.Error()),
			)
		}
		return VariantRef{ID: variantID}, nil
	case http.StatusNotFound:
		return VariantRef{}, apperrors.NotFound("product variant", variantID.String())
	default:
		// Keep the downstream code and message for the log; the caller only
		// needs to know the catalog could not answer.
		downstream := httpclient.ParseResponseError(resp, "product-catalog")
		level := slog.LevelWarn
		if httpclient.IsClientError(resp.StatusCode) {
			// The catalog rejected a well-formed lookup; likely contract drift.
			level = slog.LevelError
		}
		r.logger.Log(ctx, level, "catalog lookup failed",
			slog.String("variant_id", variantID.String()),
			slog.Int("status", resp.StatusCode),
			slog.String("error", downstream.Error()),
		)
		return VariantRef{}, apperrors.ServiceUnavailable(fmt.Sprintf("product catalog returned status %d", resp.StatusCode))
	}
}
