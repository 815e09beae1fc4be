package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/baticonnect/artisan-backend/internal/domain/valueobject"
	"github.com/baticonnect/artisan-backend/internal/pkg/apperror"
)

// Gateway transfer statuses as reported by the mobile-money provider.
const (
	GatewayStatusPending   = "pending"
	GatewayStatusCompleted = "completed"
	GatewayStatusFailed    = "failed"
	GatewayStatusCancelled = "cancelled"
)

// GatewayResult is the provider's answer to one money-movement request.
type GatewayResult struct {
	ProviderTxID string `json:"provider_tx_id"`
	Status       string `json:"status"`
	ErrorCode    string `json:"error_code,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
}

// MoneyGateway is the outbound contract to the mobile-money provider. The
// provider treats calls as at-least-once; the reference string is the
// idempotency key, generated by the caller, so a retried call never moves
// money twice.
type MoneyGateway interface {
	BlockFunds(ctx context.Context, payerID uuid.UUID, amount valueobject.Money, reference string) (*GatewayResult, error)
	TransferFunds(ctx context.Context, payerID, payeeID uuid.UUID, amount valueobject.Money, reference string) (*GatewayResult, error)
	RefundFunds(ctx context.Context, payerID uuid.UUID, amount valueobject.Money, reference string) (*GatewayResult, error)
	CheckStatus(ctx context.Context, providerTxID string) (string, error)
}

// HTTPGateway talks to the provider over its REST API.
type HTTPGateway struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewHTTPGateway(baseURL, apiKey string) *HTTPGateway {
	return &HTTPGateway{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

type gatewayRequest struct {
	PayerID     string `json:"payer_id,omitempty"`
	PayeeID     string `json:"payee_id,omitempty"`
	AmountMinor int64  `json:"amount_minor"`
	Currency    string `json:"currency"`
	Reference   string `json:"reference"`
}

func (g *HTTPGateway) BlockFunds(ctx context.Context, payerID uuid.UUID, amount valueobject.Money, reference string) (*GatewayResult, error) {
	return g.post(ctx, "/v1/block", gatewayRequest{
		PayerID:     payerID.String(),
		AmountMinor: amount.Amount,
		Currency:    amount.Currency,
		Reference:   reference,
	})
}

func (g *HTTPGateway) TransferFunds(ctx context.Context, payerID, payeeID uuid.UUID, amount valueobject.Money, reference string) (*GatewayResult, error) {
	return g.post(ctx, "/v1/transfer", gatewayRequest{
		PayerID:     payerID.String(),
		PayeeID:     payeeID.String(),
		AmountMinor: amount.Amount,
		Currency:    amount.Currency,
		Reference:   reference,
	})
}

func (g *HTTPGateway) RefundFunds(ctx context.Context, payerID uuid.UUID, amount valueobject.Money, reference string) (*GatewayResult, error) {
	return g.post(ctx, "/v1/refund", gatewayRequest{
		PayerID:     payerID.String(),
		AmountMinor: amount.Amount,
		Currency:    amount.Currency,
		Reference:   reference,
	})
}

func (g *HTTPGateway) CheckStatus(ctx context.Context, providerTxID string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"/v1/transactions/"+providerTxID, nil)
	if err != nil {
		return "", apperror.Wrap(err, apperror.ErrCodeGateway, "gateway: build status request")
	}
	req.Header.Set("Authorization", "Bearer "+g.apiKey)

	resp, err := g.client.Do(req)
	if err != nil {
		return "", apperror.Wrap(err, apperror.ErrCodeGateway, "gateway: status request failed")
	}
	defer resp.Body.Close()

	var result GatewayResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", apperror.Wrap(err, apperror.ErrCodeGateway, "gateway: decode status response")
	}
	return result.Status, nil
}

func (g *HTTPGateway) post(ctx context.Context, path string, payload gatewayRequest) (*GatewayResult, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "gateway: marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeGateway, "gateway: build request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.apiKey)
	req.Header.Set("Idempotency-Key", payload.Reference)

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeGateway, "gateway: request failed")
	}
	defer resp.Body.Close()

	var result GatewayResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeGateway, "gateway: decode response")
	}

	if resp.StatusCode >= 400 || result.Status == GatewayStatusFailed {
		return &result, apperror.Newf(apperror.ErrCodeGateway,
			"gateway refused %s: %s %s", path, result.ErrorCode, result.ErrorMessage)
	}
	return &result, nil
}

var _ MoneyGateway = (*HTTPGateway)(nil)

// Reference builders are deterministic so a retry reuses the same
// idempotency key instead of re-deriving the amount.

func BlockReference(jobID uuid.UUID) string {
	return fmt.Sprintf("job:%s:block", jobID)
}

func MilestoneReleaseReference(milestoneID uuid.UUID) string {
	return fmt.Sprintf("ms:%s:labor", milestoneID)
}

func TokenRedemptionReference(tokenID uuid.UUID, usedAfter int64) string {
	return fmt.Sprintf("tok:%s:red:%d", tokenID, usedAfter)
}

func DisputeReference(disputeID uuid.UUID, leg string) string {
	return fmt.Sprintf("dsp:%s:%s", disputeID, leg)
}

func ManualReference(escrowID uuid.UUID, kind string) string {
	return fmt.Sprintf("esc:%s:%s:%s", escrowID, kind, uuid.NewString()[:8])
}
