package repository

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"hostel-ingest-service/internal/domain/entity"
	"hostel-ingest-service/internal/domain/repository"
	"hostel-ingest-service/pkg/logger"
)

// PaymentGatewayRepository creates hosted payment links
type PaymentGatewayRepository struct {
	logger        logger.Logger
	client        *http.Client
	productionURL string
	sandboxURL    string
}

// NewPaymentGatewayRepository creates a payment gateway client. The
// organization's environment setting picks the sandbox or production URL.
func NewPaymentGatewayRepository(logger logger.Logger, client *http.Client, productionURL, sandboxURL string) repository.PaymentGateway {
	return &PaymentGatewayRepository{
		logger:        logger,
		client:        client,
		productionURL: strings.TrimRight(productionURL, "/"),
		sandboxURL:    strings.TrimRight(sandboxURL, "/"),
	}
}

type paymentLinkAmount struct {
	Currency    string `json:"currency"`
	TotalAmount int64  `json:"totalAmount"`
}

type paymentLinkBody struct {
	Reference   string            `json:"reference"`
	Description string            `json:"description"`
	Amount      paymentLinkAmount `json:"amount"`
	ExpiresAt   string            `json:"expiresAt,omitempty"`
}

type paymentLinkResponse struct {
	Payload struct {
		PaymentLink string `json:"paymentLink"`
		URL         string `json:"url"`
	} `json:"payload"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// CreatePaymentLink creates a link for req.AmountCents. The reference is sent
// as idempotency key so a retried request returns the same link.
func (r *PaymentGatewayRepository) CreatePaymentLink(ctx context.Context, cfg *entity.PaymentConfig, req repository.PaymentLinkRequest) (string, error) {
	base := r.productionURL
	if cfg.Sandbox() && r.sandboxURL != "" {
		base = r.sandboxURL
	}

	body := paymentLinkBody{
		Reference:   req.Reference,
		Description: req.Description,
		Amount:      paymentLinkAmount{Currency: req.Currency, TotalAmount: req.AmountCents},
	}
	if !req.ExpiresAt.IsZero() {
		body.ExpiresAt = req.ExpiresAt.UTC().Format(time.RFC3339)
	}
	headers := map[string]string{
		"Authorization":   "x-api-key " + cfg.APIKey,
		"X-Merchant-Id":   cfg.MerchantID,
		"Idempotency-Key": req.Reference,
	}

	var resp paymentLinkResponse
	if err := doJSON(ctx, r.client, entity.ChannelPayment, http.MethodPost, base+"/v1/payment-links", headers, body, &resp); err != nil {
		return "", err
	}

	link := resp.Payload.URL
	if link == "" {
		link = resp.Payload.PaymentLink
	}
	if link == "" {
		msg := "response without payment link"
		if len(resp.Errors) > 0 {
			msg = resp.Errors[0].Message
		}
		return "", &entity.IntegrationError{Channel: entity.ChannelPayment, Err: errors.New(msg)}
	}

	r.logger.Info("Payment link created", "reference", req.Reference, "amountCents", req.AmountCents, "currency", req.Currency)
	return link, nil
}
