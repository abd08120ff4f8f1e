package repository

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"hostel-ingest-service/internal/domain/entity"
	"hostel-ingest-service/internal/domain/repository"
	"hostel-ingest-service/pkg/logger"
)

// WhatsappRepository sends guest messages through the WhatsApp Cloud API
type WhatsappRepository struct {
	logger  logger.Logger
	client  *http.Client
	baseURL string
}

// NewWhatsappRepository creates a new WhatsApp repository
func NewWhatsappRepository(logger logger.Logger, client *http.Client, baseURL string) repository.MessagingGateway {
	return &WhatsappRepository{
		logger:  logger,
		client:  client,
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

type whatsappText struct {
	Body string `json:"body"`
}

type whatsappMessage struct {
	MessagingProduct string       `json:"messaging_product"`
	To               string       `json:"to"`
	Type             string       `json:"type"`
	Text             whatsappText `json:"text"`
}

type whatsappResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
}

// SendText sends a text message and returns the provider message id
func (r *WhatsappRepository) SendText(ctx context.Context, cfg *entity.MessagingConfig, to, body string) (string, error) {
	to = strings.TrimPrefix(to, "+")
	if to == "" {
		return "", &entity.IntegrationError{Channel: entity.ChannelWhatsApp, Err: errors.New("empty recipient")}
	}

	msg := whatsappMessage{
		MessagingProduct: "whatsapp",
		To:               to,
		Type:             "text",
		Text:             whatsappText{Body: body},
	}
	endpoint := fmt.Sprintf("%s/%s/messages", r.baseURL, url.PathEscape(cfg.PhoneNumberID))
	headers := map[string]string{"Authorization": "Bearer " + cfg.APIKey}

	var resp whatsappResponse
	if err := doJSON(ctx, r.client, entity.ChannelWhatsApp, http.MethodPost, endpoint, headers, msg, &resp); err != nil {
		return "", err
	}

	messageID := ""
	if len(resp.Messages) > 0 {
		messageID = resp.Messages[0].ID
	}
	r.logger.Info("WhatsApp message sent", "to", to, "messageId", messageID)
	return messageID, nil
}
