package repository

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"hostel-ingest-service/internal/domain/entity"
	"hostel-ingest-service/internal/domain/repository"
	"hostel-ingest-service/internal/infrastructure/oauth"
	"hostel-ingest-service/pkg/logger"

	"golang.org/x/oauth2"
)

// DoorLockRepository provisions passcodes on the door-lock cloud API
type DoorLockRepository struct {
	logger logger.Logger
	client *http.Client
	tokens *oauth.DoorTokenCache
}

// NewDoorLockRepository creates a door-lock client sharing tokens through cache
func NewDoorLockRepository(logger logger.Logger, client *http.Client, tokens *oauth.DoorTokenCache) repository.DoorLockGateway {
	return &DoorLockRepository{
		logger: logger,
		client: client,
		tokens: tokens,
	}
}

type passcodeBody struct {
	Name      string `json:"name"`
	Code      string `json:"code"`
	StartsAt  string `json:"startsAt"`
	EndsAt    string `json:"endsAt"`
	Reference string `json:"reference,omitempty"`
}

// CreatePasscode adds a timed passcode to one lock. A 409 means the passcode
// already exists and counts as success.
func (r *DoorLockRepository) CreatePasscode(ctx context.Context, cfg *entity.DoorSystemConfig, req repository.PasscodeRequest) error {
	token, err := r.tokens.TokenSource(context.WithValue(ctx, oauth2.HTTPClient, r.client), cfg).Token()
	if err != nil {
		return tokenError(err)
	}

	endpoint := fmt.Sprintf("%s/v1/locks/%s/passcodes", strings.TrimRight(cfg.APIURL, "/"), url.PathEscape(req.LockID))
	body := passcodeBody{
		Name:      req.Name,
		Code:      req.Code,
		StartsAt:  req.StartsAt.UTC().Format(time.RFC3339),
		EndsAt:    req.EndsAt.UTC().Format(time.RFC3339),
		Reference: req.Reference,
	}
	headers := map[string]string{"Authorization": "Bearer " + token.AccessToken}

	err = doJSON(ctx, r.client, entity.ChannelDoor, http.MethodPost, endpoint, headers, body, nil)
	var ie *entity.IntegrationError
	switch {
	case err == nil:
	case errors.As(err, &ie) && ie.StatusCode == http.StatusConflict:
		r.logger.Debug("Passcode already provisioned", "lockId", req.LockID, "reference", req.Reference)
	case errors.As(err, &ie) && ie.StatusCode == http.StatusUnauthorized:
		r.tokens.Invalidate(cfg)
		ie.Transient = true
		return ie
	default:
		return err
	}

	r.logger.Info("Passcode provisioned", "lockId", req.LockID, "reference", req.Reference)
	return nil
}

// tokenError classifies a failed password grant: rejected credentials are
// permanent, anything else is retried on the next run.
func tokenError(err error) error {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) && re.Response != nil {
		return entity.NewHTTPError(entity.ChannelDoor, re.Response.StatusCode, "token request failed: "+string(re.Body))
	}
	return entity.NewTransportError(entity.ChannelDoor, fmt.Errorf("token request failed: %w", err))
}
