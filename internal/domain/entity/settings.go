package entity

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Integration names used in ConfigurationError
const (
	IntegrationMail      = "emailReading"
	IntegrationDoor      = "doorSystem"
	IntegrationPayment   = "payment"
	IntegrationMessaging = "messaging"
)

// Mailbox providers
const (
	MailProviderIMAP  = "imap"
	MailProviderGmail = "gmail"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// StringList decodes a JSON array whose items may be strings or numbers.
type StringList []string

func (l *StringList) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		var s string
		if err := json.Unmarshal(item, &s); err == nil {
			out = append(out, s)
			continue
		}
		var n json.Number
		if err := json.Unmarshal(item, &n); err != nil {
			return fmt.Errorf("list item %s is neither string nor number", string(item))
		}
		out = append(out, n.String())
	}
	*l = out
	return nil
}

// MailFilters is the emailReading.filters section
type MailFilters struct {
	From    []string `json:"from" yaml:"from" validate:"dive,required"`
	Subject []string `json:"subject" yaml:"subject" validate:"dive,required"`
}

// EmailReadingConfig is the emailReading section. With provider "gmail" the
// password holds the OAuth refresh token and host/port are ignored.
type EmailReadingConfig struct {
	Provider        string      `json:"provider" yaml:"provider" validate:"omitempty,oneof=imap gmail"`
	Host            string      `json:"host" yaml:"host" validate:"required_unless=Provider gmail"`
	Port            int         `json:"port" yaml:"port" validate:"omitempty,min=1,max=65535"`
	Secure          bool        `json:"secure" yaml:"secure"`
	User            string      `json:"user" yaml:"user" validate:"required"`
	Password        string      `json:"password" yaml:"password" validate:"required"`
	Folder          string      `json:"folder" yaml:"folder"`
	ProcessedFolder string      `json:"processedFolder" yaml:"processedFolder"`
	Filters         MailFilters `json:"filters" yaml:"filters"`
}

// MessageFilters converts the configured filters.
func (c *EmailReadingConfig) MessageFilters() MessageFilters {
	return MessageFilters{FromAddresses: c.Filters.From, SubjectKeywords: c.Filters.Subject}
}

// Address returns host:port, defaulting the port from the TLS flag.
func (c *EmailReadingConfig) Address() string {
	port := c.Port
	if port == 0 {
		port = 143
		if c.Secure {
			port = 993
		}
	}
	return c.Host + ":" + strconv.Itoa(port)
}

// MailboxFolder returns the folder to read, INBOX by default.
func (c *EmailReadingConfig) MailboxFolder() string {
	if c.Folder == "" {
		return "INBOX"
	}
	return c.Folder
}

// DoorSystemConfig is the doorSystem section
type DoorSystemConfig struct {
	APIURL       string     `json:"apiUrl" yaml:"apiUrl" validate:"required,url"`
	ClientID     string     `json:"clientId" yaml:"clientId" validate:"required"`
	ClientSecret string     `json:"clientSecret" yaml:"clientSecret" validate:"required"`
	Username     string     `json:"username" yaml:"username" validate:"required"`
	Password     string     `json:"password" yaml:"password" validate:"required"`
	LockIDs      StringList `json:"lockIds" yaml:"lockIds" validate:"required,min=1,dive,required"`
}

// PaymentConfig is the boldPayment / payment section
type PaymentConfig struct {
	APIKey      string `json:"apiKey" yaml:"apiKey" validate:"required"`
	MerchantID  string `json:"merchantId" yaml:"merchantId" validate:"required"`
	Environment string `json:"environment" yaml:"environment" validate:"omitempty,oneof=sandbox test production"`
}

// Sandbox reports whether the payment gateway sandbox should be used.
func (c *PaymentConfig) Sandbox() bool {
	return c.Environment == "sandbox" || c.Environment == "test"
}

// MessagingConfig is the messaging section
type MessagingConfig struct {
	APIKey        string `json:"apiKey" yaml:"apiKey" validate:"required"`
	PhoneNumberID string `json:"phoneNumberId" yaml:"phoneNumberId" validate:"required"`
}

// IntegrationSettings is the typed view of an organization settings blob or
// a decrypted credential blob. Nil sections are not configured.
type IntegrationSettings struct {
	EmailReading *EmailReadingConfig `json:"emailReading,omitempty" yaml:"emailReading,omitempty"`
	DoorSystem   *DoorSystemConfig   `json:"doorSystem,omitempty" yaml:"doorSystem,omitempty"`
	Payment      *PaymentConfig      `json:"payment,omitempty" yaml:"payment,omitempty"`
	Messaging    *MessagingConfig    `json:"messaging,omitempty" yaml:"messaging,omitempty"`
}

// rawSettings accepts both the settings key names and the credential blob names.
type rawSettings struct {
	EmailReading *EmailReadingConfig `json:"emailReading"`
	Mail         *EmailReadingConfig `json:"mail"`
	DoorSystem   *DoorSystemConfig   `json:"doorSystem"`
	Door         *DoorSystemConfig   `json:"door"`
	BoldPayment  *PaymentConfig      `json:"boldPayment"`
	Payment      *PaymentConfig      `json:"payment"`
	Messaging    *MessagingConfig    `json:"messaging"`
}

// DecodeSettings parses a settings or credential JSON blob. Empty input
// yields empty settings.
func DecodeSettings(data []byte) (*IntegrationSettings, error) {
	if len(strings.TrimSpace(string(data))) == 0 {
		return &IntegrationSettings{}, nil
	}
	var raw rawSettings
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode settings: %w", err)
	}
	return &IntegrationSettings{
		EmailReading: firstNonNil(raw.EmailReading, raw.Mail),
		DoorSystem:   firstNonNil(raw.DoorSystem, raw.Door),
		Payment:      firstNonNil(raw.BoldPayment, raw.Payment),
		Messaging:    raw.Messaging,
	}, nil
}

func firstNonNil[T any](values ...*T) *T {
	for _, v := range values {
		if v != nil {
			return v
		}
	}
	return nil
}

// Overlay returns a copy of s where every section present in override
// replaces the one in s.
func (s *IntegrationSettings) Overlay(override *IntegrationSettings) *IntegrationSettings {
	out := &IntegrationSettings{}
	if s != nil {
		*out = *s
	}
	if override == nil {
		return out
	}
	if override.EmailReading != nil {
		out.EmailReading = override.EmailReading
	}
	if override.DoorSystem != nil {
		out.DoorSystem = override.DoorSystem
	}
	if override.Payment != nil {
		out.Payment = override.Payment
	}
	if override.Messaging != nil {
		out.Messaging = override.Messaging
	}
	return out
}

// Mail returns the validated mailbox section.
func (s *IntegrationSettings) Mail(scope string) (*EmailReadingConfig, error) {
	if s == nil || s.EmailReading == nil {
		return nil, notConfigured(IntegrationMail, scope)
	}
	if err := check(IntegrationMail, scope, s.EmailReading); err != nil {
		return nil, err
	}
	return s.EmailReading, nil
}

// Door returns the validated door-lock section.
func (s *IntegrationSettings) Door(scope string) (*DoorSystemConfig, error) {
	if s == nil || s.DoorSystem == nil {
		return nil, notConfigured(IntegrationDoor, scope)
	}
	if err := check(IntegrationDoor, scope, s.DoorSystem); err != nil {
		return nil, err
	}
	return s.DoorSystem, nil
}

// PaymentGateway returns the validated payment section.
func (s *IntegrationSettings) PaymentGateway(scope string) (*PaymentConfig, error) {
	if s == nil || s.Payment == nil {
		return nil, notConfigured(IntegrationPayment, scope)
	}
	if err := check(IntegrationPayment, scope, s.Payment); err != nil {
		return nil, err
	}
	return s.Payment, nil
}

// MessagingGateway returns the validated messaging section.
func (s *IntegrationSettings) MessagingGateway(scope string) (*MessagingConfig, error) {
	if s == nil || s.Messaging == nil {
		return nil, notConfigured(IntegrationMessaging, scope)
	}
	if err := check(IntegrationMessaging, scope, s.Messaging); err != nil {
		return nil, err
	}
	return s.Messaging, nil
}

func notConfigured(integration, scope string) *ConfigurationError {
	return &ConfigurationError{Integration: integration, Scope: scope, Problems: []string{"not configured"}}
}

func check(integration, scope string, section interface{}) error {
	err := validate.Struct(section)
	if err == nil {
		return nil
	}
	cfgErr := &ConfigurationError{Integration: integration, Scope: scope}
	if verrs, ok := err.(validator.ValidationErrors); ok {
		for _, fe := range verrs {
			cfgErr.Problems = append(cfgErr.Problems, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
		}
	} else {
		cfgErr.Problems = append(cfgErr.Problems, err.Error())
	}
	return cfgErr
}
