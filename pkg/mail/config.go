package mail

import (
	"strings"
	"time"

	sgerrors "github.com/vnykmshr/sendgate/pkg/common/errors"
	"github.com/vnykmshr/sendgate/pkg/common/validation"
)

// TLS policies accepted in Config.TLSPolicy.
const (
	TLSMandatory     = "mandatory"
	TLSOpportunistic = "opportunistic"
	TLSNone          = "none"
)

// Config describes the SMTP account and the sending identity.
type Config struct {
	Host       string `mapstructure:"host" json:"host"`
	Port       int    `mapstructure:"port" json:"port"`
	Username   string `mapstructure:"username" json:"username"`
	Password   string `mapstructure:"password" json:"password"`
	Sender     string `mapstructure:"sender" json:"sender"`
	SenderName string `mapstructure:"sender_name" json:"sender_name"`

	// Domain is used for Message-ID and the unsubscribe addresses.
	Domain string `mapstructure:"domain" json:"domain"`

	// TLSPolicy is one of mandatory, opportunistic or none. STARTTLS is
	// required by default.
	TLSPolicy string `mapstructure:"tls_policy" json:"tls_policy"`

	// Timeout bounds connection setup and each SMTP command.
	Timeout time.Duration `mapstructure:"timeout" json:"timeout"`

	// FeedbackCampaign is the first element of the Feedback-ID header.
	FeedbackCampaign string `mapstructure:"feedback_campaign" json:"feedback_campaign"`

	// MaxConnections caps simultaneous SMTP connections. Zero means no cap.
	MaxConnections int `mapstructure:"max_connections" json:"max_connections"`
}

// DefaultConfig returns the settings used when no configuration file exists.
func DefaultConfig() Config {
	return Config{
		Host:             "localhost",
		Port:             25,
		Sender:           "noreply@localhost",
		SenderName:       "Sendgate",
		Domain:           "localhost",
		TLSPolicy:        TLSMandatory,
		Timeout:          30 * time.Second,
		FeedbackCampaign: "sendgate",
	}
}

// WithDefaults fills empty optional fields from DefaultConfig.
func (c Config) WithDefaults() Config {
	d := DefaultConfig()
	if c.Port == 0 {
		c.Port = d.Port
	}
	if c.TLSPolicy == "" {
		c.TLSPolicy = d.TLSPolicy
	}
	if c.Timeout == 0 {
		c.Timeout = d.Timeout
	}
	if c.FeedbackCampaign == "" {
		c.FeedbackCampaign = d.FeedbackCampaign
	}
	if c.Domain == "" {
		if at := strings.LastIndex(c.Sender, "@"); at >= 0 {
			c.Domain = c.Sender[at+1:]
		}
	}
	return c
}

// Validate reports the first invalid field as a *errors.ValidationError.
func (c Config) Validate() error {
	if err := validation.ValidateNotEmpty("mail", "host", c.Host); err != nil {
		return err
	}
	if err := validation.ValidatePort("mail", "port", c.Port); err != nil {
		return err
	}
	if err := validation.ValidateNotEmpty("mail", "sender", c.Sender); err != nil {
		return err
	}
	if !strings.Contains(c.Sender, "@") {
		return sgerrors.NewValidationError("mail", "sender", c.Sender, "is not an email address")
	}
	if err := validation.ValidateNotEmpty("mail", "domain", c.Domain); err != nil {
		return err
	}
	switch c.TLSPolicy {
	case TLSMandatory, TLSOpportunistic, TLSNone:
	default:
		return sgerrors.NewValidationError("mail", "tls_policy", c.TLSPolicy, "unknown policy").
			WithHint("use mandatory, opportunistic or none")
	}
	if err := validation.ValidateNonNegativeDuration("mail", "timeout", c.Timeout); err != nil {
		return err
	}
	if err := validation.ValidateNonNegative("mail", "max_connections", c.MaxConnections); err != nil {
		return err
	}
	return nil
}
