// Package mail implements an email notifier delivered over SMTP.
package mail

import (
	"context"
	"fmt"
	"strings"

	gomail "github.com/wneessen/go-mail"

	"github.com/gardenbot/stock-watcher/internal/stock"
)

const channelName = "email"

// Config captures the SMTP parameters for the email notifier. Gmail
// requires an app password when two-factor auth is enabled.
type Config struct {
	Host        string `mapstructure:"host"`
	Port        int    `mapstructure:"port"`
	Sender      string `mapstructure:"sender"`
	AppPassword string `mapstructure:"app_password"`
	Recipient   string `mapstructure:"recipient"`
}

// Notifier sends stock alerts as plain-text emails.
type Notifier struct {
	cfg    Config
	client *gomail.Client
}

// New creates an email notifier. The SMTP connection is established lazily
// on the first send.
func New(cfg Config) (*Notifier, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("smtp host is required")
	}
	if cfg.Sender == "" || cfg.AppPassword == "" {
		return nil, fmt.Errorf("sender and app password are required")
	}
	if cfg.Recipient == "" {
		return nil, fmt.Errorf("recipient is required")
	}
	if cfg.Port == 0 {
		cfg.Port = 465
	}

	client, err := gomail.NewClient(cfg.Host,
		gomail.WithPort(cfg.Port),
		gomail.WithSSL(),
		gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
		gomail.WithUsername(cfg.Sender),
		gomail.WithPassword(cfg.AppPassword),
	)
	if err != nil {
		return nil, fmt.Errorf("create smtp client: %w", err)
	}

	return &Notifier{cfg: cfg, client: client}, nil
}

// Channel reports the notifier channel name.
func (n *Notifier) Channel() string {
	return channelName
}

// Notify builds and sends the alert email.
func (n *Notifier) Notify(ctx context.Context, alert stock.Alert) error {
	msg, err := n.buildMessage(alert)
	if err != nil {
		return err
	}
	if err := n.client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("send alert email: %w", err)
	}
	return nil
}

func (n *Notifier) buildMessage(alert stock.Alert) (*gomail.Msg, error) {
	msg := gomail.NewMsg()
	if err := msg.From(n.cfg.Sender); err != nil {
		return nil, fmt.Errorf("set sender: %w", err)
	}
	if err := msg.To(n.cfg.Recipient); err != nil {
		return nil, fmt.Errorf("set recipient: %w", err)
	}
	msg.Subject(Subject(alert))
	msg.SetBodyString(gomail.TypeTextPlain, Body(alert))
	return msg, nil
}

// Subject renders the alert email subject line.
func Subject(alert stock.Alert) string {
	return fmt.Sprintf("Grow a Garden stock alert (%d seeds)", len(alert.Seeds))
}

// Body renders the plain-text alert email body.
func Body(alert stock.Alert) string {
	var b strings.Builder
	b.WriteString("The following seeds are in stock:\n\n")
	for _, seed := range alert.Seeds {
		fmt.Fprintf(&b, "- %s: %d available!\n", seed.Name, seed.Quantity)
	}
	return b.String()
}
