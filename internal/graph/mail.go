package graph

import (
	"context"
	"errors"
	"net/http"
	"net/url"
)

// ErrNoRecipient is returned when a message has no address.
var ErrNoRecipient = errors.New("message must have exactly one recipient")

// EmailAddress is a Graph emailAddress resource.
type EmailAddress struct {
	Address string `json:"address"`
}

// Recipient wraps an address for toRecipients.
type Recipient struct {
	EmailAddress EmailAddress `json:"emailAddress"`
}

// ItemBody is the message body.
type ItemBody struct {
	ContentType string `json:"contentType"`
	Content     string `json:"content"`
}

// MailMessage is the message part of a sendMail payload.
type MailMessage struct {
	Subject      string      `json:"subject"`
	Body         ItemBody    `json:"body"`
	ToRecipients []Recipient `json:"toRecipients"`
}

// SendMailPayload is the JSON body of POST /sendMail.
type SendMailPayload struct {
	Message         MailMessage `json:"message"`
	SaveToSentItems bool        `json:"saveToSentItems"`
}

// Message is one outgoing HTML mail for a single recipient.
type Message struct {
	To              string
	Subject         string
	HTML            string
	SaveToSentItems bool
}

// Payload builds the Graph request body. Only one recipient is ever set,
// so recipients of a bulk run never see each other.
func (m Message) Payload() SendMailPayload {
	return SendMailPayload{
		Message: MailMessage{
			Subject:      m.Subject,
			Body:         ItemBody{ContentType: "HTML", Content: m.HTML},
			ToRecipients: []Recipient{{EmailAddress: EmailAddress{Address: m.To}}},
		},
		SaveToSentItems: m.SaveToSentItems,
	}
}

// MailService sends mail as the signed-in user, or as Sender when set.
type MailService struct {
	client *Client
	sender string
}

// NewMailService creates a mail service. sender may be empty for delegated tokens.
func NewMailService(client *Client, sender string) *MailService {
	return &MailService{client: client, sender: sender}
}

// Send posts one message. Send failures are not retried here; the caller
// records them against the row.
func (s *MailService) Send(ctx context.Context, msg Message) error {
	if msg.To == "" {
		return ErrNoRecipient
	}

	_, err := s.client.Call(ctx, Request{
		Method: http.MethodPost,
		Path:   s.path(),
		Body:   msg.Payload(),
	})
	return err
}

func (s *MailService) path() string {
	if s.sender == "" {
		return "/me/sendMail"
	}
	return "/users/" + url.PathEscape(s.sender) + "/sendMail"
}
