package billing

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"
)

const (
	EventCheckoutCompleted    = "checkout.session.completed"
	EventSubscriptionCreated  = "customer.subscription.created"
	EventSubscriptionUpdated  = "customer.subscription.updated"
	EventSubscriptionDeleted  = "customer.subscription.deleted"
	EventInvoicePaymentFailed = "invoice.payment_failed"
)

var ErrInvalidSignature = errors.New("invalid webhook signature")

type CheckoutCompleted struct {
	SessionID      string
	ProfileID      string
	CustomerID     string
	CustomerEmail  string
	SubscriptionID string
	Plan           string
}

type SubscriptionChange struct {
	ID                string
	CustomerID        string
	PriceID           string
	Status            string
	CurrentPeriodEnd  *time.Time
	CancelAtPeriodEnd bool
}

// Active reports whether the processor status grants access.
func (s SubscriptionChange) Active() bool {
	return s.Status == string(stripe.SubscriptionStatusActive) || s.Status == string(stripe.SubscriptionStatusTrialing)
}

type InvoiceEvent struct {
	ID            string
	CustomerID    string
	CustomerEmail string
	AmountDue     int64
	Currency      string
	InvoiceURL    string
}

// Event is a verified processor event reduced to the fields the app uses.
// At most one of the payload pointers is set.
type Event struct {
	ID           string
	Type         string
	Checkout     *CheckoutCompleted
	Subscription *SubscriptionChange
	Invoice      *InvoiceEvent
}

// ParseWebhook verifies the Stripe-Signature header and decodes the event.
func ParseWebhook(payload []byte, signatureHeader, secret string) (Event, error) {
	ev, err := webhook.ConstructEventWithOptions(payload, signatureHeader, secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return decodeEvent(ev)
}

func decodeEvent(ev stripe.Event) (Event, error) {
	out := Event{ID: ev.ID, Type: string(ev.Type)}
	if ev.Data == nil {
		return out, nil
	}

	switch out.Type {
	case EventCheckoutCompleted:
		var cs stripe.CheckoutSession
		if err := json.Unmarshal(ev.Data.Raw, &cs); err != nil {
			return Event{}, fmt.Errorf("decode checkout session: %w", err)
		}
		out.Checkout = checkoutFromStripe(&cs)

	case EventSubscriptionCreated, EventSubscriptionUpdated, EventSubscriptionDeleted:
		var sub stripe.Subscription
		if err := json.Unmarshal(ev.Data.Raw, &sub); err != nil {
			return Event{}, fmt.Errorf("decode subscription: %w", err)
		}
		out.Subscription = subscriptionFromStripe(&sub)

	case EventInvoicePaymentFailed:
		var inv stripe.Invoice
		if err := json.Unmarshal(ev.Data.Raw, &inv); err != nil {
			return Event{}, fmt.Errorf("decode invoice: %w", err)
		}
		out.Invoice = invoiceFromStripe(&inv)
	}

	return out, nil
}

func checkoutFromStripe(cs *stripe.CheckoutSession) *CheckoutCompleted {
	out := &CheckoutCompleted{
		SessionID:     cs.ID,
		ProfileID:     cs.ClientReferenceID,
		CustomerEmail: cs.CustomerEmail,
		Plan:          cs.Metadata["plan"],
	}
	if cs.Customer != nil {
		out.CustomerID = cs.Customer.ID
	}
	if out.CustomerEmail == "" && cs.CustomerDetails != nil {
		out.CustomerEmail = cs.CustomerDetails.Email
	}
	if cs.Subscription != nil {
		out.SubscriptionID = cs.Subscription.ID
	}
	return out
}

func subscriptionFromStripe(sub *stripe.Subscription) *SubscriptionChange {
	out := &SubscriptionChange{
		ID:                sub.ID,
		Status:            string(sub.Status),
		CancelAtPeriodEnd: sub.CancelAtPeriodEnd,
	}
	if sub.Customer != nil {
		out.CustomerID = sub.Customer.ID
	}
	if sub.Items != nil {
		for _, item := range sub.Items.Data {
			if item != nil && item.Price != nil {
				out.PriceID = item.Price.ID
				break
			}
		}
	}
	if sub.CurrentPeriodEnd > 0 {
		end := time.Unix(sub.CurrentPeriodEnd, 0).UTC()
		out.CurrentPeriodEnd = &end
	}
	return out
}

func invoiceFromStripe(inv *stripe.Invoice) *InvoiceEvent {
	out := &InvoiceEvent{
		ID:            inv.ID,
		CustomerEmail: inv.CustomerEmail,
		AmountDue:     inv.AmountDue,
		Currency:      string(inv.Currency),
		InvoiceURL:    inv.HostedInvoiceURL,
	}
	if inv.Customer != nil {
		out.CustomerID = inv.Customer.ID
	}
	return out
}
