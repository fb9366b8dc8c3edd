package payments

import (
	"context"
	"fmt"
	"strconv"

	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/client"
)

// Metadata keys carried on the checkout session so the webhook can persist
// the computed split without recomputing it.
const (
	MetaLessonID              = "lesson_id"
	MetaUserID                = "user_id"
	MetaInstructorID          = "instructor_id"
	MetaPlatformFeeCents      = "platform_fee_cents"
	MetaInstructorPayoutCents = "instructor_payout_cents"
)

// CheckoutParams describes one lesson checkout.
type CheckoutParams struct {
	LessonID         string
	UserID           string
	InstructorID     string
	LessonTitle      string
	Currency         string
	GrossAmountCents int64
	Split            FeeSplit
}

// CheckoutSession is the created hosted-checkout session.
type CheckoutSession struct {
	ID  string `json:"session_id"`
	URL string `json:"checkout_url"`
}

// StripeClient wraps the Stripe API client for hosted checkout. Constructed
// explicitly and passed in, never a package-level singleton.
type StripeClient struct {
	api        *client.API
	successURL string
	cancelURL  string
}

// NewStripeClient creates a Stripe client for checkout session creation.
func NewStripeClient(secretKey, successURL, cancelURL string) *StripeClient {
	api := &client.API{}
	api.Init(secretKey, nil)
	return &StripeClient{api: api, successURL: successURL, cancelURL: cancelURL}
}

// CreateCheckoutSession creates a hosted checkout session carrying the fee
// split as metadata and returns the redirect URL.
func (s *StripeClient) CreateCheckoutSession(ctx context.Context, p CheckoutParams) (*CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{
		Params:            stripe.Params{Context: ctx},
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:        stripe.String(s.successURL),
		CancelURL:         stripe.String(s.cancelURL),
		ClientReferenceID: stripe.String(p.UserID),
		LineItems: []*stripe.CheckoutSessionLineItemParams{{
			Quantity: stripe.Int64(1),
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(p.Currency),
				UnitAmount: stripe.Int64(p.GrossAmountCents),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(p.LessonTitle),
				},
			},
		}},
	}
	params.AddMetadata(MetaLessonID, p.LessonID)
	params.AddMetadata(MetaUserID, p.UserID)
	params.AddMetadata(MetaInstructorID, p.InstructorID)
	params.AddMetadata(MetaPlatformFeeCents, strconv.FormatInt(p.Split.PlatformFeeCents, 10))
	params.AddMetadata(MetaInstructorPayoutCents, strconv.FormatInt(p.Split.InstructorPayoutCents, 10))

	sess, err := s.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, fmt.Errorf("create checkout session: %w", err)
	}
	return &CheckoutSession{ID: sess.ID, URL: sess.URL}, nil
}
