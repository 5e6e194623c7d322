package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"coachboard/internal/apperrors"
	"coachboard/internal/billing"
	"coachboard/internal/config"
	"coachboard/internal/database"
	"coachboard/internal/email"
	"coachboard/internal/utils"
)

type SubscriptionView struct {
	Status       database.SubscriptionStatus `json:"status"`
	PlanName     string                      `json:"plan_name"`
	Subscription *database.Subscription      `json:"subscription,omitempty"`
}

type BillingService struct {
	repository    *database.Repository
	gateway       billing.Gateway
	mailer        email.Mailer
	webhookSecret string
	prices        map[database.SubscriptionStatus]string
	baseURL       string
	now           func() time.Time
	logger        *zap.Logger
}

func NewBillingService(repo *database.Repository, gateway billing.Gateway, mailer email.Mailer, cfg *config.Config, now func() time.Time, logger *zap.Logger) *BillingService {
	return &BillingService{
		repository:    repo,
		gateway:       gateway,
		mailer:        mailer,
		webhookSecret: cfg.Billing.WebhookSecret,
		prices: map[database.SubscriptionStatus]string{
			database.StatusCoaching:   cfg.Billing.BasePriceID,
			database.StatusHumanCoach: cfg.Billing.HumanCoachPriceID,
		},
		baseURL: strings.TrimRight(cfg.Server.BaseURL, "/"),
		now:     now,
		logger:  logger,
	}
}

// planForPrice maps a processor price id back to a plan code.
func (bs *BillingService) planForPrice(priceID string) database.SubscriptionStatus {
	for plan, id := range bs.prices {
		if id != "" && id == priceID {
			return plan
		}
	}
	return database.StatusNone
}

func (bs *BillingService) CreateCheckout(ctx context.Context, profileID string, plan database.SubscriptionStatus) (string, error) {
	if bs.gateway == nil {
		return "", apperrors.ErrUnavailable
	}
	priceID := bs.prices[plan]
	if !plan.Paid() || priceID == "" {
		return "", invalid("unknown plan %q", plan)
	}

	profile, err := bs.repository.GetProfile(ctx, profileID)
	if err != nil {
		return "", err
	}

	return bs.gateway.CheckoutURL(ctx, billing.CheckoutRequest{
		ProfileID:  profile.ID,
		Email:      profile.Email,
		CustomerID: profile.CustomerID,
		PriceID:    priceID,
		Plan:       string(plan),
		SuccessURL: bs.baseURL + "/dashboard?checkout=success",
		CancelURL:  bs.baseURL + "/pricing?checkout=cancelled",
	})
}

func (bs *BillingService) CreatePortal(ctx context.Context, profileID string) (string, error) {
	if bs.gateway == nil {
		return "", apperrors.ErrUnavailable
	}
	profile, err := bs.repository.GetProfile(ctx, profileID)
	if err != nil {
		return "", err
	}
	if profile.CustomerID == "" {
		return "", invalid("profile has no billing account yet")
	}
	return bs.gateway.PortalURL(ctx, profile.CustomerID, bs.baseURL+"/dashboard")
}

func (bs *BillingService) GetSubscription(ctx context.Context, profileID string) (*SubscriptionView, error) {
	profile, err := bs.repository.GetProfile(ctx, profileID)
	if err != nil {
		return nil, err
	}
	view := &SubscriptionView{
		Status:   profile.SubscriptionStatus,
		PlanName: utils.GetPlanName(profile.SubscriptionStatus),
	}
	sub, err := bs.repository.GetSubscriptionByProfile(ctx, profileID)
	switch {
	case err == nil:
		view.Subscription = sub
	case !errors.Is(err, apperrors.ErrNotFound):
		return nil, err
	}
	return view, nil
}

// HandleWebhook verifies and applies a processor event. Replays of an event
// already processed are acknowledged without side effects. A failed event is
// forgotten so the processor's retry is applied.
func (bs *BillingService) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	if bs.webhookSecret == "" {
		return apperrors.ErrUnavailable
	}
	event, err := billing.ParseWebhook(payload, signature, bs.webhookSecret)
	if err != nil {
		return fmt.Errorf("%v: %w", err, apperrors.ErrUnauthorized)
	}

	logger := bs.logger.With(zap.String("event_id", event.ID), zap.String("event_type", event.Type))

	fresh, err := bs.repository.RecordBillingEvent(ctx, event.ID, event.Type, bs.now())
	if err != nil {
		return err
	}
	if !fresh {
		logger.Info("duplicate billing event ignored")
		return nil
	}

	if err := bs.dispatch(ctx, event, logger); err != nil {
		if ferr := bs.repository.ForgetBillingEvent(ctx, event.ID); ferr != nil {
			logger.Error("forget billing event", zap.Error(ferr))
		}
		return err
	}
	return nil
}

func (bs *BillingService) dispatch(ctx context.Context, event billing.Event, logger *zap.Logger) error {
	switch {
	case event.Checkout != nil:
		return bs.onCheckoutCompleted(ctx, event.Checkout, logger)
	case event.Subscription != nil && event.Type == billing.EventSubscriptionDeleted:
		return bs.onSubscriptionDeleted(ctx, event.Subscription, logger)
	case event.Subscription != nil:
		return bs.onSubscriptionChanged(ctx, event.Subscription, logger)
	case event.Invoice != nil:
		return bs.onPaymentFailed(ctx, event.Invoice, logger)
	default:
		logger.Info("unhandled billing event")
		return nil
	}
}

func (bs *BillingService) onCheckoutCompleted(ctx context.Context, cs *billing.CheckoutCompleted, logger *zap.Logger) error {
	var (
		profile *database.Profile
		err     error
	)
	if cs.ProfileID != "" {
		profile, err = bs.repository.GetProfile(ctx, cs.ProfileID)
	} else {
		err = apperrors.ErrNotFound
	}
	if errors.Is(err, apperrors.ErrNotFound) && cs.CustomerEmail != "" {
		profile, err = bs.repository.GetProfileByEmail(ctx, normalizeEmail(cs.CustomerEmail))
	}
	if errors.Is(err, apperrors.ErrNotFound) {
		logger.Warn("checkout for unknown profile", zap.String("customer_id", cs.CustomerID))
		return nil
	}
	if err != nil {
		return err
	}

	now := bs.now()
	return bs.repository.WithTx(ctx, func(tx *database.Repository) error {
		if cs.CustomerID != "" && cs.CustomerID != profile.CustomerID {
			if err := tx.SetCustomerID(ctx, profile.ID, cs.CustomerID, now); err != nil {
				return err
			}
		}
		if plan := database.SubscriptionStatus(cs.Plan); plan.Paid() {
			if err := tx.SetSubscriptionStatus(ctx, profile.ID, plan, now); err != nil {
				return err
			}
		}
		logger.Info("checkout completed", zap.String("profile_id", profile.ID), zap.String("plan", cs.Plan))
		return nil
	})
}

func (bs *BillingService) profileForCustomer(ctx context.Context, customerID string, logger *zap.Logger) (*database.Profile, error) {
	if customerID == "" {
		logger.Warn("billing event without customer")
		return nil, nil
	}
	profile, err := bs.repository.GetProfileByCustomerID(ctx, customerID)
	if errors.Is(err, apperrors.ErrNotFound) {
		logger.Warn("billing event for unknown customer", zap.String("customer_id", customerID))
		return nil, nil
	}
	return profile, err
}

func (bs *BillingService) onSubscriptionChanged(ctx context.Context, sub *billing.SubscriptionChange, logger *zap.Logger) error {
	profile, err := bs.profileForCustomer(ctx, sub.CustomerID, logger)
	if err != nil || profile == nil {
		return err
	}

	plan := database.StatusNone
	if sub.Active() {
		plan = bs.planForPrice(sub.PriceID)
	}
	previous := profile.SubscriptionStatus

	if err := bs.storeSubscription(ctx, profile.ID, sub, sub.Status, plan); err != nil {
		return err
	}
	logger.Info("subscription updated",
		zap.String("profile_id", profile.ID),
		zap.String("status", sub.Status),
		zap.String("plan", string(plan)))

	if previous == database.StatusNone && plan.Paid() {
		sendEmail(ctx, bs.mailer, logger, email.TemplateSubscriptionConfirmed, profile.Email, email.SubscriptionData{
			Name:         displayName(profile),
			Plan:         utils.GetPlanName(plan),
			DashboardURL: bs.baseURL + "/dashboard",
		})
	}
	return nil
}

func (bs *BillingService) onSubscriptionDeleted(ctx context.Context, sub *billing.SubscriptionChange, logger *zap.Logger) error {
	profile, err := bs.profileForCustomer(ctx, sub.CustomerID, logger)
	if err != nil || profile == nil {
		return err
	}

	previous := profile.SubscriptionStatus
	if err := bs.storeSubscription(ctx, profile.ID, sub, "canceled", database.StatusNone); err != nil {
		return err
	}
	logger.Info("subscription cancelled", zap.String("profile_id", profile.ID))

	sendEmail(ctx, bs.mailer, logger, email.TemplateSubscriptionCancelled, profile.Email, email.SubscriptionData{
		Name:         displayName(profile),
		Plan:         utils.GetPlanName(previous),
		DashboardURL: bs.baseURL + "/pricing",
	})
	return nil
}

func (bs *BillingService) storeSubscription(ctx context.Context, profileID string, sub *billing.SubscriptionChange, status string, plan database.SubscriptionStatus) error {
	now := bs.now()
	return bs.repository.WithTx(ctx, func(tx *database.Repository) error {
		err := tx.UpsertSubscription(ctx, database.Subscription{
			ID:                sub.ID,
			ProfileID:         profileID,
			CustomerID:        sub.CustomerID,
			PriceID:           sub.PriceID,
			Status:            status,
			Plan:              plan,
			CurrentPeriodEnd:  sub.CurrentPeriodEnd,
			CancelAtPeriodEnd: sub.CancelAtPeriodEnd,
			UpdatedAt:         now,
		})
		if err != nil {
			return err
		}
		return tx.SetSubscriptionStatus(ctx, profileID, plan, now)
	})
}

func (bs *BillingService) onPaymentFailed(ctx context.Context, inv *billing.InvoiceEvent, logger *zap.Logger) error {
	profile, err := bs.profileForCustomer(ctx, inv.CustomerID, logger)
	if err != nil || profile == nil {
		return err
	}

	logger.Warn("invoice payment failed", zap.String("profile_id", profile.ID), zap.String("invoice_id", inv.ID))
	sendEmail(ctx, bs.mailer, logger, email.TemplatePaymentFailed, profile.Email, email.PaymentFailedData{
		Name:       displayName(profile),
		Amount:     formatAmount(inv.AmountDue, inv.Currency),
		InvoiceURL: inv.InvoiceURL,
	})
	return nil
}

func formatAmount(minor int64, currency string) string {
	return fmt.Sprintf("%.2f %s", float64(minor)/100, strings.ToUpper(currency))
}
