package payment

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jcq/jcq-api/internal/domain/catalog"
	"github.com/jcq/jcq-api/internal/domain/purchase"
	"github.com/jcq/jcq-api/internal/domain/settings"
	"github.com/jcq/jcq-api/internal/pkg/apperror"
	"github.com/jcq/jcq-api/internal/pkg/eventcache"
	"github.com/jcq/jcq-api/internal/pkg/logger"
	"github.com/jcq/jcq-api/internal/pkg/paygate"
	"github.com/jcq/jcq-api/internal/pkg/storage"
)

const archiveTimeout = 10 * time.Second

// Gateway creates hosted checkout sessions.
type Gateway interface {
	CreateCheckout(ctx context.Context, apiKey string, req paygate.CheckoutRequest) (*paygate.CheckoutSession, error)
}

// Credentials supplies the current gateway credentials and redirect URLs.
type Credentials interface {
	PaymentSettings(ctx context.Context) (*settings.PaymentSettings, error)
}

// EntitlementChecker answers whether an actor already owns some content.
type EntitlementChecker interface {
	HasCompletedCovering(ctx context.Context, actorID uuid.UUID, scope purchase.Scope) (bool, error)
}

// Deps are the collaborators of Service. Archive may be nil to disable the
// webhook archive; Notifier may be nil.
type Deps struct {
	Repo        Repository
	Catalog     catalog.Repository
	Purchases   EntitlementChecker
	Gateway     Gateway
	Credentials Credentials
	Events      eventcache.Cache
	Archive     storage.Storage
	Notifier    purchase.Notifier
}

// Service handles checkout creation and webhook settlement
type Service struct {
	repo        Repository
	catalog     catalog.Repository
	purchases   EntitlementChecker
	gateway     Gateway
	credentials Credentials
	events      eventcache.Cache
	archive     storage.Storage
	notifier    purchase.Notifier
	now         func() time.Time

	archiving sync.WaitGroup
}

// NewService creates payment service
func NewService(d Deps) *Service {
	notifier := d.Notifier
	if notifier == nil {
		notifier = purchase.NopNotifier{}
	}
	return &Service{
		repo:        d.Repo,
		catalog:     d.Catalog,
		purchases:   d.Purchases,
		gateway:     d.Gateway,
		credentials: d.Credentials,
		events:      d.Events,
		archive:     d.Archive,
		notifier:    notifier,
		now:         time.Now,
	}
}

// offer is what a checkout sells: scope, price and gateway product.
type offer struct {
	scope     purchase.Scope
	amount    decimal.Decimal
	currency  string
	productID string
}

func (s *Service) resolveOffer(ctx context.Context, req *CheckoutRequest) (*offer, error) {
	game, err := s.catalog.GetGame(ctx, req.GameID)
	if err != nil {
		return nil, err
	}
	if game.IsFree() {
		return nil, purchase.ErrFreeContent
	}

	if req.ChapterID == nil {
		if !game.Price.Valid || game.Price.Decimal.Sign() <= 0 {
			return nil, apperror.WithMessage(ErrNotPurchasable, "game has no price")
		}
		if game.GatewayProductID == nil || *game.GatewayProductID == "" {
			return nil, ErrNoProduct
		}
		return &offer{
			scope:     purchase.GameScope(game.ID),
			amount:    game.Price.Decimal,
			currency:  game.Currency,
			productID: *game.GatewayProductID,
		}, nil
	}

	if game.PricingType != catalog.PricingPerChapter {
		return nil, apperror.WithMessage(ErrNotPurchasable, "chapters of this game are not sold separately")
	}
	chapter, open, err := catalog.SellableChapter(ctx, s.catalog, game, *req.ChapterID)
	if err != nil {
		return nil, err
	}
	if open {
		return nil, purchase.ErrFreeContent
	}
	if !chapter.Price.Valid || chapter.Price.Decimal.Sign() <= 0 {
		return nil, apperror.WithMessage(ErrNotPurchasable, "chapter has no price")
	}
	if chapter.GatewayProductID == nil || *chapter.GatewayProductID == "" {
		return nil, ErrNoProduct
	}

	return &offer{
		scope:     purchase.ChapterScope(game.ID, chapter.ID),
		amount:    chapter.Price.Decimal,
		currency:  game.Currency,
		productID: *chapter.GatewayProductID,
	}, nil
}

// CreateCheckout opens a pending transaction and a hosted checkout session
// for it. Gateway failures are surfaced, never retried.
func (s *Service) CreateCheckout(ctx context.Context, actorID uuid.UUID, req *CheckoutRequest) (*CheckoutResponse, error) {
	o, err := s.resolveOffer(ctx, req)
	if err != nil {
		return nil, err
	}

	covered, err := s.purchases.HasCompletedCovering(ctx, actorID, o.scope)
	if err != nil {
		return nil, err
	}
	if covered {
		return nil, purchase.ErrAlreadyEntitled
	}

	creds, err := s.credentials.PaymentSettings(ctx)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	t := &Transaction{
		ID:        uuid.New(),
		ActorID:   actorID,
		GameID:    o.scope.GameID,
		ChapterID: o.scope.ChapterID,
		Amount:    o.amount,
		Currency:  o.currency,
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Create(ctx, t); err != nil {
		return nil, err
	}

	metadata := map[string]string{
		"transactionId": t.ID.String(),
		"actorId":       actorID.String(),
		"gameId":        t.GameID.String(),
	}
	if t.ChapterID != nil {
		metadata["chapterId"] = t.ChapterID.String()
	}

	session, err := s.gateway.CreateCheckout(ctx, creds.GatewayAPIKey, paygate.CheckoutRequest{
		ProductID:         o.productID,
		Quantity:          1,
		SuccessURL:        creds.SuccessURL,
		CancelURL:         creds.CancelURL,
		ClientReferenceID: actorID.String(),
		Metadata:          metadata,
	})
	if err != nil {
		logger.LogError(ctx, err, "Checkout session creation failed",
			"transaction_id", t.ID, "actor_id", actorID, "game_id", t.GameID)
		return nil, err
	}

	if err := s.repo.SetCheckoutSession(ctx, t.ID, session.ID); err != nil {
		return nil, err
	}

	logger.LogInfo(ctx, "Checkout session created",
		"transaction_id", t.ID, "actor_id", actorID, "game_id", t.GameID,
		"chapter_id", t.ChapterID, "amount", t.Amount.String())

	return &CheckoutResponse{
		TransactionID: t.ID,
		CheckoutURL:   session.URL,
		Amount:        t.Amount,
		Currency:      t.Currency,
	}, nil
}

// TransactionStatus reports a transaction of actorID and whether its
// entitlement is visible yet.
func (s *Service) TransactionStatus(ctx context.Context, actorID, id uuid.UUID) (*StatusResponse, error) {
	t, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if t.ActorID != actorID {
		return nil, ErrTransactionNotFound
	}

	resp := &StatusResponse{
		TransactionID: t.ID,
		Status:        t.Status,
		GameID:        t.GameID,
		ChapterID:     t.ChapterID,
		Amount:        t.Amount,
		Currency:      t.Currency,
	}
	if t.IsCompleted() {
		resp.EntitlementGranted, err = s.purchases.HasCompletedCovering(ctx, actorID, t.Scope())
		if err != nil {
			return nil, err
		}
	}
	return resp, nil
}

// HandleWebhook verifies and processes one gateway delivery. Only a bad
// signature or unreadable credentials produce an error; once the
// signature has passed every outcome is acknowledged and failures are
// logged.
func (s *Service) HandleWebhook(ctx context.Context, body []byte, signature string) error {
	creds, err := s.credentials.PaymentSettings(ctx)
	if err != nil {
		return err
	}
	if !paygate.VerifySignature(body, signature, creds.WebhookSecret) {
		if creds.WebhookSecret == "" {
			logger.LogWarn(ctx, "Webhook rejected: webhook secret is not configured")
		}
		return ErrInvalidSignature
	}

	s.process(ctx, body)
	return nil
}

func (s *Service) process(ctx context.Context, body []byte) {
	receivedAt := s.now().UTC()

	event, err := paygate.ParseEvent(body)
	if err != nil {
		logger.LogError(ctx, err, "Webhook envelope rejected")
		s.archiveBody(ctx, receivedAt, "", body)
		return
	}
	s.archiveBody(ctx, receivedAt, event.ID, body)

	if event.ID != "" {
		fresh, err := s.events.MarkIfAbsent(ctx, event.ID)
		switch {
		case err != nil:
			// The durable check still guards settlement.
			logger.LogWarn(ctx, "Webhook event cache unavailable", "event_id", event.ID, "error", err.Error())
		case !fresh:
			logger.LogInfo(ctx, "Duplicate webhook event acknowledged", "event_id", event.ID, "event_type", event.Type)
			return
		}
	}

	if !paygate.IsPaymentConfirmed(event.Type) {
		logger.LogInfo(ctx, "Webhook event ignored", "event_id", event.ID, "event_type", event.Type)
		return
	}

	if err := s.settle(ctx, event, body, receivedAt); err != nil {
		logger.LogError(ctx, err, "Webhook settlement failed", "event_id", event.ID, "event_type", event.Type)
		if event.ID != "" {
			if ferr := s.events.Forget(ctx, event.ID); ferr != nil {
				logger.LogWarn(ctx, "Webhook event cache forget failed", "event_id", event.ID, "error", ferr.Error())
			}
		}
	}
}

func (s *Service) settle(ctx context.Context, event *paygate.Event, body []byte, at time.Time) error {
	data, err := event.Payment()
	if err != nil {
		return err
	}

	t, err := s.findTransaction(ctx, event, data)
	if err != nil {
		return err
	}

	p, err := s.repo.Complete(ctx, t.ID, Settlement{PaymentRef: event.PaymentRef(data), Payload: body, At: at})
	if err != nil {
		return err
	}
	if p == nil {
		logger.LogInfo(ctx, "Transaction already completed", "transaction_id", t.ID, "event_id", event.ID)
		return nil
	}

	logger.LogInfo(ctx, "Online purchase granted",
		"purchase_id", p.ID, "transaction_id", t.ID, "actor_id", p.ActorID,
		"game_id", p.GameID, "chapter_id", p.ChapterID, "event_id", event.ID)
	s.notifier.EntitlementGranted(ctx, p)
	return nil
}

// findTransaction prefers the transactionId metadata and falls back to the
// checkout session id.
func (s *Service) findTransaction(ctx context.Context, event *paygate.Event, data *paygate.PaymentData) (*Transaction, error) {
	if raw := data.TransactionID(); raw != "" {
		id, err := uuid.Parse(raw)
		if err == nil {
			t, err := s.repo.GetByID(ctx, id)
			if err == nil {
				return t, nil
			}
			if !errors.Is(err, ErrTransactionNotFound) {
				return nil, err
			}
		}
	}

	sessionID := event.SessionID(data)
	if sessionID == "" {
		return nil, fmt.Errorf("event %s references no transaction: %w", event.ID, ErrTransactionNotFound)
	}
	return s.repo.GetBySessionID(ctx, sessionID)
}

// archiveBody stores the raw body in the background. Failures are logged
// only.
func (s *Service) archiveBody(ctx context.Context, receivedAt time.Time, eventID string, body []byte) {
	if s.archive == nil {
		return
	}
	key := storage.WebhookKey(receivedAt, eventID)
	payload := append([]byte(nil), body...)
	log := logger.FromContext(ctx)

	s.archiving.Add(1)
	go func() {
		defer s.archiving.Done()
		actx, cancel := context.WithTimeout(context.WithoutCancel(ctx), archiveTimeout)
		defer cancel()
		if err := s.archive.Put(actx, key, bytes.NewReader(payload), "application/json"); err != nil {
			log.Warn().Err(err).Str("key", key).Msg("Webhook archive failed")
		}
	}()
}

// Drain waits for pending webhook archive writes.
func (s *Service) Drain() {
	s.archiving.Wait()
}
