package cart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/madebyloom/loomline-backend/pkg/config"
	"github.com/madebyloom/loomline-backend/pkg/db/models"
	"github.com/madebyloom/loomline-backend/pkg/enums"
	pkgerrors "github.com/madebyloom/loomline-backend/pkg/errors"
	"github.com/madebyloom/loomline-backend/pkg/logger"
	"github.com/madebyloom/loomline-backend/pkg/metrics"
	"github.com/madebyloom/loomline-backend/pkg/types"
)

// Warning texts surfaced alongside a successful mutation.
const (
	warnSnapshotCapacity = "cart too large to save; recent changes may not persist across sessions"
	warnSyncFailed       = "cart sync failed; showing guest cart"
)

// Session identifies the caller for cart operations. AccountID is nil for
// guests; ContextID is always present.
type Session struct {
	ContextID string
	AccountID *uuid.UUID
}

// Authenticated reports whether the session is bound to an account.
func (s Session) Authenticated() bool {
	return s.AccountID != nil
}

// View is the cart as returned to callers. Warning carries a non-fatal
// condition the storefront should surface without discarding the mutation.
type View struct {
	Items   []SnapshotItem `json:"items"`
	Warning string         `json:"warning,omitempty"`
}

// AddItemInput describes an add request.
type AddItemInput struct {
	ProductID     uuid.UUID
	Quantity      int
	Customization *types.Customization
}

type productCatalog interface {
	GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, error)
	ResolveProducts(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Product, error)
}

type priceQuoter interface {
	UnitPriceCents(basePriceCents int64, customization *types.Customization) int64
}

type guardStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Del(ctx context.Context, keys ...string) error
	SyncGuardKey(contextID, accountID string) string
	MutationGuardKey(contextID, kind string) string
}

// Service manages the two cart tiers: the guest snapshot keyed per browsing
// context and the authoritative per-account cart.
type Service interface {
	Get(ctx context.Context, sess Session) (*View, error)
	AddItem(ctx context.Context, sess Session, input AddItemInput) (*View, error)
	UpdateQuantity(ctx context.Context, sess Session, itemID uuid.UUID, quantity int) (*View, error)
	RemoveItem(ctx context.Context, sess Session, itemID uuid.UUID) (*View, error)
	Clear(ctx context.Context, sess Session) error
	SyncOnLogin(ctx context.Context, sess Session) (*View, error)
	HandleLogout(ctx context.Context, contextID string) error
	CleanupUnavailable(ctx context.Context, sess Session) (*View, []uuid.UUID, error)
}

type service struct {
	repo    Repository
	guests  *GuestStore
	catalog productCatalog
	pricing priceQuoter
	guards  guardStore
	meters  *metrics.Registry
	logg    *logger.Logger
	cfg     config.CartConfig
}

// NewService wires the cart service.
func NewService(
	repo Repository,
	guests *GuestStore,
	catalog productCatalog,
	pricing priceQuoter,
	guards guardStore,
	meters *metrics.Registry,
	logg *logger.Logger,
	cfg config.CartConfig,
) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if guests == nil {
		return nil, fmt.Errorf("guest store required")
	}
	if catalog == nil {
		return nil, fmt.Errorf("catalog required")
	}
	if pricing == nil {
		return nil, fmt.Errorf("price quoter required")
	}
	if guards == nil {
		return nil, fmt.Errorf("guard store required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:    repo,
		guests:  guests,
		catalog: catalog,
		pricing: pricing,
		guards:  guards,
		meters:  meters,
		logg:    logg,
		cfg:     cfg,
	}, nil
}

func (s *service) Get(ctx context.Context, sess Session) (*View, error) {
	if sess.Authenticated() {
		record, err := s.repo.FindByAccount(ctx, *sess.AccountID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return &View{}, nil
			}
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
		}
		return &View{Items: itemsFromRecord(record)}, nil
	}

	items, err := s.guests.Load(ctx, sess.ContextID)
	if err != nil {
		return nil, err
	}
	return &View{Items: items}, nil
}

// AddItem applies the slot semantics: customized items always open a new
// slot, plain items merge into an existing plain slot for the same product.
// The stock guard fails closed: an unverifiable stock level blocks the add.
func (s *service) AddItem(ctx context.Context, sess Session, input AddItemInput) (*View, error) {
	if input.ProductID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	if input.Quantity < 1 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	}

	release, err := s.acquireMutation(ctx, sess.ContextID, "add")
	if err != nil {
		return nil, err
	}
	defer release()

	product, err := s.loadProductForPurchase(ctx, input.ProductID)
	if err != nil {
		return nil, err
	}

	customized := input.Customization != nil
	unitPrice := s.pricing.UnitPriceCents(product.BasePriceCents, input.Customization)

	if sess.Authenticated() {
		return s.addToAccount(ctx, sess, product, input, customized, unitPrice)
	}
	return s.addToGuest(ctx, sess, product, input, customized, unitPrice)
}

func (s *service) addToAccount(
	ctx context.Context,
	sess Session,
	product *models.Product,
	input AddItemInput,
	customized bool,
	unitPrice int64,
) (*View, error) {
	record, err := s.repo.FindOrCreateByAccount(ctx, *sess.AccountID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}

	if !customized {
		if existing := findPlainItem(record.Items, product.ID); existing != nil {
			resulting := existing.Quantity + input.Quantity
			if err := checkStock(product, customized, resulting); err != nil {
				return nil, err
			}
			existing.Quantity = resulting
			if _, err := s.repo.UpdateItem(ctx, existing); err != nil {
				return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update cart item")
			}
			return s.Get(ctx, sess)
		}
	}

	if err := checkStock(product, customized, input.Quantity); err != nil {
		return nil, err
	}

	status := enums.ReviewStatusApproved
	if customized {
		status = enums.ReviewStatusPending
	}
	item := &models.CartItem{
		CartID:           record.ID,
		ProductID:        product.ID,
		Quantity:         input.Quantity,
		UnitPriceCents:   unitPrice,
		IsCustomCreation: product.IsCustomCreation,
		Customization:    input.Customization,
		ReviewStatus:     status,
	}
	if _, err := s.repo.CreateItem(ctx, item); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create cart item")
	}
	return s.Get(ctx, sess)
}

func (s *service) addToGuest(
	ctx context.Context,
	sess Session,
	product *models.Product,
	input AddItemInput,
	customized bool,
	unitPrice int64,
) (*View, error) {
	items, err := s.guests.Load(ctx, sess.ContextID)
	if err != nil {
		return nil, err
	}

	candidate := SnapshotItem{
		ProductID:        product.ID,
		Quantity:         input.Quantity,
		UnitPriceCents:   unitPrice,
		IsCustomCreation: product.IsCustomCreation,
		Customization:    input.Customization,
	}
	merged, resulting := addToItems(items, candidate)
	if err := checkStock(product, customized, resulting); err != nil {
		return nil, err
	}

	return s.saveGuest(ctx, sess.ContextID, merged)
}

// UpdateQuantity sets a slot's quantity. Zero removes the slot.
func (s *service) UpdateQuantity(ctx context.Context, sess Session, itemID uuid.UUID, quantity int) (*View, error) {
	if quantity < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity cannot be negative")
	}
	if quantity == 0 {
		return s.RemoveItem(ctx, sess, itemID)
	}

	release, err := s.acquireMutation(ctx, sess.ContextID, "update")
	if err != nil {
		return nil, err
	}
	defer release()

	if sess.Authenticated() {
		record, err := s.repo.FindByAccount(ctx, *sess.AccountID)
		if err != nil {
			return nil, cartLookupError(err)
		}
		item, err := s.repo.FindItem(ctx, record.ID, itemID)
		if err != nil {
			return nil, cartItemLookupError(err)
		}
		product, err := s.loadProductForPurchase(ctx, item.ProductID)
		if err != nil {
			return nil, err
		}
		if err := checkStock(product, item.Customized(), quantity); err != nil {
			return nil, err
		}
		item.Quantity = quantity
		if _, err := s.repo.UpdateItem(ctx, item); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update cart item")
		}
		return s.Get(ctx, sess)
	}

	items, err := s.guests.Load(ctx, sess.ContextID)
	if err != nil {
		return nil, err
	}
	idx := findByLocalID(items, itemID)
	if idx < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
	}
	product, err := s.loadProductForPurchase(ctx, items[idx].ProductID)
	if err != nil {
		return nil, err
	}
	if err := checkStock(product, items[idx].Customized(), quantity); err != nil {
		return nil, err
	}
	items[idx].Quantity = quantity
	return s.saveGuest(ctx, sess.ContextID, items)
}

func (s *service) RemoveItem(ctx context.Context, sess Session, itemID uuid.UUID) (*View, error) {
	release, err := s.acquireMutation(ctx, sess.ContextID, "remove")
	if err != nil {
		return nil, err
	}
	defer release()

	if sess.Authenticated() {
		record, err := s.repo.FindByAccount(ctx, *sess.AccountID)
		if err != nil {
			return nil, cartLookupError(err)
		}
		if err := s.repo.DeleteItem(ctx, record.ID, itemID); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "remove cart item")
		}
		return s.Get(ctx, sess)
	}

	items, err := s.guests.Load(ctx, sess.ContextID)
	if err != nil {
		return nil, err
	}
	idx := findByLocalID(items, itemID)
	if idx < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
	}
	items[idx].Quantity = 0
	return s.saveGuest(ctx, sess.ContextID, removeZeroQuantity(items))
}

func (s *service) Clear(ctx context.Context, sess Session) error {
	release, err := s.acquireMutation(ctx, sess.ContextID, "clear")
	if err != nil {
		return err
	}
	defer release()

	if sess.Authenticated() {
		record, err := s.repo.FindByAccount(ctx, *sess.AccountID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
		}
		if err := s.repo.ClearItems(ctx, record.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear cart")
		}
		return nil
	}
	return s.guests.Clear(ctx, sess.ContextID)
}

// SyncOnLogin merges the guest snapshot into the account cart exactly once
// per identity transition. A failed merge releases the one-shot guard so the
// next request retries, and the guest cart is served in the meantime.
func (s *service) SyncOnLogin(ctx context.Context, sess Session) (*View, error) {
	if !sess.Authenticated() {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "login sync requires an account")
	}
	ctx = s.logg.WithBrowsingContext(ctx, sess.ContextID)

	guestItems, err := s.guests.Load(ctx, sess.ContextID)
	if err != nil || len(guestItems) == 0 {
		if err != nil {
			s.logg.Warn(ctx, "guest cart unavailable during login sync")
		}
		return s.Get(ctx, sess)
	}

	guardKey := s.guards.SyncGuardKey(sess.ContextID, sess.AccountID.String())
	acquired, err := s.guards.SetNX(ctx, guardKey, time.Now().UTC().Format(time.RFC3339), s.cfg.SyncGuardTTL)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "acquire sync guard")
	}
	if !acquired {
		return s.Get(ctx, sess)
	}

	if err := s.mergeGuestIntoAccount(ctx, sess, guestItems); err != nil {
		// Release the guard so a later request can retry the sync.
		if delErr := s.guards.Del(ctx, guardKey); delErr != nil {
			s.logg.Error(ctx, "releasing sync guard", delErr)
		}
		s.countSync("failure")
		s.logg.Error(ctx, "login cart sync failed", err)
		return &View{Items: guestItems, Warning: warnSyncFailed}, nil
	}

	if err := s.guests.Clear(ctx, sess.ContextID); err != nil {
		s.logg.Warn(ctx, "clearing guest cart after sync")
	}
	s.countSync("success")
	s.logg.Info(ctx, "guest cart merged into account")
	return s.Get(ctx, sess)
}

func (s *service) mergeGuestIntoAccount(ctx context.Context, sess Session, guestItems []SnapshotItem) error {
	record, err := s.repo.FindOrCreateByAccount(ctx, *sess.AccountID)
	if err != nil {
		return err
	}

	for _, guest := range guestItems {
		if !guest.Customized() {
			if existing := findPlainItem(record.Items, guest.ProductID); existing != nil {
				existing.Quantity += guest.Quantity
				if _, err := s.repo.UpdateItem(ctx, existing); err != nil {
					return err
				}
				continue
			}
		}
		status := enums.ReviewStatusApproved
		if guest.Customized() {
			status = enums.ReviewStatusPending
		}
		item := &models.CartItem{
			CartID:           record.ID,
			ProductID:        guest.ProductID,
			Quantity:         guest.Quantity,
			UnitPriceCents:   guest.UnitPriceCents,
			IsCustomCreation: guest.IsCustomCreation,
			Customization:    guest.Customization,
			ReviewStatus:     status,
		}
		if _, err := s.repo.CreateItem(ctx, item); err != nil {
			return err
		}
	}
	return nil
}

// HandleLogout drops the guest-tier snapshot so the next guest session on
// this browsing context starts empty.
func (s *service) HandleLogout(ctx context.Context, contextID string) error {
	return s.guests.Clear(ctx, contextID)
}

// CleanupUnavailable removes slots whose product no longer exists or is
// inactive. Made-to-order items are retained regardless of catalog state.
// Removal failures are collected; cleanup keeps going.
func (s *service) CleanupUnavailable(ctx context.Context, sess Session) (*View, []uuid.UUID, error) {
	view, err := s.Get(ctx, sess)
	if err != nil {
		return nil, nil, err
	}
	if len(view.Items) == 0 {
		return view, nil, nil
	}

	ids := make([]uuid.UUID, 0, len(view.Items))
	for _, item := range view.Items {
		ids = append(ids, item.ProductID)
	}
	resolved, err := s.catalog.ResolveProducts(ctx, ids)
	if err != nil {
		return nil, nil, err
	}

	var removed []uuid.UUID
	var removeErr error
	kept := make([]SnapshotItem, 0, len(view.Items))
	for _, item := range view.Items {
		if item.IsCustomCreation {
			kept = append(kept, item)
			continue
		}
		product, ok := resolved[item.ProductID]
		if ok && product.IsActive {
			kept = append(kept, item)
			continue
		}
		if sess.Authenticated() {
			record, err := s.repo.FindByAccount(ctx, *sess.AccountID)
			if err != nil {
				removeErr = multierr.Append(removeErr, err)
				kept = append(kept, item)
				continue
			}
			if err := s.repo.DeleteItem(ctx, record.ID, item.LocalID); err != nil {
				removeErr = multierr.Append(removeErr, err)
				kept = append(kept, item)
				continue
			}
		}
		removed = append(removed, item.LocalID)
	}

	if !sess.Authenticated() && len(removed) > 0 {
		if err := s.guests.Save(ctx, sess.ContextID, kept); err != nil {
			removeErr = multierr.Append(removeErr, err)
		}
	}

	if removeErr != nil {
		return &View{Items: kept}, removed, pkgerrors.Wrap(pkgerrors.CodeDependency, removeErr, "cart cleanup incomplete")
	}
	return &View{Items: kept}, removed, nil
}

// saveGuest persists the snapshot; a capacity rejection downgrades to a
// warning so the in-memory mutation still reaches the caller.
func (s *service) saveGuest(ctx context.Context, contextID string, items []SnapshotItem) (*View, error) {
	if err := s.guests.Save(ctx, contextID, items); err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeCapacity) {
			s.logg.Warn(s.logg.WithBrowsingContext(ctx, contextID), "guest cart snapshot over capacity")
			return &View{Items: items, Warning: warnSnapshotCapacity}, nil
		}
		return nil, err
	}
	return &View{Items: items}, nil
}

// loadProductForPurchase fetches the product and fails closed when the
// catalog cannot answer.
func (s *service) loadProductForPurchase(ctx context.Context, productID uuid.UUID) (*models.Product, error) {
	product, err := s.catalog.GetProduct(ctx, productID)
	if err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) || pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
			return nil, err
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "unable to verify stock")
	}
	if !product.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "product is no longer available")
	}
	return product, nil
}

func (s *service) acquireMutation(ctx context.Context, contextID, kind string) (func(), error) {
	key := s.guards.MutationGuardKey(contextID, kind)
	acquired, err := s.guards.SetNX(ctx, key, "1", s.cfg.MutationInFlightGuard)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "acquire cart mutation guard")
	}
	if !acquired {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "another cart update is in progress")
	}
	return func() {
		if err := s.guards.Del(ctx, key); err != nil {
			s.logg.Warn(ctx, "releasing cart mutation guard")
		}
	}, nil
}

func (s *service) countSync(result string) {
	if s.meters != nil {
		s.meters.CartSyncs.WithLabelValues(result).Inc()
	}
}

// checkStock enforces the availability rule for the resulting slot quantity.
// Customized purchases are produced on demand and skip the stock guard.
func checkStock(product *models.Product, customized bool, resultingQty int) error {
	if customized || product.IsCustomCreation {
		return nil
	}
	stock := product.AvailableStock()
	if stock <= 0 {
		return pkgerrors.New(pkgerrors.CodeConflict, "out of stock")
	}
	if resultingQty > stock {
		return pkgerrors.New(pkgerrors.CodeConflict, fmt.Sprintf("only %d in stock", stock))
	}
	return nil
}

func findPlainItem(items []models.CartItem, productID uuid.UUID) *models.CartItem {
	for i := range items {
		if items[i].ProductID == productID && !items[i].Customized() {
			return &items[i]
		}
	}
	return nil
}

func findByLocalID(items []SnapshotItem, id uuid.UUID) int {
	for i := range items {
		if items[i].LocalID == id {
			return i
		}
	}
	return -1
}

func itemsFromRecord(record *models.CartRecord) []SnapshotItem {
	if record == nil {
		return nil
	}
	items := make([]SnapshotItem, 0, len(record.Items))
	for _, item := range record.Items {
		items = append(items, SnapshotItem{
			LocalID:          item.ID,
			ProductID:        item.ProductID,
			Quantity:         item.Quantity,
			UnitPriceCents:   item.UnitPriceCents,
			IsCustomCreation: item.IsCustomCreation,
			Customization:    item.Customization,
		})
	}
	return items
}

func cartLookupError(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "cart not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
}

func cartItemLookupError(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart item")
}
