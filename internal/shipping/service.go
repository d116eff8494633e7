package shipping

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/madebyloom/loomline-backend/pkg/config"
	pkgerrors "github.com/madebyloom/loomline-backend/pkg/errors"
	"github.com/madebyloom/loomline-backend/pkg/logger"
	"github.com/madebyloom/loomline-backend/pkg/metrics"
	"github.com/madebyloom/loomline-backend/pkg/shipstation"
	"github.com/madebyloom/loomline-backend/pkg/types"
)

const warnFallbackRate = "live shipping rates unavailable; showing standard rate"

// ErrSuperseded is returned when a newer rate request for the same
// destination arrived while this one was in flight.
var ErrSuperseded = pkgerrors.New(pkgerrors.CodeConflict, "rate request superseded")

// Query is one rate lookup: a complete destination plus the parcel weight.
type Query struct {
	Address  types.Address
	WeightOz float64
}

// Result carries the quoted rates in the carrier's order. Recommended is the
// carrier's first quote. Fallback marks the synthetic rate served when the
// carrier API could not answer.
type Result struct {
	Rates       []types.ShippingRate `json:"rates"`
	Recommended *types.ShippingRate  `json:"recommended,omitempty"`
	Warning     string               `json:"warning,omitempty"`
	Fallback    bool                 `json:"fallback"`
}

type rateFetcher interface {
	GetRates(ctx context.Context, req shipstation.RateRequest) ([]shipstation.Rate, error)
}

// Service quotes shipping rates for a destination. Lookups never hard-fail
// the checkout: an unreachable carrier degrades to a flat fallback rate.
type Service interface {
	GetRates(ctx context.Context, query Query) (*Result, error)
}

type service struct {
	fetcher rateFetcher
	disp    *dispatcher
	meters  *metrics.Registry
	logg    *logger.Logger
	cfg     config.ShippingConfig
}

// NewService wires the rate service.
func NewService(fetcher rateFetcher, meters *metrics.Registry, logg *logger.Logger, cfg config.ShippingConfig) (Service, error) {
	if fetcher == nil {
		return nil, fmt.Errorf("rate fetcher required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		fetcher: fetcher,
		disp:    newDispatcher(cfg.DebounceWindow),
		meters:  meters,
		logg:    logg,
		cfg:     cfg,
	}, nil
}

// GetRates validates the destination and quotes the carrier. Rapid repeat
// lookups for the same destination coalesce: a repeat arriving within the
// debounce window is deferred, and only the latest request survives, earlier
// in-flight ones return ErrSuperseded.
func (s *service) GetRates(ctx context.Context, query Query) (*Result, error) {
	if !query.Address.Complete() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "complete shipping address required")
	}
	// A quote without a parcel is a caller bug, not a user input problem.
	if query.WeightOz <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "rate query missing items")
	}

	key := queryKey(query)
	token, hold := s.disp.begin(key)
	if err := s.disp.wait(ctx, hold); err != nil {
		return nil, err
	}
	if !s.disp.current(key, token) {
		return nil, ErrSuperseded
	}

	rates, err := s.fetcher.GetRates(ctx, s.carrierRequest(query))
	if !s.disp.current(key, token) {
		return nil, ErrSuperseded
	}
	if err != nil || len(rates) == 0 {
		if err != nil {
			s.logg.Error(ctx, "carrier rate lookup failed", err)
		}
		return s.fallbackResult(), nil
	}

	// Carrier ordering is preserved: its first quote is the recommendation.
	normalized := make([]types.ShippingRate, 0, len(rates))
	for _, rate := range rates {
		normalized = append(normalized, s.normalize(rate))
	}
	return &Result{Rates: normalized, Recommended: &normalized[0]}, nil
}

func (s *service) carrierRequest(query Query) shipstation.RateRequest {
	weight := query.WeightOz
	if weight < 1 {
		weight = 1
	}
	return shipstation.RateRequest{
		CarrierCode:    s.cfg.CarrierCode,
		FromPostalCode: s.cfg.OriginPostalCode,
		ToCity:         query.Address.City,
		ToState:        query.Address.State,
		ToPostalCode:   query.Address.PostalCode,
		ToCountry:      query.Address.CountryOrDefault(),
		Weight:         shipstation.Weight{Value: weight, Units: "ounces"},
		Residential:    true,
	}
}

// normalize converts the carrier's dollar amounts to cents and recomputes
// the total from its parts.
func (s *service) normalize(rate shipstation.Rate) types.ShippingRate {
	out := types.ShippingRate{
		ServiceName:       rate.ServiceName,
		ServiceCode:       rate.ServiceCode,
		Carrier:           s.cfg.CarrierCode,
		ShipmentCostCents: dollarsToCents(rate.ShipmentCost),
		OtherCostCents:    dollarsToCents(rate.OtherCost),
	}
	out.Normalize()
	return out
}

func (s *service) fallbackResult() *Result {
	if s.meters != nil {
		s.meters.ShippingFallbacks.Inc()
	}
	days := s.cfg.FallbackDays
	rate := types.ShippingRate{
		ServiceName:           "Standard Shipping",
		ServiceCode:           "standard_fallback",
		Carrier:               s.cfg.CarrierCode,
		ShipmentCostCents:     s.cfg.FallbackCostCents,
		EstimatedDeliveryDays: &days,
	}
	rate.Normalize()
	return &Result{
		Rates:       []types.ShippingRate{rate},
		Recommended: &rate,
		Warning:     warnFallbackRate,
		Fallback:    true,
	}
}

func dollarsToCents(dollars float64) int64 {
	return decimal.NewFromFloat(dollars).Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

func queryKey(query Query) string {
	return strings.ToLower(strings.Join([]string{
		query.Address.PostalCode,
		query.Address.City,
		query.Address.State,
		fmt.Sprintf("%.1f", query.WeightOz),
	}, "|"))
}
