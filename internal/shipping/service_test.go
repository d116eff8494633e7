package shipping

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/madebyloom/loomline-backend/pkg/config"
	pkgerrors "github.com/madebyloom/loomline-backend/pkg/errors"
	"github.com/madebyloom/loomline-backend/pkg/logger"
	"github.com/madebyloom/loomline-backend/pkg/shipstation"
	"github.com/madebyloom/loomline-backend/pkg/types"
)

type stubFetcher struct {
	mu    sync.Mutex
	rates []shipstation.Rate
	err   error
	delay time.Duration
	calls int
}

func (s *stubFetcher) GetRates(ctx context.Context, _ shipstation.RateRequest) ([]shipstation.Rate, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	if s.delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(s.delay):
		}
	}
	if s.err != nil {
		return nil, s.err
	}
	return s.rates, nil
}

func testShippingConfig() config.ShippingConfig {
	return config.ShippingConfig{
		CarrierCode:       "stamps_com",
		OriginPostalCode:  "97201",
		DebounceWindow:    0,
		FallbackCostCents: 1299,
		FallbackDays:      7,
	}
}

func testAddress() types.Address {
	return types.Address{
		Line1:      "123 Main St",
		City:       "Portland",
		State:      "OR",
		PostalCode: "97201",
	}
}

func newShippingService(t *testing.T, fetcher rateFetcher, cfg config.ShippingConfig) Service {
	t.Helper()
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	svc, err := NewService(fetcher, nil, logg, cfg)
	if err != nil {
		t.Fatalf("service: %v", err)
	}
	return svc
}

func TestGetRatesKeepsCarrierOrderAndRecommendsFirst(t *testing.T) {
	t.Parallel()

	fetcher := &stubFetcher{rates: []shipstation.Rate{
		{ServiceName: "Priority", ServiceCode: "usps_priority", ShipmentCost: 9.45, OtherCost: 0.50},
		{ServiceName: "First Class", ServiceCode: "usps_first_class", ShipmentCost: 5.99, OtherCost: 0},
	}}
	svc := newShippingService(t, fetcher, testShippingConfig())

	result, err := svc.GetRates(context.Background(), Query{Address: testAddress(), WeightOz: 8})
	if err != nil {
		t.Fatalf("get rates: %v", err)
	}
	if result.Fallback {
		t.Fatal("unexpected fallback")
	}
	if len(result.Rates) != 2 {
		t.Fatalf("got %d rates, want 2", len(result.Rates))
	}
	if result.Rates[0].ServiceCode != "usps_priority" {
		t.Fatalf("carrier order not preserved, got %s first", result.Rates[0].ServiceCode)
	}
	if result.Rates[0].TotalCostCents != 995 {
		t.Fatalf("priority total = %d, want 995", result.Rates[0].TotalCostCents)
	}
	if result.Rates[1].TotalCostCents != 599 {
		t.Fatalf("first class total = %d, want 599", result.Rates[1].TotalCostCents)
	}
	if result.Rates[1].Carrier != "stamps_com" {
		t.Fatalf("carrier = %s", result.Rates[1].Carrier)
	}
	if result.Recommended == nil || result.Recommended.ServiceCode != "usps_priority" {
		t.Fatalf("recommended = %+v, want the carrier's first quote", result.Recommended)
	}
}

func TestGetRatesRejectsEmptyParcel(t *testing.T) {
	t.Parallel()

	svc := newShippingService(t, &stubFetcher{}, testShippingConfig())

	_, err := svc.GetRates(context.Background(), Query{Address: testAddress()})
	if !pkgerrors.IsCode(err, pkgerrors.CodeInternal) {
		t.Fatalf("expected internal error, got %v", err)
	}
}

func TestGetRatesRequiresCompleteAddress(t *testing.T) {
	t.Parallel()

	svc := newShippingService(t, &stubFetcher{}, testShippingConfig())

	_, err := svc.GetRates(context.Background(), Query{Address: types.Address{City: "Portland"}})
	if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestCarrierOutageServesFallback(t *testing.T) {
	t.Parallel()

	fetcher := &stubFetcher{err: errors.New("carrier down")}
	svc := newShippingService(t, fetcher, testShippingConfig())

	result, err := svc.GetRates(context.Background(), Query{Address: testAddress(), WeightOz: 8})
	if err != nil {
		t.Fatalf("fallback should not error: %v", err)
	}
	if !result.Fallback || result.Warning == "" {
		t.Fatalf("expected fallback with warning, got %+v", result)
	}
	if len(result.Rates) != 1 {
		t.Fatalf("got %d rates, want 1", len(result.Rates))
	}
	rate := result.Rates[0]
	if rate.TotalCostCents != 1299 || rate.ServiceCode != "standard_fallback" {
		t.Fatalf("unexpected fallback rate: %+v", rate)
	}
	if rate.EstimatedDeliveryDays == nil || *rate.EstimatedDeliveryDays != 7 {
		t.Fatalf("unexpected delivery estimate: %+v", rate.EstimatedDeliveryDays)
	}
}

func TestEmptyRateListServesFallback(t *testing.T) {
	t.Parallel()

	svc := newShippingService(t, &stubFetcher{}, testShippingConfig())

	result, err := svc.GetRates(context.Background(), Query{Address: testAddress(), WeightOz: 8})
	if err != nil {
		t.Fatalf("get rates: %v", err)
	}
	if !result.Fallback {
		t.Fatal("expected fallback for empty rate list")
	}
}

func TestNewerRequestSupersedesInFlight(t *testing.T) {
	t.Parallel()

	fetcher := &stubFetcher{
		rates: []shipstation.Rate{{ServiceName: "Priority", ServiceCode: "usps_priority", ShipmentCost: 9.45}},
		delay: 50 * time.Millisecond,
	}
	svc := newShippingService(t, fetcher, testShippingConfig())
	query := Query{Address: testAddress(), WeightOz: 8}

	firstErr := make(chan error, 1)
	go func() {
		_, err := svc.GetRates(context.Background(), query)
		firstErr <- err
	}()

	// Let the first lookup reach the carrier, then issue a newer one.
	time.Sleep(10 * time.Millisecond)
	result, err := svc.GetRates(context.Background(), query)
	if err != nil {
		t.Fatalf("latest request must win: %v", err)
	}
	if len(result.Rates) != 1 {
		t.Fatalf("unexpected result: %+v", result)
	}

	if err := <-firstErr; !errors.Is(err, ErrSuperseded) {
		t.Fatalf("stale request should be superseded, got %v", err)
	}
}

func TestDebounceDefersOnlyRapidRepeats(t *testing.T) {
	t.Parallel()

	d := newDispatcher(40 * time.Millisecond)

	if _, hold := d.begin("97201|portland|or|8.0"); hold != 0 {
		t.Fatalf("first request should not wait, got %v", hold)
	}
	if _, hold := d.begin("97201|portland|or|8.0"); hold == 0 {
		t.Fatal("rapid repeat should be deferred")
	}
	if _, hold := d.begin("10001|new york|ny|8.0"); hold != 0 {
		t.Fatalf("other destination should not wait, got %v", hold)
	}

	time.Sleep(60 * time.Millisecond)
	if _, hold := d.begin("97201|portland|or|8.0"); hold != 0 {
		t.Fatalf("request after a quiet window should not wait, got %v", hold)
	}
}

func TestSingleRequestDoesNotWaitOutWindow(t *testing.T) {
	t.Parallel()

	cfg := testShippingConfig()
	cfg.DebounceWindow = 400 * time.Millisecond
	fetcher := &stubFetcher{rates: []shipstation.Rate{{ServiceName: "Priority", ServiceCode: "usps_priority", ShipmentCost: 9.45}}}
	svc := newShippingService(t, fetcher, cfg)

	start := time.Now()
	if _, err := svc.GetRates(context.Background(), Query{Address: testAddress(), WeightOz: 8}); err != nil {
		t.Fatalf("get rates: %v", err)
	}
	if elapsed := time.Since(start); elapsed >= cfg.DebounceWindow {
		t.Fatalf("lone lookup waited out the window: %v", elapsed)
	}
}

func TestDifferentDestinationsDoNotCoalesce(t *testing.T) {
	t.Parallel()

	fetcher := &stubFetcher{rates: []shipstation.Rate{{ServiceName: "Priority", ShipmentCost: 9.45}}}
	svc := newShippingService(t, fetcher, testShippingConfig())

	other := testAddress()
	other.PostalCode = "10001"

	if _, err := svc.GetRates(context.Background(), Query{Address: testAddress(), WeightOz: 8}); err != nil {
		t.Fatalf("first: %v", err)
	}
	if _, err := svc.GetRates(context.Background(), Query{Address: other, WeightOz: 8}); err != nil {
		t.Fatalf("second: %v", err)
	}
}
