package shipstation

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/madebyloom/loomline-backend/pkg/config"
)

func testConfig(baseURL string) config.ShippingConfig {
	return config.ShippingConfig{
		APIKey:         "key",
		APISecret:      "secret",
		BaseURL:        baseURL,
		RequestTimeout: 2 * time.Second,
	}
}

func TestNewClientRequiresCredentials(t *testing.T) {
	t.Parallel()

	_, err := NewClient(config.ShippingConfig{BaseURL: "https://ssapi.example.com"}, nil)
	require.Error(t, err)
}

func TestGetRates(t *testing.T) {
	t.Parallel()

	var captured RateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, ratesPath, r.URL.Path)

		user, pass, ok := r.BasicAuth()
		require.True(t, ok)
		require.Equal(t, "key", user)
		require.Equal(t, "secret", pass)

		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))

		json.NewEncoder(w).Encode([]Rate{
			{ServiceName: "USPS First Class", ServiceCode: "usps_first_class", ShipmentCost: 5.99, OtherCost: 0.5},
		})
	}))
	defer srv.Close()

	client, err := NewClient(testConfig(srv.URL), nil)
	require.NoError(t, err)

	rates, err := client.GetRates(context.Background(), RateRequest{
		CarrierCode:    "stamps_com",
		FromPostalCode: "97201",
		ToPostalCode:   "10001",
		Weight:         Weight{Value: 12, Units: "ounces"},
		Residential:    true,
	})
	require.NoError(t, err)
	require.Len(t, rates, 1)
	require.Equal(t, "usps_first_class", rates[0].ServiceCode)
	require.InDelta(t, 5.99, rates[0].ShipmentCost, 0.001)

	require.Equal(t, "stamps_com", captured.CarrierCode)
	require.Equal(t, "ounces", captured.Weight.Units)
}

func TestGetRatesNonOKStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"rate limit"}`, http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client, err := NewClient(testConfig(srv.URL), nil)
	require.NoError(t, err)

	_, err = client.GetRates(context.Background(), RateRequest{})
	require.ErrorContains(t, err, "unexpected status 429")
}
