package shipstation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/madebyloom/loomline-backend/pkg/config"
	"github.com/madebyloom/loomline-backend/pkg/logger"
)

const ratesPath = "/shipments/getrates"

var errCredentialsRequired = errors.New("shipstation api key and secret are required")

// Client is a thin wrapper over the ShipStation rates endpoint. ShipStation
// publishes no Go SDK, so this stays a plain REST client.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	apiSecret  string
}

// RateRequest mirrors the getrates payload.
type RateRequest struct {
	CarrierCode    string  `json:"carrierCode"`
	FromPostalCode string  `json:"fromPostalCode"`
	ToCity         string  `json:"toCity"`
	ToState        string  `json:"toState"`
	ToPostalCode   string  `json:"toPostalCode"`
	ToCountry      string  `json:"toCountry"`
	Weight         Weight  `json:"weight"`
	Residential    bool    `json:"residential"`
}

// Weight is the parcel weight in the unit ShipStation expects.
type Weight struct {
	Value float64 `json:"value"`
	Units string  `json:"units"`
}

// Rate is one quoted service. Costs are dollars as returned by the API.
type Rate struct {
	ServiceName  string  `json:"serviceName"`
	ServiceCode  string  `json:"serviceCode"`
	ShipmentCost float64 `json:"shipmentCost"`
	OtherCost    float64 `json:"otherCost"`
}

// NewClient builds a rates client from configuration.
func NewClient(cfg config.ShippingConfig, logg *logger.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" || strings.TrimSpace(cfg.APISecret) == "" {
		return nil, errCredentialsRequired
	}
	return &Client{
		httpClient: &http.Client{Timeout: cfg.RequestTimeout},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		apiSecret:  cfg.APISecret,
	}, nil
}

// GetRates quotes every available service for the given destination/weight.
func (c *Client) GetRates(ctx context.Context, req RateRequest) ([]Rate, error) {
	if c == nil || c.httpClient == nil {
		return nil, errors.New("shipstation client not initialized")
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encoding rate request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+ratesPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building rate request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.SetBasicAuth(c.apiKey, c.apiSecret)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("rate request: %w", err)
	}
	defer func() {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("rate request: unexpected status %d", resp.StatusCode)
	}

	var rates []Rate
	if err := json.NewDecoder(resp.Body).Decode(&rates); err != nil {
		return nil, fmt.Errorf("decoding rate response: %w", err)
	}
	return rates, nil
}
