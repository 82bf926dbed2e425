package bybit

import (
	"context"
	"encoding/json"
	"fmt"

	bybit_api "github.com/bybit-exchange/bybit.go.api"
)

// OrderSide represents the side of an order
type OrderSide string

const (
	OrderSideBuy  OrderSide = "Buy"
	OrderSideSell OrderSide = "Sell"
)

// OrderResult carries the fields of a placed order the adapter needs to
// confirm execution.
type OrderResult struct {
	OrderID     string `json:"orderId"`
	OrderLinkID string `json:"orderLinkId"`
}

// PlaceMarketOrder places a market order and returns the exchange order id.
func (c *Client) PlaceMarketOrder(ctx context.Context, category, symbol string, side OrderSide, qty string) (*OrderResult, error) {
	if category == "" {
		category = "spot"
	}
	if symbol == "" {
		return nil, fmt.Errorf("symbol is required")
	}
	if qty == "" {
		return nil, fmt.Errorf("qty is required")
	}

	apiParams := map[string]interface{}{
		"category":  category,
		"symbol":    symbol,
		"side":      string(side),
		"orderType": "Market",
		"qty":       qty,
	}
	if category == "spot" {
		// Size spot market orders in base units so qty means shares, not
		// quote currency.
		apiParams["marketUnit"] = "baseCoin"
	}

	result, err := c.httpClient.NewUtaBybitServiceWithParams(apiParams).PlaceOrder(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to place order: %w", err)
	}

	order, err := c.parseOrderResponse(result)
	if err != nil {
		return nil, fmt.Errorf("failed to parse order response: %w", err)
	}

	return order, nil
}

// parseOrderResponse parses the place-order API response
func (c *Client) parseOrderResponse(response interface{}) (*OrderResult, error) {
	serverResp, ok := response.(*bybit_api.ServerResponse)
	if !ok {
		return nil, fmt.Errorf("invalid response type")
	}

	if serverResp.RetCode != 0 {
		return nil, fmt.Errorf("API error: %s (code: %d)", serverResp.RetMsg, serverResp.RetCode)
	}

	resultBytes, err := json.Marshal(serverResp.Result)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal result: %w", err)
	}

	var order OrderResult
	if err := json.Unmarshal(resultBytes, &order); err != nil {
		return nil, fmt.Errorf("failed to unmarshal order result: %w", err)
	}

	return &order, nil
}
