package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"courier-dispatch/internal/dispatch-service/core/domain/dto"
)

// apiClient talks to the dispatch service over HTTP with the courier's
// bearer credential.
type apiClient struct {
	baseURL   string
	token     string
	courierID string
	client    *http.Client
}

func newAPIClient(baseURL, token, courierID string) *apiClient {
	return &apiClient{
		baseURL:   baseURL,
		token:     token,
		courierID: courierID,
		client:    &http.Client{Timeout: 10 * time.Second},
	}
}

// Active asks whether this courier currently has a delivery in transit.
func (c *apiClient) Active(ctx context.Context) (bool, error) {
	url := fmt.Sprintf("%s/couriers/%s/active", c.baseURL, c.courierID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false, err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.client.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("active poll: status %d", resp.StatusCode)
	}

	var envelope struct {
		Success bool                      `json:"success"`
		Data    dto.CourierActiveResponse `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return false, err
	}
	return envelope.Data.Active, nil
}

// Sync pushes one queued batch to the reconciliation endpoint.
func (c *apiClient) Sync(ctx context.Context, syncReq dto.SyncRequest) (dto.SyncResponse, error) {
	body, err := json.Marshal(syncReq)
	if err != nil {
		return dto.SyncResponse{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/sync", bytes.NewReader(body))
	if err != nil {
		return dto.SyncResponse{}, err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return dto.SyncResponse{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return dto.SyncResponse{}, fmt.Errorf("sync: status %d", resp.StatusCode)
	}

	var envelope struct {
		Success bool             `json:"success"`
		Data    dto.SyncResponse `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return dto.SyncResponse{}, err
	}
	return envelope.Data, nil
}
