package sessionprovider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// HTTPSessionProvider talks to the telephony vendor's proxy-session API.
type HTTPSessionProvider struct {
	logger     *slog.Logger
	httpClient *http.Client
	apiURL     string
	apiKey     string
}

func NewHTTPSessionProvider(logger *slog.Logger, apiURL, apiKey string, httpClient *http.Client) *HTTPSessionProvider {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &HTTPSessionProvider{
		logger:     logger.With("provider", "http_session"),
		httpClient: httpClient,
		apiURL:     apiURL,
		apiKey:     apiKey,
	}
}

type providerErrorResponse struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
}

func (p *HTTPSessionProvider) CreateSession(ctx context.Context, req SessionRequest) (*SessionResponse, error) {
	reqBytes, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshaling session request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.apiURL+"/sessions", bytes.NewBuffer(reqBytes))
	if err != nil {
		return nil, fmt.Errorf("creating session HTTP request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)

	httpResp, err := p.httpClient.Do(httpReq)
	if err != nil {
		p.logger.ErrorContext(ctx, "Session create request failed", "error", err, "thread_id", req.ThreadID)
		return nil, fmt.Errorf("sending session create request: %w", err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading session create response (status %d): %w", httpResp.StatusCode, err)
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		var provErr providerErrorResponse
		msg := fmt.Sprintf("provider session create failed: status %d", httpResp.StatusCode)
		if jsonErr := json.Unmarshal(respBody, &provErr); jsonErr == nil && provErr.Message != "" {
			msg = fmt.Sprintf("provider session create failed: status %d, message: %s", httpResp.StatusCode, provErr.Message)
		}
		p.logger.WarnContext(ctx, "Session create rejected", "status_code", httpResp.StatusCode, "thread_id", req.ThreadID)
		return nil, fmt.Errorf("%s", msg)
	}

	var resp SessionResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("parsing session create response: %w", err)
	}
	p.logger.InfoContext(ctx, "Session created", "session_ref", resp.SessionRef, "thread_id", req.ThreadID)
	return &resp, nil
}

func (p *HTTPSessionProvider) UpdateSessionParticipants(ctx context.Context, sessionRef string, participants SessionParticipants) error {
	reqBytes, err := json.Marshal(participants)
	if err != nil {
		return fmt.Errorf("marshaling participant update: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPatch, p.apiURL+"/sessions/"+sessionRef+"/participants", bytes.NewBuffer(reqBytes))
	if err != nil {
		return fmt.Errorf("creating participant update request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)

	httpResp, err := p.httpClient.Do(httpReq)
	if err != nil {
		p.logger.ErrorContext(ctx, "Participant update request failed", "error", err, "session_ref", sessionRef)
		return fmt.Errorf("sending participant update request: %w", err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return fmt.Errorf("reading participant update response (status %d): %w", httpResp.StatusCode, err)
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		var provErr providerErrorResponse
		msg := fmt.Sprintf("provider participant update failed: status %d", httpResp.StatusCode)
		if jsonErr := json.Unmarshal(respBody, &provErr); jsonErr == nil && provErr.Message != "" {
			msg = fmt.Sprintf("provider participant update failed: status %d, message: %s", httpResp.StatusCode, provErr.Message)
		}
		p.logger.WarnContext(ctx, "Participant update rejected", "status_code", httpResp.StatusCode, "session_ref", sessionRef)
		return fmt.Errorf("%s", msg)
	}

	p.logger.InfoContext(ctx, "Session participants updated", "session_ref", sessionRef)
	return nil
}

func (p *HTTPSessionProvider) CloseSession(ctx context.Context, sessionRef string) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodDelete, p.apiURL+"/sessions/"+sessionRef, nil)
	if err != nil {
		return fmt.Errorf("creating session close request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)

	httpResp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("sending session close request: %w", err)
	}
	defer httpResp.Body.Close()
	io.Copy(io.Discard, httpResp.Body)

	// 404 means the session is already gone; close is idempotent.
	if httpResp.StatusCode >= 300 && httpResp.StatusCode != http.StatusNotFound {
		return fmt.Errorf("provider session close failed: status %d", httpResp.StatusCode)
	}
	return nil
}

func (p *HTTPSessionProvider) GetName() string {
	return "http_session"
}
