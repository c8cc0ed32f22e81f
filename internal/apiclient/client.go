// Package apiclient talks to the admin API of the referral platform.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"refdash/internal/apperr"
	"refdash/internal/config"
	"refdash/internal/metrics"
	"refdash/internal/model"
	"refdash/internal/session"
)

const (
	endpointLogin     = "login"
	endpointUsers     = "users"
	endpointReferrals = "referrals"
)

// HTTPClient is a bearer-token client for the admin API.
// The credential comes from the Session on every call.
type HTTPClient struct {
	baseURL     string
	session     *session.Session
	httpClient  *http.Client
	limiter     *rate.Limiter
	maxAttempts int
	baseBackoff time.Duration
	logger      *zap.Logger
}

func NewHTTPClient(cfg config.APIConfig, sess *session.Session, logger *zap.Logger) *HTTPClient {
	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	return &HTTPClient{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		session:     sess,
		httpClient:  &http.Client{Timeout: cfg.Timeout},
		limiter:     newLimiter(cfg),
		maxAttempts: maxAttempts,
		baseBackoff: cfg.BaseBackoff,
		logger:      logger,
	}
}

// Login exchanges admin credentials for a token and stores it in the session.
func (c *HTTPClient) Login(ctx context.Context, email, password string) (string, error) {
	if email == "" || password == "" {
		return "", apperr.ValidationError(nil, "email and password are required")
	}
	var raw loginResponse
	err := c.call(ctx, endpointLogin, http.MethodPost, c.baseURL+"/admin/loginAdmin", loginRequest{Email: email, Password: password}, false, &raw)
	if err != nil {
		if apperr.Is(err, apperr.KindAuth) {
			return "", apperr.AuthError(err, "invalid email or password")
		}
		return "", err
	}
	if raw.Result == nil || raw.Result.Token == "" {
		return "", apperr.FetchError(errSchema, "unexpected response schema")
	}
	if err := c.session.Set(ctx, raw.Result.Token); err != nil {
		return "", err
	}
	c.logger.Info("admin login succeeded", zap.String("email", email))
	return raw.Result.Token, nil
}

// ListUsers fetches one page of the user directory.
// TotalPages is zero when the server does not report it.
func (c *HTTPClient) ListUsers(ctx context.Context, page int) (model.DirectoryPage, error) {
	if page < 1 {
		return model.DirectoryPage{}, apperr.ValidationError(nil, "page must be >= 1")
	}
	u := fmt.Sprintf("%s/users?page=%d", c.baseURL, page)
	var raw listUsersResponse
	if err := c.call(ctx, endpointUsers, http.MethodGet, u, nil, true, &raw); err != nil {
		return model.DirectoryPage{}, err
	}
	out, err := raw.toModel(page)
	if err != nil {
		return model.DirectoryPage{}, apperr.FetchError(err, "unexpected response schema")
	}
	return out, nil
}

// ListReferrals fetches one page of the users referred by address.
func (c *HTTPClient) ListReferrals(ctx context.Context, address string, page, limit int) (model.ReferralPage, error) {
	if address == "" {
		return model.ReferralPage{}, apperr.ValidationError(nil, "empty wallet address")
	}
	if page < 1 {
		page = 1
	}
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	u := fmt.Sprintf("%s/users/%s/referrals?%s", c.baseURL, url.PathEscape(address), q.Encode())
	var raw referralsResponse
	if err := c.call(ctx, endpointReferrals, http.MethodGet, u, nil, true, &raw); err != nil {
		return model.ReferralPage{}, err
	}
	out, err := raw.toModel()
	if err != nil {
		return model.ReferralPage{}, apperr.FetchError(err, "unexpected response schema")
	}
	return out, nil
}

// call sends one JSON request and decodes a 2xx body into out.
func (c *HTTPClient) call(ctx context.Context, endpoint, method, u string, body any, authed bool, out any) error {
	var payload io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		payload = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, payload)
	if err != nil {
		return err
	}
	if authed {
		tok, err := c.session.Token()
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	reqID := uuid.NewString()
	req.Header.Set("X-Request-ID", reqID)

	if err := c.limiter.Wait(ctx); err != nil {
		return apperr.FetchError(err, "network error")
	}
	start := time.Now()
	resp, err := c.doWithRetry(ctx, endpoint, req)
	if err != nil {
		metrics.ObserveAPIRequest(endpoint, 0, start)
		c.logger.Warn("admin api request failed", zap.String("endpoint", endpoint), zap.String("request_id", reqID), zap.Error(err))
		return apperr.FetchError(err, "network error")
	}
	defer resp.Body.Close()
	metrics.ObserveAPIRequest(endpoint, resp.StatusCode, start)
	c.logger.Debug("admin api request", zap.String("endpoint", endpoint), zap.String("request_id", reqID),
		zap.Int("status", resp.StatusCode), zap.Duration("took", time.Since(start)))

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		if authed {
			if err := c.session.Clear(context.WithoutCancel(ctx)); err != nil {
				c.logger.Warn("clear session", zap.Error(err))
			}
		}
		return apperr.AuthError(fmt.Errorf("admin api status %d", resp.StatusCode), serverMessage(resp.Body))
	case resp.StatusCode >= 300:
		return apperr.FetchError(fmt.Errorf("admin api status %d", resp.StatusCode), serverMessage(resp.Body))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return apperr.FetchError(err, "unexpected response schema")
	}
	return nil
}

// serverMessage extracts a message from an error body, empty when there is none.
func serverMessage(r io.Reader) string {
	b, err := io.ReadAll(io.LimitReader(r, 4096))
	if err != nil || len(b) == 0 {
		return ""
	}
	var eb errorBody
	if json.Unmarshal(b, &eb) != nil {
		return ""
	}
	if eb.Message != "" {
		return eb.Message
	}
	return eb.Error
}

// doWithRetry retries 429 and 5xx responses with exponential backoff, honouring Retry-After.
// The final attempt's response is returned as is so the caller can map its status.
func (c *HTTPClient) doWithRetry(ctx context.Context, endpoint string, req *http.Request) (*http.Response, error) {
	backoff := c.baseBackoff
	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if attempt > 1 {
			metrics.IncAPIRetry(endpoint)
		}
		try := req.Clone(ctx)
		if req.GetBody != nil {
			body, err := req.GetBody()
			if err != nil {
				return nil, err
			}
			try.Body = body
		}
		resp, err := c.httpClient.Do(try)
		if err == nil {
			retryable := resp.StatusCode == http.StatusTooManyRequests || (resp.StatusCode >= 500 && resp.StatusCode <= 599)
			if !retryable || attempt == c.maxAttempts {
				return resp, nil
			}
			wait := retryAfter(resp.Header.Get("Retry-After"), backoff)
			_ = resp.Body.Close()
			// jitter +/-20%
			jitter := time.Duration(float64(wait) * 0.2)
			if jitter > 0 {
				wait = wait - jitter + time.Duration(time.Now().UnixNano()%int64(2*jitter))
			}
			if err := sleep(ctx, wait); err != nil {
				return nil, err
			}
			backoff *= 2
			continue
		}
		lastErr = err
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if attempt == c.maxAttempts {
			break
		}
		if err := sleep(ctx, backoff); err != nil {
			return nil, err
		}
		backoff *= 2
	}
	return nil, fmt.Errorf("request failed after %d attempts: %w", c.maxAttempts, lastErr)
}

func retryAfter(header string, def time.Duration) time.Duration {
	if header == "" {
		return def
	}
	if secs, err := strconv.Atoi(header); err == nil {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(header); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return def
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
