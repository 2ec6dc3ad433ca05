// internal/services/anchor_service.go
package services

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/idsee/registry-backend/internal/config"
	"github.com/idsee/registry-backend/internal/utils"
)

// AnchorClient submits digests to an external tamper-evident ledger.
type AnchorClient interface {
	ComputeCanonicalHash(data []byte) string
	AnchorRecord(ctx context.Context, digest string) (string, error)
}

// DemoAnchorClient stands in for a real ledger. It waits for the configured
// latency and then fabricates a reference of the form demo_tx_<32 hex>.
type DemoAnchorClient struct {
	latency time.Duration
}

func NewDemoAnchorClient(latency time.Duration) *DemoAnchorClient {
	return &DemoAnchorClient{latency: latency}
}

func (c *DemoAnchorClient) ComputeCanonicalHash(data []byte) string {
	return utils.HashBytes(data)
}

func (c *DemoAnchorClient) AnchorRecord(ctx context.Context, digest string) (string, error) {
	if c.latency > 0 {
		timer := time.NewTimer(c.latency)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-timer.C:
		}
	}

	suffix, err := utils.GenerateRandomHex(16)
	if err != nil {
		return "", err
	}
	return "demo_tx_" + suffix, nil
}

// AnchorService applies the caller policy around an AnchorClient: every
// attempt is bounded by a timeout and failed attempts are retried with
// exponential backoff. It never holds a database transaction.
type AnchorService struct {
	client     AnchorClient
	mode       string
	timeout    time.Duration
	maxRetries int
	backoff    time.Duration
}

func NewAnchorService(client AnchorClient, cfg config.AnchorConfig) *AnchorService {
	return &AnchorService{
		client:     client,
		mode:       cfg.Mode,
		timeout:    cfg.Timeout,
		maxRetries: cfg.MaxRetries,
		backoff:    cfg.RetryBackoff,
	}
}

func (s *AnchorService) Mode() string {
	return s.mode
}

func (s *AnchorService) Hash(data []byte) string {
	return s.client.ComputeCanonicalHash(data)
}

// Anchor returns the external reference for digest or an error wrapping
// ErrAnchorUnavailable once all attempts have failed.
func (s *AnchorService) Anchor(ctx context.Context, digest string) (string, error) {
	var lastErr error
	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		if attempt > 0 {
			wait := s.backoff << (attempt - 1)
			select {
			case <-ctx.Done():
				return "", fmt.Errorf("%w: %v", ErrAnchorUnavailable, ctx.Err())
			case <-time.After(wait):
			}
		}

		ref, err := s.attempt(ctx, digest)
		if err == nil {
			return ref, nil
		}
		lastErr = err
		logrus.WithError(err).WithFields(logrus.Fields{
			"digest":  digest,
			"attempt": attempt + 1,
		}).Warn("Anchoring attempt failed")
	}
	return "", fmt.Errorf("%w: %v", ErrAnchorUnavailable, lastErr)
}

func (s *AnchorService) attempt(ctx context.Context, digest string) (string, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	return s.client.AnchorRecord(ctx, digest)
}
