// Package service contains the resolution core: creating short codes and
// resolving them to their target URLs with a cache-aside read path.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/linkcut/linkcut/internal/entity"
	"github.com/linkcut/linkcut/internal/shortcode"
)

// ErrMaxRetriesExceeded is returned when the maximum number of retries for generating a short code is exceeded.
var ErrMaxRetriesExceeded = errors.New("maximum retries exceeded for generating short code")

const defaultMaxRetries = 5

// URLRepository defines the interface for working with URL records at the business logic layer.
type URLRepository interface {
	// Save inserts a new shortened URL. Returns entity.ErrShortCodeExists
	// when the store's unique index rejects the code.
	Save(ctx context.Context, shortCode, originalURL string, expiresAt *time.Time, metadata map[string]any) (*entity.URL, error)

	// CodeExists reports whether a short code is already taken.
	CodeExists(ctx context.Context, shortCode string) (bool, error)

	// RetrieveByShortCode returns the record for a short code regardless of
	// its active state, or entity.ErrURLNotFound.
	RetrieveByShortCode(ctx context.Context, shortCode string) (*entity.URL, error)

	// Deactivate clears the is_active flag. Returns entity.ErrURLNotFound
	// when no record matches.
	Deactivate(ctx context.Context, shortCode string) error
}

// ClickRepository exposes the click counts backing the stats operation.
type ClickRepository interface {
	CountByShortCode(ctx context.Context, shortCode string) (int64, error)
}

// URLCache is the cache-aside store for URL records. Implementations report a
// missing or unreadable entry as an error distinct from unavailability, but
// the service treats every failure the same way: fall through to the store.
type URLCache interface {
	Get(ctx context.Context, shortCode string) (*entity.URL, error)
	Set(ctx context.Context, url *entity.URL) error
	Delete(ctx context.Context, shortCode string) error
}

// ClickEmitter dispatches click events off the request-serving path.
type ClickEmitter interface {
	Emit(event entity.ClickEvent)
}

// CreateURL carries the input of the create operation.
type CreateURL struct {
	OriginalURL string
	CustomCode  string
	ExpiresAt   *time.Time
	Metadata    map[string]any
}

// ClickInfo carries the request attributes recorded with a redirect.
type ClickInfo struct {
	IPAddress string
	UserAgent string
	Referer   string
}

// URLService orchestrates code generation, persistence, caching, and click
// emission. All mutable state lives in the external systems; the service
// itself is safe for concurrent use.
type URLService struct {
	urlRepo   URLRepository
	clickRepo ClickRepository
	cache     URLCache
	emitter   ClickEmitter
	logger    *slog.Logger

	codeLength int
	maxRetries int
}

// NewURLService creates a new instance of URLService. codeLength is the code
// length of the first generation attempt; it grows by one per collision.
func NewURLService(urlRepo URLRepository, clickRepo ClickRepository, cache URLCache, emitter ClickEmitter, logger *slog.Logger, codeLength int) *URLService {
	if codeLength <= 0 {
		codeLength = shortcode.DefaultLength
	}

	return &URLService{
		urlRepo:    urlRepo,
		clickRepo:  clickRepo,
		cache:      cache,
		emitter:    emitter,
		logger:     logger,
		codeLength: codeLength,
		maxRetries: defaultMaxRetries,
	}
}

// Shorten creates a URL record for input.OriginalURL, either under the
// caller-supplied custom code or under a generated one. On success the new
// record is written through to the cache so the first redirect hits.
func (s *URLService) Shorten(ctx context.Context, input CreateURL) (*entity.URL, error) {
	const op = "service.URLService.Shorten"

	originalURL, err := normalizeURL(input.OriginalURL)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if input.CustomCode != "" {
		return s.shortenCustom(ctx, originalURL, input)
	}

	for i := 0; i < s.maxRetries; i++ {
		// The code space grows geometrically with every collision.
		code, err := shortcode.Random(s.codeLength + i)
		if err != nil {
			return nil, fmt.Errorf("%s: failed to generate short code: %w", op, err)
		}

		exists, err := s.urlRepo.CodeExists(ctx, code)
		if err != nil {
			return nil, fmt.Errorf("%s: failed to check short code: %w", op, err)
		}
		if exists {
			continue
		}

		url, err := s.urlRepo.Save(ctx, code, originalURL, input.ExpiresAt, input.Metadata)
		if err != nil {
			// The check-then-insert window is racy; a late unique
			// violation is just another collision.
			if errors.Is(err, entity.ErrShortCodeExists) {
				continue
			}

			return nil, fmt.Errorf("%s: failed to shorten url: %w", op, err)
		}

		s.cacheURL(ctx, url)

		return url, nil
	}

	return nil, fmt.Errorf("%s: %w", op, ErrMaxRetriesExceeded)
}

func (s *URLService) shortenCustom(ctx context.Context, originalURL string, input CreateURL) (*entity.URL, error) {
	const op = "service.URLService.Shorten"

	if err := shortcode.ValidateCustom(input.CustomCode); err != nil {
		return nil, fmt.Errorf("%s: %w: %w", op, entity.ErrInvalidCustomCode, err)
	}

	// Custom codes get a single attempt; the caller picks another on conflict.
	url, err := s.urlRepo.Save(ctx, input.CustomCode, originalURL, input.ExpiresAt, input.Metadata)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to shorten url: %w", op, err)
	}

	s.cacheURL(ctx, url)

	return url, nil
}

// Resolve returns the active record for shortCode, serving from cache when
// possible and falling back to the store on a miss or any cache failure.
// Expired and deactivated records resolve to entity.ErrURLNotFound, exactly
// like absent ones. When click is non-nil a click event is emitted without
// gating the result.
func (s *URLService) Resolve(ctx context.Context, shortCode string, click *ClickInfo) (*entity.URL, error) {
	const op = "service.URLService.Resolve"

	if !shortcode.IsAlphanumeric(shortCode) {
		return nil, fmt.Errorf("%s: %w", op, entity.ErrURLNotFound)
	}

	now := time.Now()

	cached, err := s.cache.Get(ctx, shortCode)
	if err == nil {
		if !cached.Resolvable(now) {
			return nil, fmt.Errorf("%s: %w", op, entity.ErrURLNotFound)
		}

		s.emitClick(cached, click)

		return cached, nil
	}

	// Cache failures never fail resolution; degrade to a store read.
	if !errors.Is(err, entity.ErrCacheMiss) {
		s.logger.Warn("cache lookup failed, falling back to store",
			slog.String("short_code", shortCode),
			slog.Any("err", err))
	}

	url, err := s.urlRepo.RetrieveByShortCode(ctx, shortCode)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to resolve short code: %w", op, err)
	}

	if !url.Resolvable(now) {
		return nil, fmt.Errorf("%s: %w", op, entity.ErrURLNotFound)
	}

	// Repopulate off the request path; the next lookup should hit.
	go s.cacheURL(context.WithoutCancel(ctx), url)

	s.emitClick(url, click)

	return url, nil
}

// Deactivate turns off a short code and drops its cache entry. The cache
// delete is best-effort: when it fails, the entry is served stale until the
// TTL expires.
func (s *URLService) Deactivate(ctx context.Context, shortCode string) error {
	const op = "service.URLService.Deactivate"

	if err := s.urlRepo.Deactivate(ctx, shortCode); err != nil {
		return fmt.Errorf("%s: failed to deactivate url: %w", op, err)
	}

	if err := s.cache.Delete(ctx, shortCode); err != nil {
		s.logger.Warn("failed to invalidate cache entry",
			slog.String("short_code", shortCode),
			slog.Any("err", err))
	}

	return nil
}

// Stats returns the record for shortCode together with its click count.
func (s *URLService) Stats(ctx context.Context, shortCode string) (*entity.URLStats, error) {
	const op = "service.URLService.Stats"

	url, err := s.urlRepo.RetrieveByShortCode(ctx, shortCode)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to get url: %w", op, err)
	}

	clicks, err := s.clickRepo.CountByShortCode(ctx, shortCode)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to count clicks: %w", op, err)
	}

	return &entity.URLStats{URL: url, TotalClicks: clicks}, nil
}

func (s *URLService) cacheURL(ctx context.Context, url *entity.URL) {
	if err := s.cache.Set(ctx, url); err != nil {
		s.logger.Warn("failed to populate cache",
			slog.String("short_code", url.ShortCode),
			slog.Any("err", err))
	}
}

func (s *URLService) emitClick(url *entity.URL, click *ClickInfo) {
	if click == nil {
		return
	}

	s.emitter.Emit(entity.ClickEvent{
		URLID:     url.ID,
		ShortCode: url.ShortCode,
		ClickedAt: time.Now().UTC(),
		IPAddress: click.IPAddress,
		UserAgent: click.UserAgent,
		Referer:   click.Referer,
	})
}

// normalizeURL trims the input and defaults the scheme to https without
// rewriting host or path. The result must carry a http(s) scheme and a host.
func normalizeURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", entity.ErrInvalidURL
	}

	if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		raw = "https://" + raw
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return "", entity.ErrInvalidURL
	}

	if (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return "", entity.ErrInvalidURL
	}

	return parsed.String(), nil
}
