package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gavv/httpexpect/v2"
	"github.com/go-chi/httplog/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"

	"github.com/linkcut/linkcut/internal/entity"
	"github.com/linkcut/linkcut/internal/service"
	"github.com/linkcut/linkcut/pkg/response"
)

type MockURLService struct {
	mock.Mock
}

func (s *MockURLService) Shorten(ctx context.Context, input service.CreateURL) (*entity.URL, error) {
	args := s.Called(ctx, input)
	url, _ := args.Get(0).(*entity.URL)
	return url, args.Error(1)
}

func (s *MockURLService) Resolve(ctx context.Context, shortCode string, click *service.ClickInfo) (*entity.URL, error) {
	args := s.Called(ctx, shortCode, click)
	url, _ := args.Get(0).(*entity.URL)
	return url, args.Error(1)
}

func (s *MockURLService) Deactivate(ctx context.Context, shortCode string) error {
	args := s.Called(ctx, shortCode)
	return args.Error(0)
}

func (s *MockURLService) Stats(ctx context.Context, shortCode string) (*entity.URLStats, error) {
	args := s.Called(ctx, shortCode)
	stats, _ := args.Get(0).(*entity.URLStats)
	return stats, args.Error(1)
}

type HandlersTestSuite struct {
	suite.Suite
	logger     *httplog.Logger
	urlSvcMock *MockURLService
	server     *httptest.Server
	e          *httpexpect.Expect
}

func (suite *HandlersTestSuite) SetupSuite() {
	suite.logger = httplog.NewLogger("", httplog.Options{Writer: io.Discard})
}

func (suite *HandlersTestSuite) SetupSubTest() {
	suite.urlSvcMock = new(MockURLService)
	router := NewRouter(suite.logger, suite.urlSvcMock)
	suite.server = httptest.NewServer(router)
	suite.e = httpexpect.Default(suite.T(), suite.server.URL)
}

func (suite *HandlersTestSuite) TearDownSubTest() {
	suite.urlSvcMock.AssertExpectations(suite.T())
	suite.server.Close()
}

func (suite *HandlersTestSuite) TestPing() {
	const path = "/api/v1/ping"

	suite.Run("success", func() {
		suite.e.GET(path).
			Expect().
			Status(http.StatusOK).
			Text().IsEqual("pong\n")
	})
}

func (suite *HandlersTestSuite) TestShortenURL() {
	const path = "/api/v1/shorten"

	suite.Run("empty request body", func() {
		suite.e.POST(path).
			Expect().
			Status(http.StatusBadRequest).
			HasContentType("application/json").
			JSON().Object().
			HasValue("status", response.StatusError).
			HasValue("message", response.EmptyRequestBodyResponse.Message)
	})

	suite.Run("invalid request body", func() {
		suite.e.POST(path).
			WithJSON("invalid body").
			Expect().
			Status(http.StatusBadRequest).
			HasContentType("application/json").
			JSON().Object().
			HasValue("status", response.StatusError).
			HasValue("message", response.BadRequestResponse.Message)
	})

	suite.Run("validation error", func() {
		suite.e.POST(path).
			WithJSON(map[string]string{
				"original_url": "https://example.com",
				"custom_code":  "a",
			}).
			Expect().
			Status(http.StatusBadRequest).
			HasContentType("application/json").
			JSON().Object().
			HasValue("status", response.StatusError).
			ContainsKey("message").
			ContainsKey("details")
	})

	suite.Run("invalid url", func() {
		suite.urlSvcMock.
			On("Shorten", mock.Anything, service.CreateURL{OriginalURL: "https://"}).
			Times(1).
			Return(nil, entity.ErrInvalidURL)

		suite.e.POST(path).
			WithJSON(map[string]string{
				"original_url": "https://",
			}).
			Expect().
			Status(http.StatusBadRequest).
			HasContentType("application/json").
			JSON().Object().
			HasValue("status", response.StatusError).
			HasValue("message", response.InvalidURLResponse.Message)
	})

	suite.Run("custom code conflict", func() {
		input := service.CreateURL{
			OriginalURL: "https://example.com",
			CustomCode:  "mycode",
		}

		suite.urlSvcMock.
			On("Shorten", mock.Anything, input).
			Times(1).
			Return(nil, entity.ErrShortCodeExists)

		suite.e.POST(path).
			WithJSON(map[string]string{
				"original_url": "https://example.com",
				"custom_code":  "mycode",
			}).
			Expect().
			Status(http.StatusConflict).
			HasContentType("application/json").
			JSON().Object().
			HasValue("status", response.StatusError).
			HasValue("message", response.ShortCodeConflictResponse.Message)
	})

	suite.Run("server error", func() {
		suite.urlSvcMock.
			On("Shorten", mock.Anything, service.CreateURL{OriginalURL: "https://example.com"}).
			Times(1).
			Return(nil, errors.New("unknown error"))

		suite.e.POST(path).
			WithJSON(map[string]string{
				"original_url": "https://example.com",
			}).
			Expect().
			Status(http.StatusInternalServerError).
			HasContentType("application/json").
			JSON().Object().
			HasValue("status", response.StatusError).
			HasValue("message", response.ServerErrorResponse.Message)
	})

	suite.Run("success", func() {
		suite.urlSvcMock.
			On("Shorten", mock.Anything, service.CreateURL{OriginalURL: "https://example.com"}).
			Times(1).
			Return(&entity.URL{
				ID:          uuid.New(),
				ShortCode:   "abc123",
				OriginalURL: "https://example.com",
				IsActive:    true,
			}, nil)

		suite.e.POST(path).
			WithJSON(map[string]string{
				"original_url": "https://example.com",
			}).
			Expect().
			Status(http.StatusCreated).
			HasContentType("application/json").
			JSON().Object().
			HasValue("status", response.StatusSuccess).
			ContainsKey("message").
			Value("data").Object().
			HasValue("short_code", "abc123").
			HasValue("original_url", "https://example.com").
			HasValue("is_active", true)
	})
}

func (suite *HandlersTestSuite) TestRedirect() {
	const path = "/%s"

	suite.Run("not found", func() {
		suite.urlSvcMock.
			On("Resolve", mock.Anything, "missing", mock.Anything).
			Times(1).
			Return(nil, entity.ErrURLNotFound)

		suite.e.GET(fmt.Sprintf(path, "missing")).
			Expect().
			Status(http.StatusNotFound).
			HasContentType("application/json").
			JSON().Object().
			HasValue("status", response.StatusError).
			HasValue("message", response.ResourceNotFoundResponse.Message)
	})

	suite.Run("server error", func() {
		suite.urlSvcMock.
			On("Resolve", mock.Anything, "abc123", mock.Anything).
			Times(1).
			Return(nil, errors.New("unknown error"))

		suite.e.GET(fmt.Sprintf(path, "abc123")).
			Expect().
			Status(http.StatusInternalServerError).
			HasContentType("application/json").
			JSON().Object().
			HasValue("status", response.StatusError).
			HasValue("message", response.ServerErrorResponse.Message)
	})

	suite.Run("redirects with click info", func() {
		suite.urlSvcMock.
			On("Resolve", mock.Anything, "abc123", mock.MatchedBy(func(click *service.ClickInfo) bool {
				return click != nil &&
					click.UserAgent == "linkcut-test" &&
					click.Referer == "https://referrer.example" &&
					click.IPAddress != ""
			})).
			Times(1).
			Return(&entity.URL{
				ShortCode:   "abc123",
				OriginalURL: "https://example.com/landing",
				IsActive:    true,
			}, nil)

		suite.e.GET(fmt.Sprintf(path, "abc123")).
			WithRedirectPolicy(httpexpect.DontFollowRedirects).
			WithHeader("User-Agent", "linkcut-test").
			WithHeader("Referer", "https://referrer.example").
			Expect().
			Status(http.StatusFound).
			Header("Location").IsEqual("https://example.com/landing")
	})
}

func (suite *HandlersTestSuite) TestDeactivateURL() {
	const path = "/api/v1/shorten/%s"

	suite.Run("not found", func() {
		suite.urlSvcMock.
			On("Deactivate", mock.Anything, "abc123").
			Times(1).
			Return(entity.ErrURLNotFound)

		suite.e.DELETE(fmt.Sprintf(path, "abc123")).
			Expect().
			Status(http.StatusNotFound).
			HasContentType("application/json").
			JSON().Object().
			HasValue("status", response.StatusError).
			HasValue("message", response.ResourceNotFoundResponse.Message)
	})

	suite.Run("success", func() {
		suite.urlSvcMock.
			On("Deactivate", mock.Anything, "abc123").
			Times(1).
			Return(nil)

		suite.e.DELETE(fmt.Sprintf(path, "abc123")).
			Expect().
			Status(http.StatusOK).
			HasContentType("application/json").
			JSON().Object().
			HasValue("status", response.StatusSuccess).
			ContainsKey("message")
	})
}

func (suite *HandlersTestSuite) TestGetURLStats() {
	const path = "/api/v1/shorten/%s/stats"

	suite.Run("not found", func() {
		suite.urlSvcMock.
			On("Stats", mock.Anything, "abc123").
			Times(1).
			Return(nil, entity.ErrURLNotFound)

		suite.e.GET(fmt.Sprintf(path, "abc123")).
			Expect().
			Status(http.StatusNotFound).
			HasContentType("application/json").
			JSON().Object().
			HasValue("status", response.StatusError).
			HasValue("message", response.ResourceNotFoundResponse.Message)
	})

	suite.Run("success", func() {
		suite.urlSvcMock.
			On("Stats", mock.Anything, "abc123").
			Times(1).
			Return(&entity.URLStats{
				URL: &entity.URL{
					ID:          uuid.New(),
					ShortCode:   "abc123",
					OriginalURL: "https://example.com",
					IsActive:    true,
					CreatedAt:   time.Now().UTC(),
				},
				TotalClicks: 42,
			}, nil)

		suite.e.GET(fmt.Sprintf(path, "abc123")).
			Expect().
			Status(http.StatusOK).
			HasContentType("application/json").
			JSON().Object().
			HasValue("status", response.StatusSuccess).
			Value("data").Object().
			HasValue("short_code", "abc123").
			HasValue("total_clicks", 42)
	})
}

func TestHandlersTestSuite(t *testing.T) {
	suite.Run(t, new(HandlersTestSuite))
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		headers    map[string]string
		want       string
	}{
		{
			name:       "forwarded chain uses first entry",
			remoteAddr: "10.0.0.1:4321",
			headers:    map[string]string{"X-Forwarded-For": "203.0.113.7, 10.0.0.2"},
			want:       "203.0.113.7",
		},
		{
			name:       "real ip header",
			remoteAddr: "10.0.0.1:4321",
			headers:    map[string]string{"X-Real-IP": "203.0.113.9"},
			want:       "203.0.113.9",
		},
		{
			name:       "falls back to remote addr",
			remoteAddr: "203.0.113.11:4321",
			want:       "203.0.113.11",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/abc123", nil)
			r.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}

			assert.Equal(t, tt.want, clientIP(r))
		})
	}
}
