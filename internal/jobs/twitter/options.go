package twitter

import (
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

const defaultUploadURL = "https://upload.twitter.com/1.1/media/upload.json"

type Options struct {
	HTTPClient    *http.Client
	UploadURL     string
	Timeout       time.Duration
	Limiter       *rate.Limiter
	UserCacheSize int
	UserCacheTTL  time.Duration
	ChunkSize     int
}

type Option func(*Options) error

// HTTPClient sets the client whose transport carries the signed requests.
func HTTPClient(c *http.Client) Option {
	return func(o *Options) error {
		o.HTTPClient = c
		return nil
	}
}

// UploadURL overrides the media upload endpoint.
func UploadURL(u string) Option {
	return func(o *Options) error {
		o.UploadURL = u
		return nil
	}
}

func Timeout(timeout time.Duration) Option {
	return func(o *Options) error {
		o.Timeout = timeout
		return nil
	}
}

// RateLimit paces every call made through the authenticator's clients.
func RateLimit(rps float64, burst int) Option {
	return func(o *Options) error {
		if rps <= 0 {
			o.Limiter = rate.NewLimiter(rate.Inf, 0)
			return nil
		}
		if burst <= 0 {
			burst = 1
		}
		o.Limiter = rate.NewLimiter(rate.Limit(rps), burst)
		return nil
	}
}

// UserCache sizes the screen name cache.
func UserCache(size int, ttl time.Duration) Option {
	return func(o *Options) error {
		o.UserCacheSize = size
		o.UserCacheTTL = ttl
		return nil
	}
}

// ChunkSize sets the segment size of chunked video uploads.
func ChunkSize(n int) Option {
	return func(o *Options) error {
		o.ChunkSize = n
		return nil
	}
}

func NewOptions(opts ...Option) (*Options, error) {
	o := &Options{
		UploadURL:     defaultUploadURL,
		Timeout:       1 * time.Minute,
		Limiter:       rate.NewLimiter(rate.Inf, 0),
		UserCacheSize: 1000,
		UserCacheTTL:  1 * time.Hour,
		ChunkSize:     4 * 1024 * 1024,
	}
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, err
		}
	}
	return o, nil
}
