package client

import (
	"errors"
	"strings"
	"time"
)

const defaultUserAgent = "tmdnlcl-client"

type Options struct {
	ignoreTLSCert bool
	APIKey        string
	Timeout       time.Duration
	// BasePath is prepended to every route, for workers mounted under a
	// prefix behind a proxy.
	BasePath  string
	UserAgent string
}

type Option func(*Options) error

// IgnoreTLSCert skips certificate verification, for workers behind a self-signed certificate.
func IgnoreTLSCert() Option {
	return func(o *Options) error {
		o.ignoreTLSCert = true
		return nil
	}
}

// APIKey is sent as a bearer token on every request.
func APIKey(key string) Option {
	return func(o *Options) error {
		o.APIKey = key
		return nil
	}
}

// Timeout bounds every request. The default is 1 minute.
func Timeout(timeout time.Duration) Option {
	return func(o *Options) error {
		if timeout <= 0 {
			return errors.New("timeout must be positive")
		}
		o.Timeout = timeout
		return nil
	}
}

// BasePath mounts the routes under prefix, e.g. "/relay".
func BasePath(prefix string) Option {
	return func(o *Options) error {
		prefix = strings.TrimRight(prefix, "/")
		if prefix != "" && !strings.HasPrefix(prefix, "/") {
			return errors.New("base path must start with /")
		}
		o.BasePath = prefix
		return nil
	}
}

func UserAgent(ua string) Option {
	return func(o *Options) error {
		o.UserAgent = ua
		return nil
	}
}

func NewOptions(opts ...Option) (*Options, error) {
	o := &Options{
		Timeout:   time.Minute,
		UserAgent: defaultUserAgent,
	}
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, err
		}
	}
	return o, nil
}
