package media

import (
	"context"
	"net"
	"net/http"
	"net/url"
	"time"

	_ "github.com/bdandy/go-socks4" // registers the socks4 scheme with x/net/proxy
	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
	"golang.org/x/net/proxy"
)

// NewHTTPClient returns an HTTP client that routes through proxyStr.
// Supported schemes are http, https, socks5 and socks4. An empty proxyStr means a direct connection.
func NewHTTPClient(proxyStr string, timeout time.Duration) (*http.Client, error) {
	if proxyStr == "" {
		return &http.Client{Timeout: timeout}, nil
	}

	proxyURL, err := url.Parse(proxyStr)
	if err != nil {
		return nil, errors.Wrap(err, "invalid proxy URL")
	}

	dialer := &net.Dialer{
		Timeout:   10 * time.Second,
		KeepAlive: 10 * time.Second,
	}

	var transport *http.Transport
	switch proxyURL.Scheme {
	case "http", "https":
		transport = &http.Transport{Proxy: http.ProxyURL(proxyURL)}
	case "socks5":
		auth := &proxy.Auth{}
		if proxyURL.User != nil {
			auth.User = proxyURL.User.Username()
			if pass, ok := proxyURL.User.Password(); ok {
				auth.Password = pass
			}
		}
		d, err := proxy.SOCKS5("tcp", proxyURL.Host, auth, dialer)
		if err != nil {
			return nil, errors.Wrap(err, "failed to create SOCKS5 dialer")
		}
		transport = &http.Transport{DialContext: contextDialer(d)}
	case "socks4":
		d, err := proxy.FromURL(proxyURL, dialer)
		if err != nil {
			return nil, errors.Wrap(err, "failed to create SOCKS4 dialer")
		}
		transport = &http.Transport{DialContext: contextDialer(d)}
	default:
		return nil, errors.Newf("unsupported proxy scheme: %s", proxyURL.Scheme)
	}

	zlog.Info().Msgf("media requests go through %s proxy %s", proxyURL.Scheme, proxyURL.Host)
	return &http.Client{Timeout: timeout, Transport: transport}, nil
}

func contextDialer(d proxy.Dialer) func(ctx context.Context, network, addr string) (net.Conn, error) {
	if cd, ok := d.(proxy.ContextDialer); ok {
		return cd.DialContext
	}
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		return d.Dial(network, addr)
	}
}
