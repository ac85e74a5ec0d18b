package provider

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/proxy"

	"github.com/felixgeelhaar/stressguard/internal/errors"
)

// New builds the provider named by cfg.Name
func New(cfg Config) (ProviderClient, error) {
	httpClient, err := NewHTTPClient(cfg.Proxy, cfg.Timeout)
	if err != nil {
		return nil, err
	}

	switch strings.ToLower(cfg.Name) {
	case "ollama", "":
		return NewOllamaProvider(cfg, httpClient)
	case "openai":
		return NewOpenAIProvider(cfg, httpClient)
	default:
		return nil, errors.NewConfigInvalidError(fmt.Sprintf("unknown provider %q", cfg.Name)).
			WithSuggestion("Use one of: ollama, openai")
	}
}

// NewHTTPClient returns an HTTP client, dialing through a SOCKS5 proxy when
// proxyAddr is set. proxyAddr may be "host:port" or "socks5://[user:pass@]host:port".
func NewHTTPClient(proxyAddr string, timeout time.Duration) (*http.Client, error) {
	if proxyAddr == "" {
		return &http.Client{Timeout: timeout}, nil
	}

	addr := proxyAddr
	var auth *proxy.Auth
	if strings.Contains(proxyAddr, "://") {
		u, err := url.Parse(proxyAddr)
		if err != nil {
			return nil, errors.NewConfigInvalidError(fmt.Sprintf("invalid proxy address %q", proxyAddr))
		}
		if u.Scheme != "socks5" && u.Scheme != "socks5h" {
			return nil, errors.NewConfigInvalidError(fmt.Sprintf("unsupported proxy scheme %q", u.Scheme))
		}
		addr = u.Host
		if u.User != nil {
			pass, _ := u.User.Password()
			auth = &proxy.Auth{User: u.User.Username(), Password: pass}
		}
	}

	dialer, err := proxy.SOCKS5("tcp", addr, auth, proxy.Direct)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeConfigInvalid, "dial socks proxy", err)
	}

	transport := &http.Transport{
		DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			if cd, ok := dialer.(proxy.ContextDialer); ok {
				return cd.DialContext(ctx, network, addr)
			}
			return dialer.Dial(network, addr)
		},
	}

	return &http.Client{
		Transport: transport,
		Timeout:   timeout,
	}, nil
}
