package config

import (
	"errors"
	"fmt"
	"net/url"
	"time"
)

// RPC describes the node to work with.
type RPC struct {
	// Endpoint is the HTTP JSON-RPC URL.
	Endpoint string `yaml:"Endpoint"`
	// WSEndpoint is the websocket URL, subscriptions are not used if it's
	// empty.
	WSEndpoint     string        `yaml:"WSEndpoint"`
	DialTimeout    time.Duration `yaml:"DialTimeout"`
	RequestTimeout time.Duration `yaml:"RequestTimeout"`
	// MaxConnsPerHost limits the number of HTTP connections, 0 means no limit.
	MaxConnsPerHost int `yaml:"MaxConnsPerHost"`
	// RequestsPerSecond limits outgoing unary requests, 0 means no limit.
	RequestsPerSecond float64 `yaml:"RequestsPerSecond"`
	Burst             int     `yaml:"Burst"`
}

// Validate checks RPC for internal consistency.
func (r RPC) Validate() error {
	if err := checkURL(r.Endpoint, "http", "https"); err != nil {
		return fmt.Errorf("Endpoint: %w", err)
	}
	if r.WSEndpoint != "" {
		if err := checkURL(r.WSEndpoint, "ws", "wss"); err != nil {
			return fmt.Errorf("WSEndpoint: %w", err)
		}
	}
	if r.DialTimeout < 0 || r.RequestTimeout < 0 {
		return errors.New("negative timeout")
	}
	if r.MaxConnsPerHost < 0 {
		return errors.New("negative MaxConnsPerHost")
	}
	if r.RequestsPerSecond < 0 {
		return errors.New("negative RequestsPerSecond")
	}
	if r.RequestsPerSecond > 0 && r.Burst < 1 {
		return errors.New("Burst must be positive for rate-limited client")
	}
	return nil
}

func checkURL(s string, schemes ...string) error {
	u, err := url.Parse(s)
	if err != nil {
		return err
	}
	for _, sc := range schemes {
		if u.Scheme == sc {
			if u.Host == "" {
				return fmt.Errorf("no host in '%s'", s)
			}
			return nil
		}
	}
	return fmt.Errorf("unsupported scheme '%s', expected one of %v", u.Scheme, schemes)
}
