package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/nspcc-dev/soltx/pkg/solrpc"
)

// Confirmation contains transaction sending and confirmation parameters.
type Confirmation struct {
	// Commitment is the target commitment level.
	Commitment          solrpc.Commitment `yaml:"Commitment"`
	PollInterval        time.Duration     `yaml:"PollInterval"`
	PollRetryCount      int               `yaml:"PollRetryCount"`
	RebroadcastInterval time.Duration     `yaml:"RebroadcastInterval"`
	// Timeout limits confirmation of transactions that have neither last
	// valid block height nor durable nonce.
	Timeout       time.Duration `yaml:"Timeout"`
	SkipPreflight bool          `yaml:"SkipPreflight"`
	// MaxRetries is passed to sendTransaction if it's positive.
	MaxRetries uint `yaml:"MaxRetries"`
}

// Validate checks Confirmation for internal consistency.
func (c Confirmation) Validate() error {
	if !c.Commitment.IsValid() {
		return fmt.Errorf("invalid Commitment '%s'", c.Commitment)
	}
	if c.PollInterval <= 0 {
		return errors.New("PollInterval must be positive")
	}
	if c.PollRetryCount <= 0 {
		return errors.New("PollRetryCount must be positive")
	}
	if c.RebroadcastInterval <= 0 {
		return errors.New("RebroadcastInterval must be positive")
	}
	if c.Timeout <= 0 {
		return errors.New("Timeout must be positive")
	}
	return nil
}
