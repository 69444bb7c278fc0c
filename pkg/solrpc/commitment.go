package solrpc

import "fmt"

// Commitment is a level of confidence that a submitted transaction will not
// be reverted.
type Commitment string

// Commitment levels in ascending order of confidence.
const (
	Processed Commitment = "processed"
	Confirmed Commitment = "confirmed"
	Finalized Commitment = "finalized"
)

func (c Commitment) level() int {
	switch c {
	case Processed:
		return 1
	case Confirmed:
		return 2
	case Finalized:
		return 3
	}
	return 0
}

// IsValid checks that c is one of the known commitment levels.
func (c Commitment) IsValid() bool {
	return c.level() != 0
}

// Covers returns true if c is at least as strong as target. Unknown levels
// cover nothing.
func (c Commitment) Covers(target Commitment) bool {
	return c.IsValid() && c.level() >= target.level()
}

// ParseCommitment converts the given string into a Commitment.
func ParseCommitment(s string) (Commitment, error) {
	c := Commitment(s)
	if !c.IsValid() {
		return "", fmt.Errorf("unknown commitment %q", s)
	}
	return c, nil
}
