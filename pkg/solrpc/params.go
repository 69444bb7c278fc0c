package solrpc

type (
	// CommitmentConfig is a common optional parameter object of read methods.
	CommitmentConfig struct {
		Commitment Commitment `json:"commitment,omitempty"`
	}

	// SendTransactionConfig is a parameter object of sendTransaction.
	SendTransactionConfig struct {
		Encoding            string     `json:"encoding"`
		SkipPreflight       bool       `json:"skipPreflight,omitempty"`
		PreflightCommitment Commitment `json:"preflightCommitment,omitempty"`
		MaxRetries          *uint      `json:"maxRetries,omitempty"`
	}

	// DataSlice limits the returned account data.
	DataSlice struct {
		Offset uint64 `json:"offset"`
		Length uint64 `json:"length"`
	}

	// AccountInfoConfig is a parameter object of getAccountInfo.
	AccountInfoConfig struct {
		Commitment Commitment `json:"commitment,omitempty"`
		Encoding   string     `json:"encoding"`
		DataSlice  *DataSlice `json:"dataSlice,omitempty"`
	}

	// SignatureStatusesConfig is a parameter object of getSignatureStatuses.
	SignatureStatusesConfig struct {
		SearchTransactionHistory bool `json:"searchTransactionHistory"`
	}
)

// Wire encodings of binary data.
const (
	EncodingBase64 = "base64"
	EncodingBase58 = "base58"
)
