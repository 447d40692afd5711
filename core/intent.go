package core

// Interaction is one on-chain call within a transaction intent.
type Interaction struct {
	To    string `json:"to"`
	Data  string `json:"data,omitempty"`
	Value string `json:"value,omitempty"`
}

// NextAction signals that the backend requires a signature over a
// server-computed hash before the intent can proceed.
type NextAction struct {
	Type    string            `json:"type"`
	Payload NextActionPayload `json:"payload"`
}

// NextActionPayload carries the hash to sign.
type NextActionPayload struct {
	SignableHash string `json:"signableHash"`
}

// Log is one event log from a mined transaction.
type Log struct {
	Address string   `json:"address"`
	Data    string   `json:"data"`
	Topics  []string `json:"topics"`
}

// IntentResponse is present once the intent has been mined. Status 1 means
// confirmed, 0 means reverted.
type IntentResponse struct {
	Status          int    `json:"status"`
	TransactionHash string `json:"transactionHash"`
	BlockNumber     string `json:"blockNumber,omitempty"`
	GasUsed         string `json:"gasUsed,omitempty"`
	Logs            []Log  `json:"logs,omitempty"`
	Error           string `json:"error,omitempty"`
}

// TransactionIntent is the backend-tracked record of a requested on-chain
// operation. Absence of Response means the intent is still pending; callers
// must not assume confirmation.
type TransactionIntent struct {
	ID           string          `json:"id"`
	ChainID      uint64          `json:"chainId"`
	Interactions []Interaction   `json:"interactions,omitempty"`
	NextAction   *NextAction     `json:"nextAction,omitempty"`
	Response     *IntentResponse `json:"response,omitempty"`
}

// CreateIntentRequest is the submission shape for a new intent. Authorization,
// when set, carries a serialized EIP-7702 authorization tuple.
type CreateIntentRequest struct {
	Account       string        `json:"account,omitempty"`
	Policy        string        `json:"policy,omitempty"`
	ChainID       uint64        `json:"chainId"`
	Interactions  []Interaction `json:"interactions"`
	Authorization string        `json:"authorization,omitempty"`
}

// GasEstimate is the backend's cost estimate for an intent.
type GasEstimate struct {
	EstimatedTXGas      string `json:"estimatedTXGas"`
	EstimatedTXGasFee   string `json:"estimatedTXGasFee,omitempty"`
	EstimatedTXGasToken string `json:"estimatedTXGasFeeToken,omitempty"`
}
