package lifi

import "encoding/json"

// RouteOptions tunes route search
type RouteOptions struct {
	Integrator       string  `json:"integrator,omitempty"`
	Slippage         float64 `json:"slippage,omitempty"`
	Order            string  `json:"order,omitempty"`
	AllowSwitchChain bool    `json:"allowSwitchChain"`
}

// RoutesRequest is the body of POST /advanced/routes
type RoutesRequest struct {
	FromChainID      int64        `json:"fromChainId"`
	ToChainID        int64        `json:"toChainId"`
	FromTokenAddress string       `json:"fromTokenAddress"`
	ToTokenAddress   string       `json:"toTokenAddress"`
	FromAmount       string       `json:"fromAmount"`
	FromAddress      string       `json:"fromAddress,omitempty"`
	ToAddress        string       `json:"toAddress,omitempty"`
	Options          RouteOptions `json:"options"`
}

// RoutesResponse lists routes ordered best first
type RoutesResponse struct {
	Routes []Route `json:"routes"`
}

// Token identifies an asset on a chain
type Token struct {
	Address  string `json:"address"`
	ChainID  int64  `json:"chainId"`
	Symbol   string `json:"symbol"`
	Decimals int    `json:"decimals"`
}

// Route is a LI.FI route
type Route struct {
	ID          string `json:"id"`
	FromChainID int64  `json:"fromChainId"`
	ToChainID   int64  `json:"toChainId"`
	FromAmount  string `json:"fromAmount"`
	ToAmount    string `json:"toAmount"`
	ToAmountMin string `json:"toAmountMin"`
	GasCostUSD  string `json:"gasCostUSD,omitempty"`
	FromToken   Token  `json:"fromToken"`
	ToToken     Token  `json:"toToken"`
	Steps       []Step `json:"steps"`
}

// Cost is a fee or gas cost component
type Cost struct {
	Name      string `json:"name,omitempty"`
	Amount    string `json:"amount,omitempty"`
	AmountUSD string `json:"amountUSD"`
	Included  bool   `json:"included,omitempty"`
}

// Estimate summarizes what a step will cost and take
type Estimate struct {
	ApprovalAddress   string  `json:"approvalAddress,omitempty"`
	FromAmount        string  `json:"fromAmount,omitempty"`
	ToAmount          string  `json:"toAmount,omitempty"`
	ExecutionDuration float64 `json:"executionDuration"`
	FeeCosts          []Cost  `json:"feeCosts,omitempty"`
	GasCosts          []Cost  `json:"gasCosts,omitempty"`
}

// Action describes what a step moves
type Action struct {
	FromChainID int64  `json:"fromChainId"`
	ToChainID   int64  `json:"toChainId"`
	FromAmount  string `json:"fromAmount"`
	FromToken   Token  `json:"fromToken"`
	ToToken     Token  `json:"toToken"`
	FromAddress string `json:"fromAddress,omitempty"`
	ToAddress   string `json:"toAddress,omitempty"`
}

// TransactionRequest is the unsigned transaction LI.FI asks the wallet to send
type TransactionRequest struct {
	From     string `json:"from,omitempty"`
	To       string `json:"to"`
	ChainID  int64  `json:"chainId"`
	Data     string `json:"data"`
	Value    string `json:"value,omitempty"`
	GasLimit string `json:"gasLimit,omitempty"`
	GasPrice string `json:"gasPrice,omitempty"`
}

// Step is one signed leg of a route. Raw keeps the exact step JSON because
// /advanced/stepTransaction expects it back unchanged.
type Step struct {
	ID                 string              `json:"id"`
	Type               string              `json:"type"`
	Tool               string              `json:"tool"`
	Action             Action              `json:"action"`
	Estimate           Estimate            `json:"estimate"`
	TransactionRequest *TransactionRequest `json:"transactionRequest,omitempty"`
	Raw                json.RawMessage     `json:"-"`
}

// UnmarshalJSON keeps a copy of the raw step
func (s *Step) UnmarshalJSON(data []byte) error {
	type plain Step
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*s = Step(p)
	s.Raw = append(json.RawMessage(nil), data...)
	return nil
}

// MarshalJSON returns the raw step when present
func (s Step) MarshalJSON() ([]byte, error) {
	if len(s.Raw) > 0 {
		return s.Raw, nil
	}
	type plain Step
	return json.Marshal(plain(s))
}

// StatusRequest is the query of GET /status
type StatusRequest struct {
	TxHash    string
	Bridge    string
	FromChain int64
	ToChain   int64
}

// TransactionInfo describes one side of a cross-chain transfer
type TransactionInfo struct {
	TxHash  string `json:"txHash"`
	ChainID int64  `json:"chainId"`
	Amount  string `json:"amount,omitempty"`
}

// StatusResponse reports transfer settlement
type StatusResponse struct {
	Status           string           `json:"status"`
	Substatus        string           `json:"substatus,omitempty"`
	SubstatusMessage string           `json:"substatusMessage,omitempty"`
	Tool             string           `json:"tool,omitempty"`
	Sending          *TransactionInfo `json:"sending,omitempty"`
	Receiving        *TransactionInfo `json:"receiving,omitempty"`
}

// errorResponse is the LI.FI error body
type errorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}
