package evm

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	ethcommon "github.com/ethereum/go-ethereum/common"
)

const erc20ABIJSON = `[
	{"type":"function","name":"allowance","stateMutability":"view",
	 "inputs":[{"name":"owner","type":"address"},{"name":"spender","type":"address"}],
	 "outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"approve","stateMutability":"nonpayable",
	 "inputs":[{"name":"spender","type":"address"},{"name":"amount","type":"uint256"}],
	 "outputs":[{"name":"","type":"bool"}]},
	{"type":"function","name":"balanceOf","stateMutability":"view",
	 "inputs":[{"name":"account","type":"address"}],
	 "outputs":[{"name":"","type":"uint256"}]}
]`

var erc20ABI = mustParseABI(erc20ABIJSON)

func mustParseABI(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic(fmt.Sprintf("invalid ABI definition: %v", err))
	}
	return parsed
}

// Allowance returns how much spender may pull from owner
func Allowance(ctx context.Context, rpc *RPCClient, token, owner, spender ethcommon.Address) (*big.Int, error) {
	return callUint256(ctx, rpc, token, "allowance", owner, spender)
}

// BalanceOf returns the token balance of account
func BalanceOf(ctx context.Context, rpc *RPCClient, token, account ethcommon.Address) (*big.Int, error) {
	return callUint256(ctx, rpc, token, "balanceOf", account)
}

func callUint256(ctx context.Context, rpc *RPCClient, token ethcommon.Address, method string, args ...interface{}) (*big.Int, error) {
	data, err := erc20ABI.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to pack %s: %w", method, err)
	}
	out, err := rpc.CallContract(ctx, ethereum.CallMsg{To: &token, Data: data})
	if err != nil {
		return nil, fmt.Errorf("%s call failed: %w", method, err)
	}
	values, err := erc20ABI.Unpack(method, out)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack %s: %w", method, err)
	}
	if len(values) != 1 {
		return nil, fmt.Errorf("unexpected %s result length %d", method, len(values))
	}
	v, ok := values[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected %s result type %T", method, values[0])
	}
	return v, nil
}

// Approval is an allowance a transaction needs before it can pull tokens
type Approval struct {
	Token   ethcommon.Address
	Spender ethcommon.Address
	Amount  *big.Int
}

type allowanceKey struct {
	token   ethcommon.Address
	spender ethcommon.Address
}

// lockAllowance holds the wallet's allowance for token and spender on this
// chain. An approve overwrites the previous allowance, so the check, the
// approval and the spending transaction must not interleave with another
// spender of the same allowance.
func (s *TxSender) lockAllowance(token, spender ethcommon.Address) func() {
	s.allowanceMu.Lock()
	if s.allowanceLocks == nil {
		s.allowanceLocks = make(map[allowanceKey]*sync.Mutex)
	}
	key := allowanceKey{token: token, spender: spender}
	lock, ok := s.allowanceLocks[key]
	if !ok {
		lock = &sync.Mutex{}
		s.allowanceLocks[key] = lock
	}
	s.allowanceMu.Unlock()

	lock.Lock()
	return lock.Unlock
}

// SendWithApproval approves the spender when needed, then sends req and
// waits for its receipt while holding the allowance.
func (s *TxSender) SendWithApproval(ctx context.Context, approval Approval, req TxRequest) (ethcommon.Hash, error) {
	unlock := s.lockAllowance(approval.Token, approval.Spender)
	defer unlock()

	if _, err := EnsureAllowance(ctx, s, approval.Token, approval.Spender, approval.Amount); err != nil {
		return ethcommon.Hash{}, err
	}
	return s.SendAndWait(ctx, req)
}

// EnsureAllowance approves spender for amount when the current allowance is
// short. It returns the approval hash, or the zero hash if none was needed.
// Callers that spend the allowance afterwards should go through
// SendWithApproval.
func EnsureAllowance(ctx context.Context, sender *TxSender, token, spender ethcommon.Address, amount *big.Int) (ethcommon.Hash, error) {
	current, err := Allowance(ctx, sender.RPC(), token, sender.From(), spender)
	if err != nil {
		return ethcommon.Hash{}, err
	}
	if current.Cmp(amount) >= 0 {
		return ethcommon.Hash{}, nil
	}

	data, err := erc20ABI.Pack("approve", spender, amount)
	if err != nil {
		return ethcommon.Hash{}, fmt.Errorf("failed to pack approve: %w", err)
	}
	sender.logger.Info().
		Str("token", token.Hex()).
		Str("spender", spender.Hex()).
		Str("amount", amount.String()).
		Msg("approving token allowance")

	hash, err := sender.SendAndWait(ctx, TxRequest{To: token, Data: data})
	if err != nil {
		return hash, fmt.Errorf("approval failed: %w", err)
	}
	return hash, nil
}
