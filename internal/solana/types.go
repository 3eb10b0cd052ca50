package solana

import (
	"strconv"

	"github.com/mr-tron/base58"

	"dexcharts/internal/domain"
)

// ConnState is the stream connection status.
type ConnState int32

const (
	StateDisconnected ConnState = iota
	StateConnecting
	StateConnected
	StateBackoff
	StateFailed
)

func (s ConnState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateBackoff:
		return "backoff"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// JSON-RPC wire types for the transactionSubscribe feed.

type streamRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params,omitempty"`
}

type streamResponse struct {
	JSONRPC string    `json:"jsonrpc"`
	ID      uint64    `json:"id"`
	Result  int64     `json:"result"` // subscription ID
	Error   *rpcError `json:"error"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type streamNotification struct {
	JSONRPC string              `json:"jsonrpc"`
	Method  string              `json:"method"`
	Params  *notificationParams `json:"params"`
}

type notificationParams struct {
	Subscription int64              `json:"subscription"`
	Result       notificationResult `json:"result"`
}

type notificationResult struct {
	Context *slotContext `json:"context"`
	Value   txValue      `json:"value"`
}

type slotContext struct {
	Slot int64 `json:"slot"`
}

type txValue struct {
	Signature   string     `json:"signature"`
	BlockTime   int64      `json:"blockTime"`
	Transaction txEnvelope `json:"transaction"`
	Meta        *txMeta    `json:"meta"`
}

type txEnvelope struct {
	Message txMessage `json:"message"`
}

type txMessage struct {
	AccountKeys  []string        `json:"accountKeys"`
	Instructions []txInstruction `json:"instructions"`
}

// txInstruction carries base58 payloads and account indexes into the
// transaction's account key table.
type txInstruction struct {
	ProgramIDIndex int    `json:"programIdIndex"`
	Accounts       []int  `json:"accounts"`
	Data           string `json:"data"`
}

type txMeta struct {
	Err               interface{}      `json:"err"`
	PreBalances       []uint64         `json:"preBalances"`
	PostBalances      []uint64         `json:"postBalances"`
	PreTokenBalances  []txTokenBalance `json:"preTokenBalances"`
	PostTokenBalances []txTokenBalance `json:"postTokenBalances"`
}

type txTokenBalance struct {
	AccountIndex  int           `json:"accountIndex"`
	Mint          string        `json:"mint"`
	UITokenAmount txTokenAmount `json:"uiTokenAmount"`
}

type txTokenAmount struct {
	Amount string `json:"amount"` // raw integer units as a string
}

// toRawEvent flattens the wire transaction into the decoder's input shape:
// instruction accounts resolved to addresses, balance tables keyed by
// account address. Returns nil for transactions that failed on chain or
// carry no usable message.
func (n *streamNotification) toRawEvent() *domain.RawTransactionEvent {
	if n.Params == nil {
		return nil
	}
	v := &n.Params.Result.Value
	if v.Meta == nil || v.Meta.Err != nil {
		return nil
	}

	keys := v.Transaction.Message.AccountKeys
	if len(keys) == 0 {
		return nil
	}

	ev := &domain.RawTransactionEvent{
		Signature:          v.Signature,
		BlockTime:          v.BlockTime,
		PreTokenBalances:   tokenTable(keys, v.Meta.PreTokenBalances),
		PostTokenBalances:  tokenTable(keys, v.Meta.PostTokenBalances),
		PreNativeBalances:  nativeTable(keys, v.Meta.PreBalances),
		PostNativeBalances: nativeTable(keys, v.Meta.PostBalances),
	}
	if n.Params.Result.Context != nil {
		ev.Slot = n.Params.Result.Context.Slot
	}

	for _, ins := range v.Transaction.Message.Instructions {
		if ins.ProgramIDIndex < 0 || ins.ProgramIDIndex >= len(keys) {
			continue
		}
		data, err := base58.Decode(ins.Data)
		if err != nil {
			continue
		}
		accounts := make([]string, 0, len(ins.Accounts))
		for _, idx := range ins.Accounts {
			if idx < 0 || idx >= len(keys) {
				accounts = nil
				break
			}
			accounts = append(accounts, keys[idx])
		}
		if accounts == nil && len(ins.Accounts) > 0 {
			continue
		}
		ev.Instructions = append(ev.Instructions, domain.Instruction{
			ProgramID: keys[ins.ProgramIDIndex],
			Data:      data,
			Accounts:  accounts,
		})
	}
	if len(ev.Instructions) == 0 {
		return nil
	}
	return ev
}

func tokenTable(keys []string, balances []txTokenBalance) map[string]domain.TokenBalance {
	if len(balances) == 0 {
		return nil
	}
	out := make(map[string]domain.TokenBalance, len(balances))
	for _, b := range balances {
		if b.AccountIndex < 0 || b.AccountIndex >= len(keys) {
			continue
		}
		raw, err := strconv.ParseUint(b.UITokenAmount.Amount, 10, 64)
		if err != nil {
			continue
		}
		out[keys[b.AccountIndex]] = domain.TokenBalance{Mint: b.Mint, Amount: raw}
	}
	return out
}

func nativeTable(keys []string, balances []uint64) map[string]uint64 {
	if len(balances) == 0 {
		return nil
	}
	out := make(map[string]uint64, len(balances))
	for i, amount := range balances {
		if i >= len(keys) {
			break
		}
		out[keys[i]] = amount
	}
	return out
}
