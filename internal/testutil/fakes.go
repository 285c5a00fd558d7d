package testutil

import (
	"context"
	"errors"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/yolodolo42/deployfi/internal/chain"
	"github.com/yolodolo42/deployfi/internal/tx"
)

type callKey struct {
	to       common.Address
	selector [4]byte
}

type callResponse struct {
	out []byte
	err error
}

// FakeReader is an in-memory chain.Reader. Contract calls are answered by
// (address, selector) registrations, then by CallHook, then with an error.
type FakeReader struct {
	mu        sync.Mutex
	code      map[common.Address][]byte
	responses map[callKey]callResponse
	receipts  map[common.Hash]*types.Receipt
	logs      []types.Log

	// CallHook answers calls with no registered response.
	CallHook   func(msg ethereum.CallMsg, block *big.Int) ([]byte, error)
	Fees       chain.FeeEstimate
	FeeErr     error
	ReceiptErr error
	Head       uint64 // returned by BlockNumber
	HeadErr    error

	calls   []ethereum.CallMsg
	queries []ethereum.FilterQuery
}

// NewFakeReader returns an empty reader whose fee estimate carries both legacy
// and fee-market fields.
func NewFakeReader() *FakeReader {
	return &FakeReader{
		code:      make(map[common.Address][]byte),
		responses: make(map[callKey]callResponse),
		receipts:  make(map[common.Hash]*types.Receipt),
		Fees: chain.FeeEstimate{
			GasPrice:       big.NewInt(2_000_000_000),
			MaxFee:         big.NewInt(3_000_000_000),
			MaxPriorityFee: big.NewInt(1_000_000_000),
		},
	}
}

// SetCode installs bytecode at addr.
func (r *FakeReader) SetCode(addr common.Address, code []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.code[addr] = code
}

// Respond registers the return data for calls to selector on to.
func (r *FakeReader) Respond(to common.Address, selector [4]byte, out []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.responses[callKey{to, selector}] = callResponse{out: out}
}

// RespondErr registers an error for calls to selector on to.
func (r *FakeReader) RespondErr(to common.Address, selector [4]byte, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.responses[callKey{to, selector}] = callResponse{err: err}
}

// SetReceipt makes hash resolvable.
func (r *FakeReader) SetReceipt(hash common.Hash, receipt *types.Receipt) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.receipts[hash] = receipt
}

// SetReceiptErr makes every receipt lookup fail with err until reset to nil.
func (r *FakeReader) SetReceiptErr(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ReceiptErr = err
}

// AddLogs appends logs returned by FilterLogs.
func (r *FakeReader) AddLogs(logs ...types.Log) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logs = append(r.logs, logs...)
}

// Queries returns every log filter received so far.
func (r *FakeReader) Queries() []ethereum.FilterQuery {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]ethereum.FilterQuery(nil), r.queries...)
}

// Calls returns every eth_call made so far.
func (r *FakeReader) Calls() []ethereum.CallMsg {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]ethereum.CallMsg(nil), r.calls...)
}

func (r *FakeReader) CodeAt(_ context.Context, addr common.Address) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.code[addr], nil
}

func (r *FakeReader) CallContract(_ context.Context, msg ethereum.CallMsg, block *big.Int) ([]byte, error) {
	r.mu.Lock()
	r.calls = append(r.calls, msg)
	var (
		resp  callResponse
		found bool
	)
	if msg.To != nil && len(msg.Data) >= 4 {
		var sel [4]byte
		copy(sel[:], msg.Data[:4])
		resp, found = r.responses[callKey{*msg.To, sel}]
	}
	hook := r.CallHook
	r.mu.Unlock()

	if found {
		return resp.out, resp.err
	}
	if hook != nil {
		return hook(msg, block)
	}
	return nil, errors.New("execution reverted")
}

func (r *FakeReader) TransactionReceipt(_ context.Context, hash common.Hash) (*types.Receipt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ReceiptErr != nil {
		return nil, r.ReceiptErr
	}
	receipt, ok := r.receipts[hash]
	if !ok {
		return nil, ethereum.NotFound
	}
	return receipt, nil
}

func (r *FakeReader) FilterLogs(_ context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.queries = append(r.queries, q)
	var out []types.Log
	for _, l := range r.logs {
		if len(q.Addresses) > 0 && !containsAddress(q.Addresses, l.Address) {
			continue
		}
		if q.FromBlock != nil && l.BlockNumber < q.FromBlock.Uint64() {
			continue
		}
		if q.ToBlock != nil && l.BlockNumber > q.ToBlock.Uint64() {
			continue
		}
		out = append(out, l)
	}
	return out, nil
}

func (r *FakeReader) BlockNumber(context.Context) (uint64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.Head, r.HeadErr
}

func (r *FakeReader) FeeEstimate(context.Context) (chain.FeeEstimate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.Fees, r.FeeErr
}

func containsAddress(list []common.Address, addr common.Address) bool {
	for _, a := range list {
		if a == addr {
			return true
		}
	}
	return false
}

// FakeWallet records envelopes instead of signing them. When Reader and
// Mine are set, every sent envelope gets the receipt Mine returns.
type FakeWallet struct {
	mu   sync.Mutex
	Addr common.Address
	Err  error

	Reader *FakeReader
	Mine   func(env *tx.Envelope) *types.Receipt

	sent []*tx.Envelope
}

// NewFakeWallet returns a wallet for a fixed test address.
func NewFakeWallet(reader *FakeReader) *FakeWallet {
	return &FakeWallet{
		Addr:   common.HexToAddress("0x00000000000000000000000000000000000A11CE"),
		Reader: reader,
	}
}

func (w *FakeWallet) Address() common.Address { return w.Addr }

func (w *FakeWallet) SendTransaction(_ context.Context, env *tx.Envelope) (common.Hash, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.Err != nil {
		return common.Hash{}, w.Err
	}
	w.sent = append(w.sent, env)
	hash := crypto.Keccak256Hash(w.Addr.Bytes(), big.NewInt(int64(len(w.sent))).Bytes())

	if w.Reader != nil && w.Mine != nil {
		if receipt := w.Mine(env); receipt != nil {
			receipt.TxHash = hash
			if receipt.BlockNumber == nil {
				receipt.BlockNumber = big.NewInt(1)
			}
			w.Reader.SetReceipt(hash, receipt)
		}
	}
	return hash, nil
}

// Sent returns the envelopes submitted so far.
func (w *FakeWallet) Sent() []*tx.Envelope {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]*tx.Envelope(nil), w.sent...)
}

// SuccessReceipt returns a successful receipt carrying logs.
func SuccessReceipt(logs ...*types.Log) *types.Receipt {
	return &types.Receipt{Status: types.ReceiptStatusSuccessful, Logs: logs}
}

// RevertedReceipt returns a receipt with failure status.
func RevertedReceipt() *types.Receipt {
	return &types.Receipt{Status: types.ReceiptStatusFailed}
}

// RevertError mimics a JSON-RPC execution revert carrying revert data.
type RevertError struct {
	Data []byte
}

// NewRevertError returns an execution revert whose data is selector.
func NewRevertError(selector []byte) *RevertError {
	return &RevertError{Data: selector}
}

func (e *RevertError) Error() string  { return "execution reverted" }
func (e *RevertError) ErrorCode() int { return 3 }
func (e *RevertError) ErrorData() interface{} {
	return hexutil.Encode(e.Data)
}
