package failure

import (
	"bytes"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rpc"
)

// EIP-1193 provider error codes.
const (
	codeUserRejected  = 4001
	codeLimitExceeded = -32005
)

// Match tables, checked in order. Phrases are lowercase.
var (
	rejectionPhrases = []string{
		"user rejected",
		"user denied",
		"rejected by user",
		"user cancelled",
		"user canceled",
		"action_rejected",
		"request rejected",
	}

	fundsPhrases = []string{
		"insufficient funds",
		"insufficient balance",
		"exceeds balance",
		"not enough balance",
	}

	revertPhrases = []string{
		"revert",
		"call exception",
	}

	overloadPhrases = []string{
		"too many requests",
		"rate limit",
		"rate-limit",
		"ratelimit",
		"limit exceeded",
		"request limit",
		"capacity exceeded",
	}

	httpTooManyRequests = regexp.MustCompile(`\b429\b`)
)

// reasonSelectors maps the 4-byte selector of each custom error to its reason.
var reasonSelectors = func() map[[4]byte]Reason {
	out := make(map[[4]byte]Reason, len(Reasons))
	for _, r := range Reasons {
		var sel [4]byte
		copy(sel[:], crypto.Keccak256([]byte(string(r)+"()"))[:4])
		out[sel] = r
	}
	return out
}()

// Classify maps a low-level error onto the failure taxonomy. Errors that are
// already classified are returned unchanged. It returns nil only for a nil
// error and never panics.
func Classify(err error) (out *Error) {
	if err == nil {
		return nil
	}
	var classified *Error
	if errors.As(err, &classified) {
		return classified
	}
	defer func() {
		if r := recover(); r != nil {
			out = New(KindUnknown, fmt.Errorf("classify: %v", r))
		}
	}()

	if errors.Is(err, ErrUserRejected) {
		return New(KindUserRejected, err)
	}

	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) {
		switch rpcErr.ErrorCode() {
		case codeUserRejected:
			return New(KindUserRejected, err)
		case codeLimitExceeded:
			return New(KindRPCOverloaded, err)
		}
	}

	reason, data := revertDetails(err)
	return classify(safeMessage(err)+" "+reason, data, err)
}

// ClassifyMessage classifies a bare message. It is total: every input,
// including the empty string, yields exactly one kind.
func ClassifyMessage(msg string) *Error {
	return Classify(errors.New(msg))
}

func classify(msg string, data []byte, raw error) *Error {
	lower := strings.ToLower(msg)

	if containsAny(lower, rejectionPhrases) {
		return New(KindUserRejected, raw)
	}
	if containsAny(lower, fundsPhrases) {
		return New(KindInsufficientFunds, raw)
	}
	if reason, ok := matchSelector(data); ok {
		return Validation(reason, raw)
	}
	for _, r := range Reasons {
		if strings.Contains(lower, strings.ToLower(string(r))) {
			return Validation(r, raw)
		}
	}
	if containsAny(lower, revertPhrases) || len(data) > 0 {
		return New(KindUnclassifiedRevert, raw)
	}
	if containsAny(lower, overloadPhrases) || httpTooManyRequests.MatchString(lower) {
		return New(KindRPCOverloaded, raw)
	}
	return New(KindUnknown, raw)
}

// revertDetails pulls revert data out of a JSON-RPC data error, returning the
// decoded Error(string) reason if there is one.
func revertDetails(err error) (string, []byte) {
	var dataErr rpc.DataError
	if !errors.As(err, &dataErr) {
		return "", nil
	}
	var data []byte
	switch v := dataErr.ErrorData().(type) {
	case string:
		decoded, decodeErr := hexutil.Decode(v)
		if decodeErr != nil {
			return v, nil
		}
		data = decoded
	case []byte:
		data = v
	default:
		return "", nil
	}
	if reason, unpackErr := abi.UnpackRevert(data); unpackErr == nil {
		return reason, data
	}
	return "", data
}

func matchSelector(data []byte) (Reason, bool) {
	if len(data) < 4 {
		return "", false
	}
	var sel [4]byte
	copy(sel[:], data[:4])
	r, ok := reasonSelectors[sel]
	return r, ok
}

func containsAny(s string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}

// Selector returns the 4-byte custom error selector for reason.
func Selector(reason Reason) []byte {
	return bytes.Clone(crypto.Keccak256([]byte(string(reason) + "()"))[:4])
}
