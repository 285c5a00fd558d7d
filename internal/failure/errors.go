package failure

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// Kind is the closed set of failure categories surfaced to callers.
type Kind string

const (
	KindUserRejected        Kind = "user_rejected"
	KindInsufficientFunds   Kind = "insufficient_funds"
	KindContractValidation  Kind = "contract_validation"
	KindUnclassifiedRevert  Kind = "unclassified_revert"
	KindRPCOverloaded       Kind = "rpc_overloaded"
	KindConfirmationTimeout Kind = "confirmation_timeout"
	KindExtractionFailed    Kind = "extraction_failed"
	KindConfiguration       Kind = "configuration"
	KindUnknown             Kind = "unknown"
)

// Reason names a contract-level validation failure. Only set when Kind is
// KindContractValidation.
type Reason string

const (
	ReasonNotOwner                Reason = "NotOwner"
	ReasonPoolAlreadyExists       Reason = "PoolAlreadyExists"
	ReasonInvalidAsset            Reason = "InvalidAsset"
	ReasonInvalidCollateralFactor Reason = "InvalidCollateralFactor"
	ReasonInvalidReserveFactor    Reason = "InvalidReserveFactor"
	ReasonInsufficientFee         Reason = "InsufficientFee"
)

// Reasons lists every known validation reason in match order.
var Reasons = []Reason{
	ReasonNotOwner,
	ReasonPoolAlreadyExists,
	ReasonInvalidAsset,
	ReasonInvalidCollateralFactor,
	ReasonInvalidReserveFactor,
	ReasonInsufficientFee,
}

var reasonMessages = map[Reason]string{
	ReasonNotOwner:                "caller is not the owner of this contract",
	ReasonPoolAlreadyExists:       "a pool already exists for this asset",
	ReasonInvalidAsset:            "the asset is not supported by the factory",
	ReasonInvalidCollateralFactor: "collateral factor is out of the allowed range",
	ReasonInvalidReserveFactor:    "reserve factor is out of the allowed range",
	ReasonInsufficientFee:         "the fee sent is below the factory's deployment fee",
}

// ErrUserRejected is wrapped by wallets when the user declines to sign.
var ErrUserRejected = errors.New("user rejected transaction")

// Error is a classified failure. It keeps the raw underlying error for
// diagnostics alongside the kind shown to the user.
type Error struct {
	Kind        Kind
	Reason      Reason
	Retryable   bool
	RawMessage  string
	Raw         error
	TxHash      common.Hash
	ExplorerURL string
}

// New creates a classified error of the given kind wrapping raw.
func New(kind Kind, raw error) *Error {
	e := &Error{
		Kind:      kind,
		Retryable: kind.Retryable(),
		Raw:       raw,
	}
	if raw != nil {
		e.RawMessage = safeMessage(raw)
	}
	return e
}

// Validation creates a ContractValidation error for the given reason.
func Validation(reason Reason, raw error) *Error {
	e := New(KindContractValidation, raw)
	e.Reason = reason
	return e
}

// Configuration creates a ConfigurationError.
func Configuration(format string, args ...any) *Error {
	return New(KindConfiguration, fmt.Errorf(format, args...))
}

// ConfirmationTimeout reports that no receipt appeared for txHash in time.
func ConfirmationTimeout(txHash common.Hash, raw error) *Error {
	e := New(KindConfirmationTimeout, raw)
	e.TxHash = txHash
	return e
}

// ExtractionFailed reports a confirmed transaction whose deployed address
// could not be recovered.
func ExtractionFailed(txHash common.Hash, explorerURL string) *Error {
	e := New(KindExtractionFailed, fmt.Errorf("no deployed address found in receipt of %s", txHash.Hex()))
	e.TxHash = txHash
	e.ExplorerURL = explorerURL
	return e
}

// Retryable reports whether a caller may retry after this kind of failure.
// The system itself never resubmits a transaction.
func (k Kind) Retryable() bool {
	return k == KindRPCOverloaded || k == KindConfirmationTimeout
}

// Terminal reports whether the failure must be surfaced verbatim without retry.
func (k Kind) Terminal() bool {
	return k == KindUserRejected || k == KindContractValidation || k == KindConfiguration
}

// Message returns a human-readable description of the failure.
func (e *Error) Message() string {
	switch e.Kind {
	case KindUserRejected:
		return "transaction was rejected in the wallet"
	case KindInsufficientFunds:
		return "insufficient funds to cover the value and gas of this transaction"
	case KindContractValidation:
		if msg, ok := reasonMessages[e.Reason]; ok {
			return fmt.Sprintf("contract rejected the call (%s): %s", e.Reason, msg)
		}
		return "contract rejected the call"
	case KindUnclassifiedRevert:
		return "transaction reverted without a known reason"
	case KindRPCOverloaded:
		return "the RPC endpoint is rate limiting requests, retry shortly"
	case KindConfirmationTimeout:
		return fmt.Sprintf("transaction %s was not confirmed in time; look it up before retrying, do not resubmit", e.TxHash.Hex())
	case KindExtractionFailed:
		msg := "the transaction was confirmed and the contract may have been deployed, but its address could not be determined"
		if e.ExplorerURL != "" {
			msg += "; verify manually at " + e.ExplorerURL
		}
		return msg
	case KindConfiguration:
		return "configuration error: " + e.RawMessage
	default:
		return "unexpected error"
	}
}

func (e *Error) Error() string {
	if e.RawMessage == "" || e.Kind == KindConfiguration {
		return e.Message()
	}
	return e.Message() + ": " + e.RawMessage
}

func (e *Error) Unwrap() error {
	return e.Raw
}

// Is matches another *Error by kind and, when set, by reason.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind != e.Kind {
		return false
	}
	return t.Reason == "" || t.Reason == e.Reason
}

// Sentinels for errors.Is checks.
var (
	ErrConfiguration       = &Error{Kind: KindConfiguration}
	ErrConfirmationTimeout = &Error{Kind: KindConfirmationTimeout}
	ErrExtractionFailed    = &Error{Kind: KindExtractionFailed}
)

func safeMessage(err error) (msg string) {
	defer func() {
		if r := recover(); r != nil {
			msg = fmt.Sprintf("%T", err)
		}
	}()
	return err.Error()
}
