package listing

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/sync/errgroup"

	"github.com/yolodolo42/deployfi/internal/chain"
	"github.com/yolodolo42/deployfi/internal/contracts"
	"github.com/yolodolo42/deployfi/internal/failure"
)

// PresaleAction is a terminal presale operation.
type PresaleAction string

const (
	ActionFinalize          PresaleAction = "finalize"
	ActionBurnUnsold        PresaleAction = "burn_unsold"
	ActionCancelAndWithdraw PresaleAction = "cancel_and_withdraw"
)

// Call returns the contract call performing a.
func (a PresaleAction) Call() contracts.Call {
	switch a {
	case ActionFinalize:
		return contracts.NewCall(contracts.FuncFinalize)
	case ActionBurnUnsold:
		return contracts.NewCall(contracts.FuncBurnUnsold)
	case ActionCancelAndWithdraw:
		return contracts.NewCall(contracts.FuncCancelAndWithdraw)
	}
	return nil
}

// maxDeadline is the last second of year 9999. Larger deadlines, including
// the max-uint256 sentinel, mean the presale never expires.
const maxDeadline int64 = 253402300799

// PresaleState is what the token reports about its presale.
type PresaleState struct {
	Finalized   bool
	Deadline    time.Time
	TotalRaised *big.Int
	SoftCap     *big.Int
}

// Expired reports whether the deadline has passed at now. A zero deadline
// never expires.
func (p PresaleState) Expired(now time.Time) bool {
	return !p.Deadline.IsZero() && now.After(p.Deadline)
}

// Succeeded reports whether the soft cap has been reached.
func (p PresaleState) Succeeded() bool {
	return p.TotalRaised != nil && p.SoftCap != nil && p.TotalRaised.Cmp(p.SoftCap) >= 0
}

// Actions lists the terminal actions available at now. A finalized presale
// has none. Reaching the soft cap allows Finalize; missing it past the
// deadline allows BurnUnsold or CancelAndWithdraw instead. A running presale
// below its soft cap has none yet.
func (p PresaleState) Actions(now time.Time) []PresaleAction {
	switch {
	case p.Finalized:
		return nil
	case p.Succeeded():
		return []PresaleAction{ActionFinalize}
	case p.Expired(now):
		return []PresaleAction{ActionBurnUnsold, ActionCancelAndWithdraw}
	default:
		return nil
	}
}

// ReadPresale reads the presale state of token. The four reads run
// concurrently.
func ReadPresale(ctx context.Context, reader chain.Reader, token common.Address) (PresaleState, error) {
	var (
		st       PresaleState
		deadline *big.Int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		st.Finalized, err = contracts.ReadBool(gctx, reader, token, contracts.FuncFinalized)
		return err
	})
	g.Go(func() (err error) {
		deadline, err = contracts.ReadUint(gctx, reader, token, contracts.FuncPresaleDeadline)
		return err
	})
	g.Go(func() (err error) {
		st.TotalRaised, err = contracts.ReadUint(gctx, reader, token, contracts.FuncTotalRaised)
		return err
	})
	g.Go(func() (err error) {
		st.SoftCap, err = contracts.ReadUint(gctx, reader, token, contracts.FuncSoftCap)
		return err
	})
	if err := g.Wait(); err != nil {
		return PresaleState{}, failure.Classify(err)
	}
	st.Deadline = deadlineTime(deadline)
	return st, nil
}

func deadlineTime(v *big.Int) time.Time {
	if v == nil || v.Sign() <= 0 || !v.IsInt64() || v.Int64() > maxDeadline {
		return time.Time{}
	}
	return time.Unix(v.Int64(), 0)
}
