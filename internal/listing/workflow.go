package listing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/samber/lo"

	"github.com/yolodolo42/deployfi/internal/chain"
	"github.com/yolodolo42/deployfi/internal/contracts"
	"github.com/yolodolo42/deployfi/internal/failure"
	"github.com/yolodolo42/deployfi/internal/tx"
)

// ErrActionUnavailable is returned for a presale action the current state
// does not allow.
var ErrActionUnavailable = errors.New("presale action not available")

// Workflow drives a Session with on-chain actions: approval, presale
// resolution and liquidity deployment.
type Workflow struct {
	session  *Session
	exec     *Executor
	approver *Approver
	engine   *Engine
	now      func() time.Time
}

// NewWorkflow creates a workflow over a fresh session.
func NewWorkflow(exec *Executor) *Workflow {
	return &Workflow{
		session:  NewSession(),
		exec:     exec,
		approver: NewApprover(exec),
		engine:   NewEngine(exec),
		now:      time.Now,
	}
}

// Session returns the underlying state machine for observation.
func (w *Workflow) Session() *Session {
	return w.session
}

// SelectToken resolves and selects the token at addr created by the version
// factory. Tokens of presale-capable versions are inspected and, when they
// carry a presale, its state is loaded.
func (w *Workflow) SelectToken(ctx context.Context, addr common.Address, version string) (Token, error) {
	tok, err := ResolveToken(w.exec.Profile(), addr, version)
	if err != nil {
		return Token{}, err
	}

	factory, _ := contracts.Lookup(version, w.exec.Profile().ABIVariant)
	reader := w.exec.Reader()
	code, err := chain.RetryRead(ctx, chain.DefaultRetryConfig, func(ctx context.Context) ([]byte, error) {
		return reader.CodeAt(ctx, addr)
	})
	if err != nil {
		return Token{}, failure.Classify(err)
	}
	if len(code) == 0 {
		return Token{}, failure.Configuration("no contract at %s on %s", addr.Hex(), w.exec.Profile().Name)
	}
	tok.PresaleGated = factory.Presale && contracts.HasFunction(code, contracts.FuncFinalized)

	if err := w.session.Select(tok); err != nil {
		return Token{}, err
	}
	if tok.PresaleGated {
		if _, err := w.RefreshPresale(ctx); err != nil {
			return tok, err
		}
	}
	return tok, nil
}

// Approve enters the Approve stage and grants the router the target
// allowance. Exempt versions pass through without a transaction.
func (w *Workflow) Approve(ctx context.Context) (ApprovalResult, error) {
	if err := w.session.EnterApprove(); err != nil {
		return ApprovalResult{}, err
	}
	st := w.session.Status()
	if st.Token.ApprovalExempt {
		return ApprovalResult{Exempt: true}, nil
	}

	profile := w.exec.Profile()
	if !profile.HasRouter() {
		return ApprovalResult{}, failure.Configuration("no router configured on %s (chain %d)", profile.Name, profile.ChainID)
	}
	res, err := w.approver.Approve(ctx, st.Token.Address, profile.Router)
	if err != nil {
		return res, err
	}
	if err := w.session.Grant(st.SessionID, Approval{Target: res.Target, TxHash: res.TxHash}); err != nil {
		return res, err
	}
	return res, nil
}

// ResetApproval clears the recorded grant, keeping the Approve stage.
func (w *Workflow) ResetApproval() error {
	return w.session.ResetApproval()
}

// RefreshPresale re-reads the selected token's presale state.
func (w *Workflow) RefreshPresale(ctx context.Context) (PresaleState, error) {
	st := w.session.Status()
	if st.Token == nil {
		return PresaleState{}, ErrNoToken
	}
	p, err := ReadPresale(ctx, w.exec.Reader(), st.Token.Address)
	if err != nil {
		return PresaleState{}, err
	}
	if err := w.session.SetPresale(st.SessionID, p); err != nil {
		return PresaleState{}, err
	}
	return p, nil
}

// PresaleActions lists the presale actions available now.
func (w *Workflow) PresaleActions() []PresaleAction {
	st := w.session.Status()
	if st.Token == nil || !st.Token.PresaleGated || st.Presale == nil {
		return nil
	}
	return st.Presale.Actions(w.now())
}

// RunPresaleAction performs action if the presale state allows it and
// refreshes the state afterwards.
func (w *Workflow) RunPresaleAction(ctx context.Context, action PresaleAction) (common.Hash, error) {
	if !lo.Contains(w.PresaleActions(), action) {
		return common.Hash{}, fmt.Errorf("%w: %s", ErrActionUnavailable, action)
	}
	tok := w.session.Status().Token
	rcpt, err := w.exec.Send(ctx, tok.Address, action.Call(), nil, tx.DefaultCallGas)
	if err != nil {
		return common.Hash{}, err
	}
	if _, err := w.RefreshPresale(ctx); err != nil {
		w.exec.logger.Warn("presale refresh failed after action", "action", action, "error", err)
	}
	return rcpt.TxHash, nil
}

// Deploy enters the Deploy stage and adds liquidity.
func (w *Workflow) Deploy(ctx context.Context, req LiquidityRequest) (LiquidityResult, error) {
	if err := w.session.EnterDeploy(); err != nil {
		return LiquidityResult{}, err
	}
	return w.engine.AddLiquidity(ctx, *w.session.Status().Token, req)
}
