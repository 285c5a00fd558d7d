package listing

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yolodolo42/deployfi/internal/chain"
	"github.com/yolodolo42/deployfi/internal/contracts"
	"github.com/yolodolo42/deployfi/internal/failure"
)

var tokenAddr = common.HexToAddress("0x70CE000000000000000000000000000000000042")

func TestSession_Transitions(t *testing.T) {
	t.Run("approve requires a token", func(t *testing.T) {
		s := NewSession()
		assert.ErrorIs(t, s.EnterApprove(), ErrNoToken)
		assert.ErrorIs(t, s.EnterDeploy(), ErrNoToken)
		assert.Equal(t, StageSelect, s.Status().Stage)
	})

	t.Run("deploy unreachable from select", func(t *testing.T) {
		for _, exempt := range []bool{false, true} {
			s := NewSession()
			require.NoError(t, s.Select(Token{Address: tokenAddr, ApprovalExempt: exempt}))
			assert.ErrorIs(t, s.EnterDeploy(), ErrInvalidTransition)
			assert.Equal(t, StageSelect, s.Status().Stage)
		}
	})

	t.Run("deploy requires grant for non-exempt token", func(t *testing.T) {
		s := NewSession()
		require.NoError(t, s.Select(Token{Address: tokenAddr, Version: contracts.VersionV2}))
		require.NoError(t, s.EnterApprove())
		assert.False(t, s.Status().CanDeploy)
		assert.ErrorIs(t, s.EnterDeploy(), ErrApprovalRequired)

		require.NoError(t, s.Grant(s.ID(), Approval{Target: big.NewInt(400)}))
		assert.True(t, s.Status().CanDeploy)
		require.NoError(t, s.EnterDeploy())
		assert.Equal(t, StageDeploy, s.Status().Stage)
		require.NoError(t, s.EnterDeploy(), "idempotent")
	})

	t.Run("exempt token still passes through approve", func(t *testing.T) {
		s := NewSession()
		require.NoError(t, s.Select(Token{Address: tokenAddr, Version: contracts.VersionV4, ApprovalExempt: true}))
		require.NoError(t, s.EnterApprove())
		require.NoError(t, s.EnterDeploy())
		assert.False(t, s.Status().Approval.Granted)
	})

	t.Run("reset approval stays in approve", func(t *testing.T) {
		s := NewSession()
		require.NoError(t, s.Select(Token{Address: tokenAddr}))
		require.NoError(t, s.EnterApprove())
		require.NoError(t, s.Grant(s.ID(), Approval{}))
		require.NoError(t, s.ResetApproval())

		st := s.Status()
		assert.Equal(t, StageApprove, st.Stage)
		assert.False(t, st.Approval.Granted)
		assert.False(t, st.CanDeploy)
	})

	t.Run("no backward transitions", func(t *testing.T) {
		s := NewSession()
		require.NoError(t, s.Select(Token{Address: tokenAddr, ApprovalExempt: true}))
		require.NoError(t, s.EnterApprove())
		require.NoError(t, s.EnterDeploy())

		assert.ErrorIs(t, s.Select(Token{}), ErrInvalidTransition)
		assert.ErrorIs(t, s.EnterApprove(), ErrInvalidTransition)
		assert.ErrorIs(t, s.ResetApproval(), ErrInvalidTransition)
	})

	t.Run("presale gate requires finalized", func(t *testing.T) {
		s := NewSession()
		require.NoError(t, s.Select(Token{Address: tokenAddr, ApprovalExempt: true, PresaleGated: true}))
		require.NoError(t, s.EnterApprove())
		assert.ErrorIs(t, s.EnterDeploy(), ErrPresaleNotFinalized)

		require.NoError(t, s.SetPresale(s.ID(), PresaleState{Finalized: false}))
		assert.ErrorIs(t, s.EnterDeploy(), ErrPresaleNotFinalized)

		require.NoError(t, s.SetPresale(s.ID(), PresaleState{Finalized: true}))
		assert.NoError(t, s.EnterDeploy())
	})
}

func TestSession_StaleResults(t *testing.T) {
	s := NewSession()
	require.NoError(t, s.Select(Token{Address: tokenAddr}))
	require.NoError(t, s.EnterApprove())
	old := s.ID()

	s.Reset()

	assert.NotEqual(t, old, s.ID())
	assert.ErrorIs(t, s.Grant(old, Approval{}), ErrStaleSession)
	assert.ErrorIs(t, s.SetPresale(old, PresaleState{Finalized: true}), ErrStaleSession)
	assert.Equal(t, StageSelect, s.Status().Stage)
	assert.Nil(t, s.Status().Token)
}

func TestSession_OnChange(t *testing.T) {
	s := NewSession()
	var stages []Stage
	stop := s.OnChange(func(st Status) { stages = append(stages, st.Stage) })

	require.NoError(t, s.Select(Token{Address: tokenAddr, ApprovalExempt: true}))
	require.NoError(t, s.EnterApprove())
	assert.Error(t, s.Select(Token{}))
	stop()
	require.NoError(t, s.EnterDeploy())

	// Failed transitions and removed observers are silent.
	assert.Equal(t, []Stage{StageSelect, StageApprove}, stages)
}

func TestResolveToken(t *testing.T) {
	profile, err := chain.DefaultRegistry().Resolve(11155111)
	require.NoError(t, err)

	tok, err := ResolveToken(profile, tokenAddr, contracts.VersionV4)
	require.NoError(t, err)
	assert.True(t, tok.ApprovalExempt)
	assert.True(t, tok.LiquidityCall)

	tok, err = ResolveToken(profile, tokenAddr, contracts.VersionV1)
	require.NoError(t, err)
	assert.False(t, tok.ApprovalExempt)
	assert.False(t, tok.LiquidityCall)

	_, err = ResolveToken(profile, tokenAddr, contracts.VersionLending)
	assert.ErrorIs(t, err, failure.ErrConfiguration)

	_, err = ResolveToken(profile, tokenAddr, "v9")
	assert.ErrorIs(t, err, failure.ErrConfiguration)
}
