package wallet

import (
	"context"
	"errors"
	"testing"

	"evmxfer/pkg/config"
	"evmxfer/pkg/models"
	"evmxfer/pkg/walleterr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestNewSelector_InitialToken(t *testing.T) {
	s := NewSelector(new(MockProvider), testRegistry(), "polygon", nil)
	sel := s.Selection()
	assert.Equal(t, "polygon", sel.NetworkID)
	require.NotNil(t, sel.Token)
	assert.Equal(t, "TTK", sel.Token.Symbol)

	s = NewSelector(new(MockProvider), testRegistry(), "moon", nil)
	assert.Equal(t, "polygon", s.Selection().NetworkID, "unknown initial network falls back to the first")
}

func TestChangeNetwork_Disconnected(t *testing.T) {
	p := new(MockProvider)
	s := NewSelector(p, testRegistry(), "polygon", nil)

	changed, err := s.ChangeNetwork(context.Background(), "ethereumSepolia", false)
	require.NoError(t, err)
	assert.True(t, changed)

	sel := s.Selection()
	assert.Equal(t, "ethereumSepolia", sel.NetworkID)
	require.NotNil(t, sel.Token)
	assert.Equal(t, "TE", sel.Token.Symbol)
	p.AssertNotCalled(t, "ChainID", mock.Anything)
	p.AssertNotCalled(t, "SwitchChain", mock.Anything, mock.Anything)
}

func TestChangeNetwork_TokensAlwaysMatchRegistry(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Networks = append(cfg.Networks, config.NetworkConfig{Key: "empty", Name: "Empty", ChainID: 99})
	cfg.Tokens = append(cfg.Tokens, config.TokenConfig{
		Symbol: "TT2", Address: "0x0000000000000000000000000000000000001003", Decimals: 6, Network: "polygon",
	})
	r := config.RegistryFromConfig(cfg)
	s := NewSelector(new(MockProvider), r, "polygon", nil)

	sequence := []string{"ethereumSepolia", "polygon", "empty", "moon", "polygon", "polygon", "empty", "ethereumSepolia"}
	for _, id := range sequence {
		_, _ = s.ChangeNetwork(context.Background(), id, false)

		sel := s.Selection()
		want := r.TokensFor(sel.NetworkID)
		assert.Equal(t, want, s.AvailableTokens(), "after %s", id)
		if len(want) == 0 {
			assert.Nil(t, sel.Token, "after %s", id)
			continue
		}
		require.NotNil(t, sel.Token, "after %s", id)
		assert.Contains(t, want, *sel.Token)
	}
}

func TestChangeNetwork_SameAndUnknown(t *testing.T) {
	p := new(MockProvider)
	s := NewSelector(p, testRegistry(), "polygon", nil)

	changed, err := s.ChangeNetwork(context.Background(), "polygon", true)
	assert.NoError(t, err)
	assert.False(t, changed)

	changed, err = s.ChangeNetwork(context.Background(), "moon", true)
	assert.False(t, changed)
	assert.True(t, errors.Is(err, walleterr.ErrUnsupported))
	assert.Equal(t, "Unsupported network: moon", err.Error())
	assert.Equal(t, "polygon", s.Selection().NetworkID)
	p.AssertExpectations(t)
}

func TestChangeNetwork_ConnectedSwitches(t *testing.T) {
	p := new(MockProvider)
	p.On("ChainID", mock.Anything).Return(int64(137), nil)
	p.On("SwitchChain", mock.Anything, "0xaa36a7").Return(nil).Once()

	s := NewSelector(p, testRegistry(), "polygon", nil)
	var got []models.Selection
	s.OnChange(func(sel models.Selection) { got = append(got, sel) })

	changed, err := s.ChangeNetwork(context.Background(), "ethereumSepolia", true)
	require.NoError(t, err)
	assert.True(t, changed)
	require.Len(t, got, 1)
	assert.Equal(t, "ethereumSepolia", got[0].NetworkID)
	p.AssertExpectations(t)
}

func TestChangeNetwork_ConnectedSwitchRejected(t *testing.T) {
	p := new(MockProvider)
	p.On("ChainID", mock.Anything).Return(int64(137), nil)
	p.On("SwitchChain", mock.Anything, "0xaa36a7").Return(&walleterr.ProviderError{Code: 4001, Message: "rejected"})

	s := NewSelector(p, testRegistry(), "polygon", nil)
	changed, err := s.ChangeNetwork(context.Background(), "ethereumSepolia", true)
	assert.False(t, changed)
	assert.True(t, errors.Is(err, walleterr.ErrUserRejected))

	sel := s.Selection()
	assert.Equal(t, "polygon", sel.NetworkID)
	require.NotNil(t, sel.Token)
	assert.Equal(t, "TTK", sel.Token.Symbol)
}

func TestSetTokenBySymbol(t *testing.T) {
	s := NewSelector(new(MockProvider), testRegistry(), "polygon", nil)

	tok, err := s.SetTokenBySymbol("ttk")
	require.NoError(t, err)
	assert.Equal(t, ttkAddress, tok.Address)

	_, err = s.SetTokenBySymbol("TE")
	assert.True(t, errors.Is(err, walleterr.ErrUnsupported))
}

func TestSelection_IsACopy(t *testing.T) {
	s := NewSelector(new(MockProvider), testRegistry(), "polygon", nil)
	sel := s.Selection()
	sel.Token.Symbol = "mutated"
	assert.Equal(t, "TTK", s.Selection().Token.Symbol)
}

func TestAdopt(t *testing.T) {
	p := new(MockProvider)
	s := NewSelector(p, testRegistry(), "polygon", nil)
	assert.False(t, s.Adopt("polygon"))
	assert.False(t, s.Adopt("moon"))
	assert.True(t, s.Adopt("ethereumSepolia"))
	assert.Equal(t, "ethereumSepolia", s.Selection().NetworkID)
	p.AssertExpectations(t)
}
