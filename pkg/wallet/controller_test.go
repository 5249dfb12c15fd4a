package wallet

import (
	"context"
	"errors"
	"testing"
	"time"

	"evmxfer/pkg/models"
	"evmxfer/pkg/walleterr"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newTestController(p *MockProvider) *Controller {
	return NewController(p, testRegistry(), Options{
		DefaultNetwork: "polygon",
		ConnectTimeout: time.Second,
	})
}

func expectConnect(p *MockProvider, address string) {
	p.On("RequestAccounts", mock.Anything).Return([]string{address}, nil)
	p.On("ChainID", mock.Anything).Return(int64(137), nil).Once()
}

func drain(sub Subscriber) []Event {
	var events []Event
	for {
		select {
		case e := <-sub:
			events = append(events, e)
		default:
			return events
		}
	}
}

func TestController_ConnectLoadsBalances(t *testing.T) {
	p := new(MockProvider)
	expectConnect(p, testAddress)
	p.On("NativeBalance", mock.Anything, testAddress).Return(units("3000000000000000000"), nil)
	p.On("TokenBalance", mock.Anything, ttkAddress, testAddress).Return(units("2000000000000000000"), nil)

	c := newTestController(p)
	sub := c.Subscribe()
	defer c.Unsubscribe(sub)

	addr, err := c.Connect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, testAddress, addr)

	st := c.State()
	assert.True(t, st.Session.Connected())
	assert.Equal(t, "polygon", st.Network.ID)
	assert.True(t, st.Native.Value.Equal(decimal.NewFromInt(3)))
	assert.True(t, st.Token.Value.Equal(decimal.NewFromInt(2)))
	require.Len(t, st.AvailableTokens, 1)

	var sessions, balances int
	for _, e := range drain(sub) {
		switch e.Type {
		case EventSessionUpdated:
			sessions++
		case EventBalanceUpdated:
			balances++
		}
	}
	assert.Equal(t, 2, sessions)
	assert.GreaterOrEqual(t, balances, 4)
}

func TestController_BalanceFailureNotifies(t *testing.T) {
	p := new(MockProvider)
	expectConnect(p, testAddress)
	p.On("NativeBalance", mock.Anything, testAddress).Return(units("1000000000000000000"), nil)
	p.On("TokenBalance", mock.Anything, ttkAddress, testAddress).Return(nil, errors.New("boom"))

	c := newTestController(p)
	sub := c.Subscribe()
	_, err := c.Connect(context.Background())
	require.NoError(t, err, "balance failures do not fail the connect")

	var notes []Notification
	for _, e := range drain(sub) {
		if e.Type == EventNotification {
			notes = append(notes, e.Data.(Notification))
		}
	}
	require.Len(t, notes, 1)
	assert.Equal(t, "error", notes[0].Level)
	assert.Equal(t, "Failed to fetch token balance. Please try again.", notes[0].Message)
	assert.True(t, c.State().Token.Value.IsZero())
}

func TestController_ChangeNetworkRejectedWhileConnecting(t *testing.T) {
	release := make(chan struct{})
	p := new(MockProvider)
	p.On("RequestAccounts", mock.Anything).Run(func(mock.Arguments) { <-release }).Return([]string{testAddress}, nil)
	p.On("ChainID", mock.Anything).Return(int64(137), nil)
	p.On("NativeBalance", mock.Anything, testAddress).Return(units("0"), nil)
	p.On("TokenBalance", mock.Anything, ttkAddress, testAddress).Return(units("0"), nil)

	c := newTestController(p)
	done := make(chan error, 1)
	go func() {
		_, err := c.Connect(context.Background())
		done <- err
	}()
	require.Eventually(t, func() bool { return c.State().Session.Status == models.StatusConnecting }, time.Second, 5*time.Millisecond)

	err := c.ChangeNetwork(context.Background(), "ethereumSepolia")
	assert.True(t, errors.Is(err, walleterr.ErrRequestAlreadyPending))
	assert.Equal(t, "polygon", c.State().Selection.NetworkID)

	close(release)
	require.NoError(t, <-done)
}

func TestController_ConnectRejectedWhileSwitching(t *testing.T) {
	p := new(MockProvider)
	c := connectedController(t, p)

	started := make(chan struct{})
	release := make(chan struct{})
	p.On("ChainID", mock.Anything).Return(int64(137), nil).Once()
	p.On("SwitchChain", mock.Anything, "0xaa36a7").Run(func(mock.Arguments) {
		close(started)
		<-release
	}).Return(nil).Once()

	done := make(chan error, 1)
	go func() { done <- c.ChangeNetwork(context.Background(), "ethereumSepolia") }()
	<-started

	_, err := c.Connect(context.Background())
	assert.True(t, errors.Is(err, walleterr.ErrRequestAlreadyPending))
	p.AssertNumberOfCalls(t, "RequestAccounts", 1)

	close(release)
	require.NoError(t, <-done)
	st := c.State()
	assert.Equal(t, "ethereumSepolia", st.Selection.NetworkID)
	assert.True(t, st.Session.Connected())
	p.AssertNumberOfCalls(t, "SwitchChain", 1)
}

func TestController_ChangeNetworkConnected(t *testing.T) {
	p := new(MockProvider)
	expectConnect(p, testAddress)
	p.On("NativeBalance", mock.Anything, testAddress).Return(units("1000000000000000000"), nil)
	p.On("TokenBalance", mock.Anything, ttkAddress, testAddress).Return(units("1000000000000000000"), nil)
	p.On("ChainID", mock.Anything).Return(int64(137), nil).Once()
	p.On("SwitchChain", mock.Anything, "0xaa36a7").Return(nil)
	p.On("TokenBalance", mock.Anything, "0x0000000000000000000000000000000000001002", testAddress).Return(units("7000000000000000000"), nil)

	c := newTestController(p)
	_, err := c.Connect(context.Background())
	require.NoError(t, err)

	require.NoError(t, c.ChangeNetwork(context.Background(), "ethereumSepolia"))
	st := c.State()
	assert.Equal(t, "ethereumSepolia", st.Selection.NetworkID)
	require.NotNil(t, st.Selection.Token)
	assert.Equal(t, "TE", st.Selection.Token.Symbol)
	assert.True(t, st.Token.Value.Equal(decimal.NewFromInt(7)))
	p.AssertExpectations(t)
}

func TestController_ChangeNetworkDisconnected(t *testing.T) {
	p := new(MockProvider)
	c := newTestController(p)

	require.NoError(t, c.ChangeNetwork(context.Background(), "ethereumSepolia"))
	assert.Equal(t, "ethereumSepolia", c.State().Selection.NetworkID)
	assert.True(t, errors.Is(c.ChangeNetwork(context.Background(), "moon"), walleterr.ErrUnsupported))
	p.AssertExpectations(t)
}

func TestController_Transfer(t *testing.T) {
	p := new(MockProvider)
	expectConnect(p, testAddress)
	p.On("NativeBalance", mock.Anything, testAddress).Return(units("1000000000000000000"), nil)
	p.On("TokenBalance", mock.Anything, ttkAddress, testAddress).Return(units("2000000000000000000"), nil).Once()
	p.On("SubmitTokenTransfer", mock.Anything, ttkAddress, recipient, amountIs("1500000000000000000")).Return("0xfeed", nil).Once()
	p.On("TokenBalance", mock.Anything, ttkAddress, testAddress).Return(units("500000000000000000"), nil).Once()

	c := newTestController(p)
	sub := c.Subscribe()
	_, err := c.Connect(context.Background())
	require.NoError(t, err)

	_, err = c.Transfer(context.Background(), recipient, "2.5")
	assert.True(t, errors.Is(err, walleterr.ErrInvalid))

	receipt, err := c.Transfer(context.Background(), recipient, "1.5")
	require.NoError(t, err)
	assert.Equal(t, "0xfeed", receipt.TxID)
	assert.Equal(t, "https://polygonscan.com/tx/0xfeed", receipt.ExplorerURL)
	assert.True(t, c.State().Token.Value.Equal(decimal.RequireFromString("0.5")))

	confirmed := false
	for _, e := range drain(sub) {
		if e.Type == EventTransferConfirmed {
			confirmed = true
			assert.Equal(t, receipt, e.Data)
		}
	}
	assert.True(t, confirmed)
	p.AssertNumberOfCalls(t, "NativeBalance", 2)
	p.AssertNumberOfCalls(t, "SubmitTokenTransfer", 1)
}

func TestController_DisconnectClearsBalances(t *testing.T) {
	p := new(MockProvider)
	expectConnect(p, testAddress)
	p.On("NativeBalance", mock.Anything, testAddress).Return(units("1000000000000000000"), nil)
	p.On("TokenBalance", mock.Anything, ttkAddress, testAddress).Return(units("1000000000000000000"), nil)

	c := newTestController(p)
	_, err := c.Connect(context.Background())
	require.NoError(t, err)

	c.Disconnect()
	st := c.State()
	assert.Equal(t, models.StatusDisconnected, st.Session.Status)
	assert.True(t, st.Native.Value.IsZero())
	assert.True(t, st.Token.Value.IsZero())
	assert.NoError(t, c.Refresh(context.Background()))
}

func TestController_SetToken(t *testing.T) {
	c := newTestController(new(MockProvider))
	assert.NoError(t, c.SetToken(context.Background(), "TTK"))
	assert.True(t, errors.Is(c.SetToken(context.Background(), "DOGE"), walleterr.ErrUnsupported))
}

func TestController_SubscribeUnsubscribe(t *testing.T) {
	c := newTestController(new(MockProvider))
	sub := c.Subscribe()

	c.mu.RLock()
	assert.Len(t, c.subscribers, 1)
	c.mu.RUnlock()

	c.Unsubscribe(sub)
	c.mu.RLock()
	assert.Empty(t, c.subscribers)
	c.mu.RUnlock()
	_, open := <-sub
	assert.False(t, open)
}
