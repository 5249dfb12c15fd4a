package wallet

import (
	"context"
	"math/big"

	"evmxfer/pkg/config"

	"github.com/stretchr/testify/mock"
)

const (
	testAddress  = "0x1111111111111111111111111111111111111111"
	otherAddress = "0x2222222222222222222222222222222222222222"
	recipient    = "0x3333333333333333333333333333333333333333"
	ttkAddress   = "0x0000000000000000000000000000000000001001"
)

type MockProvider struct {
	mock.Mock
}

func (m *MockProvider) RequestAccounts(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	accounts, _ := args.Get(0).([]string)
	return accounts, args.Error(1)
}

func (m *MockProvider) Accounts(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	accounts, _ := args.Get(0).([]string)
	return accounts, args.Error(1)
}

func (m *MockProvider) ChainID(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockProvider) SwitchChain(ctx context.Context, chainIDHex string) error {
	args := m.Called(ctx, chainIDHex)
	return args.Error(0)
}

func (m *MockProvider) NativeBalance(ctx context.Context, address string) (*big.Int, error) {
	args := m.Called(ctx, address)
	b, _ := args.Get(0).(*big.Int)
	return b, args.Error(1)
}

func (m *MockProvider) TokenBalance(ctx context.Context, contract, holder string) (*big.Int, error) {
	args := m.Called(ctx, contract, holder)
	b, _ := args.Get(0).(*big.Int)
	return b, args.Error(1)
}

func (m *MockProvider) SubmitTokenTransfer(ctx context.Context, contract, recipient string, amount *big.Int) (string, error) {
	args := m.Called(ctx, contract, recipient, amount)
	return args.String(0), args.Error(1)
}

func testRegistry() *config.Registry {
	return config.RegistryFromConfig(config.DefaultConfig())
}

// units parses a base-10 integer amount.
func units(s string) *big.Int {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		panic("bad integer " + s)
	}
	return v
}

func amountIs(want string) any {
	return mock.MatchedBy(func(a *big.Int) bool { return a != nil && a.String() == want })
}
