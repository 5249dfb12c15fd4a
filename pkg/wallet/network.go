package wallet

import (
	"context"

	"evmxfer/pkg/models"
	"evmxfer/pkg/walleterr"
)

// SwitchNetwork asks the wallet to move to target unless it is already there.
// Rejections are classified and returned; the switch is never retried.
func SwitchNetwork(ctx context.Context, p Provider, currentChainID int64, target models.NetworkDescriptor) error {
	if currentChainID == target.ChainID {
		return nil
	}
	if err := p.SwitchChain(ctx, target.ChainIDHex()); err != nil {
		return walleterr.Classify(err)
	}
	return nil
}
