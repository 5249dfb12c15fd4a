package rpc

import (
	"context"
	"fmt"
	"time"

	"evmxfer/pkg/config"
	"evmxfer/pkg/models"

	"github.com/ethereum/go-ethereum/ethclient"
)

var CheckTimeout = 10 * time.Second

// ProbeRPC dials url, reads its chain id and measures the round trip.
func ProbeRPC(ctx context.Context, url string) models.RPCCheck {
	res := models.RPCCheck{URL: url}
	ctx, cancel := context.WithTimeout(ctx, CheckTimeout)
	defer cancel()

	start := time.Now()
	client, err := ethclient.DialContext(ctx, url)
	if err != nil {
		res.Status = "error"
		res.Error = err.Error()
		return res
	}
	defer client.Close()

	id, err := client.ChainID(ctx)
	if err != nil {
		res.Status = "error"
		res.Error = fmt.Sprintf("Failed to get ChainID: %v", err)
		return res
	}
	res.Status = "ok"
	res.ChainID = id.Int64()
	res.Latency = time.Since(start)
	return res
}

// CheckNetwork probes every RPC URL of n. A network whose RPCs disagree on the
// chain id is marked inconsistent; an RPC that disagrees with the configured id
// carries a mismatch error.
func CheckNetwork(ctx context.Context, n config.NetworkConfig) models.NetworkCheck {
	out := models.NetworkCheck{ID: n.Key, Name: n.Name, ConfigChainID: n.ChainID}
	for _, url := range n.RPCURLs {
		res := ProbeRPC(ctx, url)
		if res.Status == "ok" {
			if out.ObservedChainID == 0 {
				out.ObservedChainID = res.ChainID
			} else if out.ObservedChainID != res.ChainID {
				out.Inconsistent = true
			}
			if n.ChainID != 0 && res.ChainID != n.ChainID {
				res.Error = fmt.Sprintf("Mismatch! Expected %d", n.ChainID)
			}
		}
		out.RPCs = append(out.RPCs, res)
	}
	return out
}

// CheckConfig validates cfg and probes all networks. Networks configured without
// a chain id get the observed one filled in; ConfigUpdated reports whether that
// happened. Saving is left to the caller.
func CheckConfig(ctx context.Context, cfg *config.Config) models.CheckReport {
	report := models.CheckReport{
		ValidStructure: true,
		NetworkCount:   len(cfg.Networks),
		TokenCount:     len(cfg.Tokens),
	}
	if problems := cfg.Validate(); len(problems) > 0 {
		report.ValidStructure = false
		report.StructureErrors = problems
		return report
	}

	for i := range cfg.Networks {
		n := &cfg.Networks[i]
		res := CheckNetwork(ctx, *n)
		if n.ChainID == 0 && res.ObservedChainID != 0 && !res.Inconsistent {
			n.ChainID = res.ObservedChainID
			res.ChainIDUpdated = true
			report.ConfigUpdated = true
		}
		if res.Inconsistent {
			report.InconsistentNetworks = append(report.InconsistentNetworks, n.Key)
		}
		report.Networks = append(report.Networks, res)
	}
	return report
}
