package commitment

import "github.com/btcsuite/btcd/chaincfg"

// paramsForNetwork resolves the chaincfg.Params used to decode output
// addresses for a given network id. tape is a rewindbitcoin-operated
// network sharing mainnet's address encoding; regtest uses btcd's own
// regression test params.
func paramsForNetwork(networkID string) (*chaincfg.Params, bool) {
	switch networkID {
	case "bitcoin", "tape":
		return &chaincfg.MainNetParams, true
	case "testnet":
		return &chaincfg.TestNet3Params, true
	case "regtest":
		return &chaincfg.RegressionNetParams, true
	default:
		return nil, false
	}
}
