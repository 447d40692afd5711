package core

import "github.com/shopspring/decimal"

// AssetQuery filters a wallet asset lookup.
type AssetQuery struct {
	ChainFilter   []uint64 `json:"chainFilter,omitempty"`
	AssetFilter   string   `json:"assetFilter,omitempty"`
	AssetTypes    []string `json:"assetTypeFilter,omitempty"`
	IncludePrices bool     `json:"includePrices,omitempty"`
}

// Asset is one holding of the wallet, with the raw on-chain balance already
// normalized by the token's decimals.
type Asset struct {
	ChainID  uint64          `json:"chainId"`
	Address  string          `json:"address,omitempty"`
	Symbol   string          `json:"symbol"`
	Decimals int32           `json:"decimals"`
	Type     string          `json:"type"`
	Balance  decimal.Decimal `json:"balance"`
	PriceUSD decimal.Decimal `json:"priceUsd,omitempty"`
}
