package types

import (
	"encoding/json"
	"strconv"
	"time"
)

// NativeCurrency describes a chain's gas token (EIP-3085)
type NativeCurrency struct {
	Name     string `json:"name" validate:"required"`
	Symbol   string `json:"symbol" validate:"required,max=12"`
	Decimals int    `json:"decimals" validate:"gte=0,lte=36"`
}

// AddEthereumChainParameter is the wallet_addEthereumChain parameter (EIP-3085)
type AddEthereumChainParameter struct {
	ChainID           string         `json:"chainId" validate:"required,startswith=0x,hexadecimal"`
	ChainName         string         `json:"chainName" validate:"required"`
	NativeCurrency    NativeCurrency `json:"nativeCurrency" validate:"required"`
	RPCURLs           []string       `json:"rpcUrls" validate:"required,min=1,dive,url"`
	BlockExplorerURLs []string       `json:"blockExplorerUrls,omitempty" validate:"omitempty,dive,url"`
	IconURLs          []string       `json:"iconUrls,omitempty" validate:"omitempty,dive,url"`
}

// NetworkAddRequest is a pending network-add request as the UI sees it.
// IDStr is the human-readable duplicate-detection key.
type NetworkAddRequest struct {
	ID        string                    `json:"id"`
	IDStr     string                    `json:"idStr"`
	URL       string                    `json:"url"`
	Network   AddEthereumChainParameter `json:"network"`
	CreatedAt time.Time                 `json:"createdAt"`
}

func (r NetworkAddRequest) RequestID() string { return r.ID }

// WatchAssetOptions are the EIP-747 token options
type WatchAssetOptions struct {
	Address  string `json:"address" validate:"required,eth_addr"`
	Symbol   string `json:"symbol" validate:"required,max=11"`
	Decimals int    `json:"decimals" validate:"gte=0,lte=36"`
	Image    string `json:"image,omitempty" validate:"omitempty,url"`
}

// WatchAssetBase is the wallet_watchAsset parameter (EIP-747)
type WatchAssetBase struct {
	Type    string            `json:"type" validate:"required,eq=ERC20"`
	Options WatchAssetOptions `json:"options" validate:"required"`
}

// EvmNetworkRef references an EVM network by numeric chain ID
type EvmNetworkRef struct {
	ID int64 `json:"id"`
}

// TokenRef references a token by its ID
type TokenRef struct {
	ID string `json:"id"`
}

// EthereumRPC is one RPC endpoint of a network
type EthereumRPC struct {
	URL       string `json:"url" validate:"required,url"`
	IsHealthy bool   `json:"isHealthy"`
}

// CustomEvmNetwork is a user-managed EVM network. Networks approved through
// wallet_addEthereumChain are stored in the same shape.
type CustomEvmNetwork struct {
	ID             int64          `json:"id" validate:"gt=0"`
	IsTestnet      bool           `json:"isTestnet"`
	SortIndex      *int           `json:"sortIndex"`
	Name           string         `json:"name" validate:"required"`
	NativeToken    *TokenRef      `json:"nativeToken"`
	Tokens         []TokenRef     `json:"tokens"`
	ExplorerURL    string         `json:"explorerUrl,omitempty" validate:"omitempty,url"`
	RPCs           []EthereumRPC  `json:"rpcs" validate:"required,min=1,dive"`
	IsHealthy      bool           `json:"isHealthy"`
	SubstrateChain *EvmNetworkRef `json:"substrateChain"`
	IsCustom       bool           `json:"isCustom"`
	ExplorerURLs   []string       `json:"explorerUrls" validate:"omitempty,dive,url"`
	IconURLs       []string       `json:"iconUrls" validate:"omitempty,dive,url"`
}

func (n CustomEvmNetwork) RequestID() string { return strconv.FormatInt(n.ID, 10) }

// ChainRequest is an EIP-1193 request from the approval UI, which names
// the chain it is talking to explicitly
type ChainRequest struct {
	Method  string          `json:"method" validate:"required"`
	Params  json.RawMessage `json:"params,omitempty"`
	ChainID int64           `json:"chainId" validate:"gt=0"`
}

// CustomErc20Token is the token descriptor derived from a watch-asset request
type CustomErc20Token struct {
	ID              string        `json:"id"`
	Type            string        `json:"type"`
	IsTestnet       bool          `json:"isTestnet"`
	Symbol          string        `json:"symbol"`
	Decimals        int           `json:"decimals"`
	Logo            string        `json:"logo"`
	ContractAddress string        `json:"contractAddress"`
	EvmNetwork      EvmNetworkRef `json:"evmNetwork"`
	IsCustom        bool          `json:"isCustom"`
}

// WatchAssetPayload is what the watch-asset store holds per request
type WatchAssetPayload struct {
	Request WatchAssetBase   `json:"request"`
	Token   CustomErc20Token `json:"token"`
}

// WatchAssetRequest is a pending watch-asset request as the UI sees it
type WatchAssetRequest struct {
	ID        string           `json:"id"`
	URL       string           `json:"url"`
	Request   WatchAssetBase   `json:"request"`
	Token     CustomErc20Token `json:"token"`
	CreatedAt time.Time        `json:"createdAt"`
}

func (r WatchAssetRequest) RequestID() string { return r.ID }

// EthProviderRequest is the opaque EIP-1193 request forwarded by a page.
// ChainID is the hex chain the page is currently connected to, if known.
// JSONRPC and RPCID are accepted from providers that send full JSON-RPC
// objects and are otherwise ignored.
type EthProviderRequest struct {
	Method  string          `json:"method" validate:"required"`
	Params  json.RawMessage `json:"params,omitempty"`
	ChainID string          `json:"chainId,omitempty" validate:"omitempty,startswith=0x,hexadecimal"`
	JSONRPC string          `json:"jsonrpc,omitempty"`
	RPCID   json.RawMessage `json:"id,omitempty"`
}

// EthApproveSignAndSend approves a transaction with fee overrides.
// Fee values are opaque strings passed through to the signer.
type EthApproveSignAndSend struct {
	ID                   string `json:"id" validate:"required"`
	MaxFeePerGas         string `json:"maxFeePerGas" validate:"required"`
	MaxPriorityFeePerGas string `json:"maxPriorityFeePerGas" validate:"required"`
}

// TokenMetadata is display-only information about a token contract
type TokenMetadata struct {
	Name      string `json:"name,omitempty"`
	Symbol    string `json:"symbol,omitempty"`
	Logo      string `json:"logo,omitempty"`
	IsTestnet bool   `json:"isTestnet"`
}
