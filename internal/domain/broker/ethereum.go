package broker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/walletbroker/internal/domain/channels"
	"github.com/GriffinCanCode/walletbroker/internal/shared/codec"
	"github.com/GriffinCanCode/walletbroker/internal/shared/errs"
	"github.com/GriffinCanCode/walletbroker/internal/shared/types"
	"github.com/GriffinCanCode/walletbroker/internal/shared/utils"
)

// Provider methods that become pending requests
const (
	MethodAddEthereumChain = "wallet_addEthereumChain"
	MethodWatchAsset       = "wallet_watchAsset"
)

// EthRequest serves one EIP-1193 request from a page. Methods that need
// the user's decision are queued and the call returns once it is made;
// anything else goes to the forwarder when one is configured.
func (b *Broker) EthRequest(ctx context.Context, c channels.Caller, req types.EthProviderRequest) (any, error) {
	switch req.Method {
	case MethodAddEthereumChain:
		return b.addEthereumChain(ctx, c, req)
	case MethodWatchAsset:
		return b.watchAsset(ctx, c, req)
	case types.MethodPersonalSign, types.MethodEthSign, types.MethodSignTypedDataV4, types.MethodSendTransaction:
		return b.ethSign(ctx, c, req)
	}

	return b.forward(ctx, b.chainOf(req), req.Method, req.Params)
}

// forward sends method to the node of the decimal chainID
func (b *Broker) forward(ctx context.Context, chainID, method string, params json.RawMessage) (any, error) {
	if b.forwarder == nil {
		return nil, fmt.Errorf("%w: %s", errs.ErrUnsupportedMethod, method)
	}
	result, err := b.forwarder.Forward(ctx, chainID, method, params)
	switch {
	case err == nil:
	case errors.Is(err, errs.ErrUnsupportedMethod), errors.Is(err, errs.ErrPayloadShape):
		return nil, err
	default:
		return nil, errs.Collaborator("rpc", err)
	}
	return result, nil
}

func (b *Broker) addEthereumChain(ctx context.Context, c channels.Caller, req types.EthProviderRequest) (any, error) {
	var params []types.AddEthereumChainParameter
	if err := codec.Unmarshal(req.Params, &params); err != nil || len(params) == 0 {
		return nil, errs.Shape("%s expects [AddEthereumChainParameter]", req.Method)
	}
	network := params[0]
	if err := b.validate.Struct(network); err != nil {
		return nil, errs.Shape("%s: %v", req.Method, err)
	}
	if utils.NormalizeChainID(network.ChainID) == "" {
		return nil, errs.Shape("%s: invalid chainId %q", req.Method, network.ChainID)
	}

	ticket, err := b.queues.Networks.Enqueue(c.Origin, network)
	if err != nil {
		return nil, err
	}
	b.enqueued(types.KindNetworkAdd, c, ticket)
	return ticket.Wait(ctx)
}

func (b *Broker) watchAsset(ctx context.Context, c channels.Caller, req types.EthProviderRequest) (any, error) {
	// EIP-747 passes an object; some providers wrap it in an array
	raw := bytes.TrimSpace(req.Params)
	if len(raw) > 0 && raw[0] == '[' {
		var wrapped []json.RawMessage
		if err := codec.Unmarshal(raw, &wrapped); err != nil || len(wrapped) == 0 {
			return nil, errs.Shape("%s expects WatchAssetParams", req.Method)
		}
		raw = wrapped[0]
	}

	var asset types.WatchAssetBase
	if err := codec.Unmarshal(raw, &asset); err != nil {
		return nil, errs.Shape("%s: %v", req.Method, err)
	}
	if err := b.validate.Struct(asset); err != nil {
		return nil, errs.Shape("%s: %v", req.Method, err)
	}

	chain, err := utils.ParseChainID(b.chainOf(req))
	if err != nil || !chain.IsInt64() {
		return nil, errs.Shape("%s: unknown chain", req.Method)
	}

	token := b.describeToken(ctx, chain.Int64(), asset.Options)
	ticket, err := b.queues.WatchAssets.Enqueue(c.Origin, types.WatchAssetPayload{Request: asset, Token: token})
	if err != nil {
		return nil, err
	}
	b.enqueued(types.KindWatchAsset, c, ticket)
	return ticket.Wait(ctx)
}

// describeToken builds the token descriptor. Metadata only fills display
// fields; a lookup failure never blocks the request.
func (b *Broker) describeToken(ctx context.Context, chainID int64, opts types.WatchAssetOptions) types.CustomErc20Token {
	address := common.HexToAddress(opts.Address).Hex()
	token := types.CustomErc20Token{
		ID:              fmt.Sprintf("%d-evm-erc20-%s", chainID, strings.ToLower(address)),
		Type:            "evm-erc20",
		Symbol:          opts.Symbol,
		Decimals:        opts.Decimals,
		Logo:            opts.Image,
		ContractAddress: address,
		EvmNetwork:      types.EvmNetworkRef{ID: chainID},
		IsCustom:        true,
	}
	if b.metadata == nil {
		return token
	}

	meta, err := b.metadata.Resolve(ctx, chainID, address)
	if err != nil {
		b.logger.Debug("Token metadata unavailable", zap.String("address", address), zap.Error(err))
		return token
	}
	token.IsTestnet = meta.IsTestnet
	if token.Logo == "" {
		token.Logo = meta.Logo
	}
	return token
}

func (b *Broker) ethSign(ctx context.Context, c channels.Caller, req types.EthProviderRequest) (any, error) {
	payload, err := signPayload(req.Method, req.Params)
	if err != nil {
		return nil, err
	}
	if payload.ChainID == "" {
		payload.ChainID = b.chainOf(req)
	}

	ticket, err := b.queues.EthSigning.Enqueue(c.Origin, payload)
	if err != nil {
		return nil, err
	}
	b.enqueued(types.KindEthSigning, c, ticket)
	return ticket.Wait(ctx)
}

// signPayload extracts the account and the data to sign from the method's
// positional params
func signPayload(method string, params json.RawMessage) (types.SignPayload, error) {
	var args []json.RawMessage
	if err := codec.Unmarshal(params, &args); err != nil {
		return types.SignPayload{}, errs.Shape("%s expects positional params", method)
	}

	var accountArg, dataArg int
	switch method {
	case types.MethodPersonalSign:
		accountArg, dataArg = 1, 0
	case types.MethodEthSign, types.MethodSignTypedDataV4:
		accountArg, dataArg = 0, 1
	case types.MethodSendTransaction:
		return txPayload(args)
	}
	if len(args) < 2 {
		return types.SignPayload{}, errs.Shape("%s expects 2 params, got %d", method, len(args))
	}

	var account string
	if err := codec.Unmarshal(args[accountArg], &account); err != nil || !common.IsHexAddress(account) {
		return types.SignPayload{}, errs.Shape("%s: invalid account", method)
	}

	return types.SignPayload{
		Scope:   types.ScopeEthereum,
		Method:  method,
		Account: account,
		Payload: args[dataArg],
	}, nil
}

func txPayload(args []json.RawMessage) (types.SignPayload, error) {
	if len(args) == 0 {
		return types.SignPayload{}, errs.Shape("%s expects a transaction", types.MethodSendTransaction)
	}

	var tx struct {
		From    string `json:"from"`
		ChainID string `json:"chainId"`
	}
	if err := codec.Unmarshal(args[0], &tx); err != nil || !common.IsHexAddress(tx.From) {
		return types.SignPayload{}, errs.Shape("%s: transaction without a valid from", types.MethodSendTransaction)
	}

	return types.SignPayload{
		Scope:   types.ScopeEthereum,
		Method:  types.MethodSendTransaction,
		Account: tx.From,
		ChainID: utils.NormalizeChainID(tx.ChainID),
		Payload: args[0],
	}, nil
}

// chainOf returns the decimal chain id the page is on
func (b *Broker) chainOf(req types.EthProviderRequest) string {
	if chain := utils.NormalizeChainID(req.ChainID); chain != "" {
		return chain
	}
	return utils.NormalizeChainID(b.defaultChain)
}
