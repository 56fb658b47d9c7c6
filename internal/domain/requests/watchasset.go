package requests

import "github.com/GriffinCanCode/walletbroker/internal/shared/types"

// WatchAssetQueue holds pending wallet_watchAsset requests
type WatchAssetQueue = Queue[types.WatchAssetPayload]

// NewWatchAssetQueue creates the watch-asset queue. Watch-asset requests are
// never deduplicated; each page call gets its own entry.
func NewWatchAssetQueue() *WatchAssetQueue {
	return NewQueue(Config[types.WatchAssetPayload]{
		Kind: types.KindWatchAsset,
		View: watchAssetView,
	})
}

func watchAssetView(r types.PendingRequest[types.WatchAssetPayload]) types.View {
	return types.WatchAssetRequest{
		ID:        r.ID,
		URL:       r.URL,
		Request:   r.Payload.Request,
		Token:     r.Payload.Token,
		CreatedAt: r.CreatedAt,
	}
}
