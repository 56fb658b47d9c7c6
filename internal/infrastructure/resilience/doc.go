/*
Package resilience provides the circuit breaker placed in front of the
broker's collaborators (signer, broadcaster, registries).

The breaker only fails fast. It never retries: a retry is always the original
caller's decision, made by submitting a fresh request.

# Usage

	breakers := resilience.NewGroup(resilience.Settings{
		Timeout: 30 * time.Second,
		OnStateChange: func(name string, from, to resilience.State) {
			metrics.SetBreakerState(name, int(to))
		},
	})

	sig, err := resilience.Call(ctx, breakers.Get("signer"), func(ctx context.Context) (string, error) {
		return signer.Sign(ctx, payload)
	})

# States

	Closed --[failures]-> Open --[timeout]-> Half-Open --[successes]-> Closed
	                                           |
	                                    [failure]
	                                           |
	                                           v
	                                         Open
*/
package resilience
