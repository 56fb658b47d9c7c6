// Package resolver implements approve and cancel decisions for the
// approval UI.
//
// A decision removes the request from its store first, then calls the
// collaborator. The original caller receives the collaborator's result, or
// its error verbatim; the request is never requeued. Collaborators are
// guarded by circuit breakers that fail fast while a collaborator is down.
// Nothing here retries.
//
// Decisions:
//   - network-add: NetworkRegistry.AddNetwork, caller gets null
//   - watch-asset: TokenRegistry.AddToken, caller gets true
//   - eth signing: Signer.Sign, plus Broadcaster.SendSigned for transactions
//   - generalized signing: Signer.Sign, caller gets {id, signature}
package resolver
