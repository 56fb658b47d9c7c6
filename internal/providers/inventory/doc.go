// Package inventory keeps the networks and tokens the user approved, in
// memory for the life of the process. The network list is observable:
// every change publishes a versioned snapshot to subscribers.
package inventory
