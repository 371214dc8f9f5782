// Package listener implements the subscription fabric of callbackd.
//
// For every configured operation the root Service runs two children: a
// SubscriptionListener handling registrations from the router, and a
// TopicListener owning the operation's bus consumer and one
// MessageProcessor per topic. All components are independent goroutines
// with bounded mailboxes; back-pressure flows from a slow processor
// through its topic listener up to the bus, and failures are isolated per
// operation and topic.
//
// Per-message errors never propagate above a processor and
// per-subscription errors never propagate above a subscription listener;
// only initialisation and storage errors surface to the supervisor, which
// restarts the affected subtree with fresh state.
package listener
