// Package webhook delivers processed events to registered HTTP
// receivers.
//
// A Notifier holds a subscription registry and a bounded delivery
// queue. Notify encodes the event once, fans it out to every active
// subscription whose event filter admits the type, and returns
// immediately: deliveries run on a fixed worker pool, and when the
// queue is full the delivery is dropped and counted rather than
// blocking the event path.
//
// Each delivery POSTs the event JSON with an X-SSOHub-Event type
// header, a unique X-SSOHub-Delivery ID, and, for subscriptions with a
// secret, an X-SSOHub-Signature header carrying the hex HMAC-SHA256 of
// the body ("sha256=..."). Receivers verify with Verify. Transport
// failures and 429/5xx answers are retried once with backoff; other
// statuses are treated as the receiver's final answer.
package webhook
