// Package events defines the dispatch related events emitted on the event bus.
//
// Available event types:
//   - OfferEvent: an offer was pushed to a provider
//   - ResponseEvent: a provider accepted or declined, or the offer expired
//   - GigEvent: a gig changed lifecycle state
//   - SettlementEvent: an escrow ledger transition
//   - DisputeEvent: a dispute changed state
package events
