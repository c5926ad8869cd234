// Package tradingservice contains the treehauz listing registry, offer book,
// and sale executor.
//
// Listings escrow the asset on creation, offers escrow the attached funds in
// the value vault, and every mutation follows checks -> state mutation ->
// external value transfer so re-entrant calls observe post-mutation state.
package tradingservice
