// Package royaltyledger splits completed sale proceeds between the market
// operator, royalty receivers and the seller, and keeps the deferred
// pull-payment balances those splits produce. Funds enter through the value
// vault and only leave when their owner claims them.
package royaltyledger
