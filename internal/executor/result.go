package executor

import "github.com/emma2tony07-spec/ProbeBot/internal/core"

// Outcome tags the result of a single execution attempt.
type Outcome string

const (
	// OutcomeFilled: exchange accepted the order and the ledger was mutated.
	OutcomeFilled Outcome = "filled"
	// OutcomeRejected: a local business rule declined the signal before or
	// after the exchange call; never retried.
	OutcomeRejected Outcome = "rejected"
	// OutcomeAlreadyExecuting: an order for the symbol is still in flight;
	// expected under racing ticks and safe to ignore.
	OutcomeAlreadyExecuting Outcome = "already_executing"
	// OutcomeExchangeRejected: the exchange explicitly declined the order.
	OutcomeExchangeRejected Outcome = "exchange_rejected"
	// OutcomeTransportFault: the call could not be confirmed to have reached
	// the exchange. The order may or may not exist remotely, so this is
	// never treated as success and never retried automatically.
	OutcomeTransportFault Outcome = "transport_fault"
)

// Result pairs a consumed signal with its tagged outcome. Trade is set
// only for OutcomeFilled; Err carries the rejection or fault detail.
type Result struct {
	Signal  core.Signal
	Outcome Outcome
	Trade   core.Trade
	Err     error
}

func (r Result) Filled() bool { return r.Outcome == OutcomeFilled }

func rejected(sig core.Signal, err error) Result {
	return Result{Signal: sig, Outcome: OutcomeRejected, Err: err}
}
