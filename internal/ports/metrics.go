package ports

import (
	"time"

	"github.com/bnema/sweetdata-cli/internal/domain"
)

type FetchOutcome string

const (
	FetchOutcomeSuccess      FetchOutcome = "success"
	FetchOutcomeAuthRejected FetchOutcome = "auth_rejected"
	FetchOutcomeRejected     FetchOutcome = "rejected"
	FetchOutcomeExhausted    FetchOutcome = "exhausted"
	FetchOutcomeCanceled     FetchOutcome = "canceled"
)

type Metrics interface {
	ObserveFetch(endpoint string, outcome FetchOutcome, attempts int, elapsed time.Duration)
	ObserveTransition(from, to domain.ConnectionState)
	ObservePoll(ok bool)
	ObserveReward(action domain.RewardAction, ok bool)
}

type NopMetrics struct{}

func (NopMetrics) ObserveFetch(string, FetchOutcome, int, time.Duration) {}
func (NopMetrics) ObserveTransition(domain.ConnectionState, domain.ConnectionState) {}
func (NopMetrics) ObservePoll(bool) {}
func (NopMetrics) ObserveReward(domain.RewardAction, bool) {}
