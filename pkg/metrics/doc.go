/*
Package metrics defines and registers refdata's Prometheus metrics.

Every provider records the same shape of metric under a "provider" label
("eppo" or "eu"), so operators run one dashboard for both. The gauges
ProviderReady, ProviderFetching and ProviderBuilding are set by the
Coordinator on its state transitions; there is no periodic poll.
RecordsTotal is registered and exported, but no component sets it, so
it reports no series. The histograms/counters (FetchDuration, BuildDuration, SwapsTotal,
LockAcquireTotal, APIRequestDuration, SearchDuration) are recorded inline
by the component that owns the operation, via the Timer helper:

	timer := metrics.NewTimer()
	err := doBuild()
	result := "ok"
	if err != nil {
		result = "error"
	}
	timer.ObserveDurationVec(metrics.BuildDuration, provider, result)

Handler() returns the standard promhttp handler, mounted at /metrics by
pkg/httpapi.
*/
package metrics
