// Package metrics exposes the Prometheus collectors scraped over the
// Status API's /metrics endpoint (spec.md §4.5, SPEC_FULL.md §6.7).
// Extended from the teacher's single request-duration histogram with the
// collectors named in SPEC_FULL.md's domain-stack expansion: hall-call
// age, assignment-round duration, snapshot delivery outcomes, peer
// count, and FSM behaviour, all under the elevator_fleet namespace
// instead of the teacher's per-request-handler one.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	namespace = "elevator_fleet"

	labelElevator = "elevator"
	labelPeer     = "peer"
	labelFloor    = "floor"
	labelCallKind = "call_kind"
	labelOutcome  = "outcome"
	labelNode     = "node"
	labelBehavior = "behaviour"
)

var (
	requestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_duration_seconds",
			Help:      "Duration of elevator request processing",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5},
		},
		[]string{labelElevator},
	)

	hallCallAge = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "hall_call_age_seconds",
			Help:      "Time elapsed between a hall call being registered and its order completing",
			Buckets:   []float64{1, 5, 10, 30, 60, 120},
		},
		[]string{labelFloor, labelCallKind},
	)

	assignmentRoundDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "assignment_round_duration_seconds",
			Help:      "Duration of a hall-request-assigner subprocess round, per spec.md §6.4",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 3},
		},
		[]string{},
	)

	snapshotDeliveries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshot_deliveries_total",
			Help:      "Reliable-unicast snapshot sends by peer and outcome (acked, timeout)",
		},
		[]string{labelPeer, labelOutcome},
	)

	peerCount = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "peer_count",
			Help:      "Number of peer cabins currently known to this node",
		},
		[]string{labelNode},
	)

	fsmBehaviour = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "fsm_behaviour",
			Help:      "1 for the cabin's current Behaviour, 0 otherwise; one series per possible value",
		},
		[]string{labelNode, labelBehavior},
	)
)

func init() {
	prometheus.MustRegister(
		requestDuration,
		hallCallAge,
		assignmentRoundDuration,
		snapshotDeliveries,
		peerCount,
		fsmBehaviour,
	)
}

// RequestDurationHistogram records how long a single elevator's request
// processing took, kept from the teacher's original metric.
func RequestDurationHistogram(elevatorName string, seconds float64) {
	requestDuration.With(prometheus.Labels{labelElevator: elevatorName}).Observe(seconds)
}

// RecordHallCallAge records the time between a hall call being placed
// and its order completing (spec.md §4.1.2 "Order completed").
func RecordHallCallAge(floor int, callKind string, seconds float64) {
	hallCallAge.With(prometheus.Labels{
		labelFloor:    strconv.Itoa(floor),
		labelCallKind: callKind,
	}).Observe(seconds)
}

// RecordAssignmentRoundDuration records one hall-request-assigner
// subprocess invocation's wall-clock time (spec.md §6.4).
func RecordAssignmentRoundDuration(seconds float64) {
	assignmentRoundDuration.WithLabelValues().Observe(seconds)
}

// RecordSnapshotDelivery records one reliable-unicast send outcome
// (spec.md §4.3 Data-TX): outcome is "acked" or "timeout".
func RecordSnapshotDelivery(peerID, outcome string) {
	snapshotDeliveries.With(prometheus.Labels{labelPeer: peerID, labelOutcome: outcome}).Inc()
}

// SetPeerCount reports this node's current peer count (spec.md §4.3
// Peer-RX sweep).
func SetPeerCount(nodeID string, count int) {
	peerCount.With(prometheus.Labels{labelNode: nodeID}).Set(float64(count))
}

// SetFSMBehaviour reports the cabin's current Behaviour as a one-hot
// gauge set, clearing the other known behaviours for this node.
func SetFSMBehaviour(nodeID string, current string, allBehaviours []string) {
	for _, b := range allBehaviours {
		v := 0.0
		if b == current {
			v = 1.0
		}
		fsmBehaviour.With(prometheus.Labels{labelNode: nodeID, labelBehavior: b}).Set(v)
	}
}
