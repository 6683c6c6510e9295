package report

import (
	"fmt"
	"io"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"

	"github.com/watcheth/stakewatch/internal/logger"
)

const validatorLabel = "validator"

// TextFormat is the exposition format written by WriteText.
var TextFormat = expfmt.NewFormat(expfmt.TypeTextPlain)

// Reporter publishes reports as Prometheus gauges on its own registry.
type Reporter struct {
	registry *prometheus.Registry

	success           prometheus.Gauge
	staleness         prometheus.Gauge
	state             *prometheus.GaugeVec
	uptime            *prometheus.GaugeVec
	consecutiveMissed *prometheus.GaugeVec
	votingPower       *prometheus.GaugeVec
	bondingState      *prometheus.GaugeVec
}

func NewReporter() (*Reporter, error) {
	r := &Reporter{
		registry: prometheus.NewRegistry(),
		success: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "update_success",
			Help: "Whether the last update was successful (1) or not (0)",
		}),
		staleness: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "update_staleness",
			Help: "Time elapsed in seconds since the last attempted update, whether or not it was successful",
		}),
		state: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "validator_state",
			Help: "Validator state (0=Defined, 1=Disabled, 2=Inactive, 3=Active, 4=Jailed, 5=Tombstoned)",
		}, []string{validatorLabel}),
		uptime: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "validator_uptime",
			Help: "Validator uptime as a percentage of the block window considered for on-chain uptime",
		}, []string{validatorLabel}),
		consecutiveMissed: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "validator_consecutive_missed_blocks",
			Help: "Number of most recent consecutive blocks missed by the validator (resets to 0 on a signed block)",
		}, []string{validatorLabel}),
		votingPower: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "validator_voting_power",
			Help: "Voting power of the validator",
		}, []string{validatorLabel}),
		bondingState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "validator_bonding_state",
			Help: "Validator bonding state (0=Bonded, 1=Unbonding, 2=Unbonded)",
		}, []string{validatorLabel}),
	}

	collectors := []prometheus.Collector{
		r.success, r.staleness, r.state, r.uptime, r.consecutiveMissed, r.votingPower, r.bondingState,
	}
	for _, c := range collectors {
		if err := r.registry.Register(c); err != nil {
			return nil, fmt.Errorf("failed to register metric: %w", err)
		}
	}
	return r, nil
}

// Apply sets every gauge from the report. Gauges of validators missing from
// the report keep their previous values.
func (r *Reporter) Apply(rep Report) {
	log := logger.WithComponent("report")

	if rep.Success {
		r.success.Set(1)
	} else {
		r.success.Set(0)
	}
	r.staleness.Set(rep.Staleness.Seconds())

	for _, v := range rep.Validators {
		id := v.Identity.String()
		r.state.WithLabelValues(id).Set(float64(v.State))
		r.uptime.WithLabelValues(id).Set(v.UptimePercent)
		r.consecutiveMissed.WithLabelValues(id).Set(float64(v.ConsecutiveMissed))
		r.votingPower.WithLabelValues(id).Set(float64(v.VotingPower))
		r.bondingState.WithLabelValues(id).Set(float64(v.BondingState))

		log.Info().
			Str("validator", id).
			Str("state", v.State.String()).
			Str("uptime", fmt.Sprintf("%.2f%%", v.UptimePercent)).
			Msg("validator info")
	}
}

func (r *Reporter) Gather() ([]*dto.MetricFamily, error) {
	return r.registry.Gather()
}

// Registry exposes the underlying registry, e.g. for extra collectors.
func (r *Reporter) Registry() *prometheus.Registry {
	return r.registry
}

// WriteText encodes the gathered metrics in the Prometheus text format.
func (r *Reporter) WriteText(w io.Writer) error {
	families, err := r.Gather()
	if err != nil {
		return fmt.Errorf("failed to gather metrics: %w", err)
	}
	enc := expfmt.NewEncoder(w, TextFormat)
	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			return fmt.Errorf("failed to encode metrics: %w", err)
		}
	}
	return nil
}
