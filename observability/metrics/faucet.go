package metrics

import (
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

type FaucetMetrics struct {
	rewardsPaid     *prometheus.CounterVec
	lamportsPaid    *prometheus.CounterVec
	rejections      *prometheus.CounterVec
	treasuryBalance prometheus.Gauge
}

var (
	faucetOnce     sync.Once
	faucetRegistry *FaucetMetrics
)

func Faucet() *FaucetMetrics {
	faucetOnce.Do(func() {
		faucetRegistry = &FaucetMetrics{
			rewardsPaid: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "faucet_rewards_paid_total",
				Help: "Count of rewards paid by asset class.",
			}, []string{"class"}),
			lamportsPaid: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "faucet_lamports_paid_total",
				Help: "Total lamports paid out by asset class.",
			}, []string{"class"}),
			rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "faucet_rejections_total",
				Help: "Count of aborted reward requests by error code.",
			}, []string{"code"}),
			treasuryBalance: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "faucet_treasury_balance",
				Help: "Treasury balance in lamports observed after the last reward.",
			}),
		}
		prometheus.MustRegister(
			faucetRegistry.rewardsPaid,
			faucetRegistry.lamportsPaid,
			faucetRegistry.rejections,
			faucetRegistry.treasuryBalance,
		)
	})
	return faucetRegistry
}

func (m *FaucetMetrics) ObserveReward(class string, amount uint64) {
	if m == nil {
		return
	}
	if class == "" {
		class = "unknown"
	}
	m.rewardsPaid.WithLabelValues(class).Inc()
	m.lamportsPaid.WithLabelValues(class).Add(float64(amount))
}

func (m *FaucetMetrics) ObserveRejection(code int) {
	if m == nil {
		return
	}
	label := "unknown"
	if code >= 0 {
		label = strconv.Itoa(code)
	}
	m.rejections.WithLabelValues(label).Inc()
}

func (m *FaucetMetrics) SetTreasuryBalance(lamports uint64) {
	if m == nil {
		return
	}
	m.treasuryBalance.Set(float64(lamports))
}

func (m *FaucetMetrics) InitClass(class string) {
	if m == nil {
		return
	}
	if class == "" {
		class = "unknown"
	}
	m.rewardsPaid.WithLabelValues(class).Add(0)
	m.lamportsPaid.WithLabelValues(class).Add(0)
}
