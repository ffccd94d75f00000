package main

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/pmwatch/sps30d/sps30"
)

var (
	massGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "sps30_mass_concentration_ug_m3",
		Help: "Mass concentration by particle size class.",
	}, []string{"class"})

	numberGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "sps30_number_concentration_cm3",
		Help: "Number concentration by particle size class.",
	}, []string{"class"})

	particleSizeGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "sps30_typical_particle_size_um",
		Help: "Typical particle size.",
	})

	samplesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sps30_samples_total",
		Help: "Measurements read from the sensor.",
	})

	exchangeErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sps30_exchange_errors_total",
		Help: "Failed request/response exchanges with the sensor.",
	})
)

func recordMeasurement(m sps30.Measurement) {
	massGauge.WithLabelValues("pm1_0").Set(float64(m.MassPM1_0))
	massGauge.WithLabelValues("pm2_5").Set(float64(m.MassPM2_5))
	massGauge.WithLabelValues("pm4_0").Set(float64(m.MassPM4_0))
	massGauge.WithLabelValues("pm10").Set(float64(m.MassPM10))

	numberGauge.WithLabelValues("pm0_5").Set(float64(m.NumberPM0_5))
	numberGauge.WithLabelValues("pm1_0").Set(float64(m.NumberPM1_0))
	numberGauge.WithLabelValues("pm2_5").Set(float64(m.NumberPM2_5))
	numberGauge.WithLabelValues("pm4_0").Set(float64(m.NumberPM4_0))
	numberGauge.WithLabelValues("pm10").Set(float64(m.NumberPM10))

	particleSizeGauge.Set(float64(m.TypicalParticleSize))
	samplesTotal.Inc()
}
