package sps30

import (
	"encoding/binary"
	"math"
)

// Measurement is one particulate matter sample. Mass concentrations are in
// μg/m³, number concentrations in #/cm³, the typical particle size in μm.
type Measurement struct {
	MassPM1_0           float32 `json:"mass_pm1_0"`
	MassPM2_5           float32 `json:"mass_pm2_5"`
	MassPM4_0           float32 `json:"mass_pm4_0"`
	MassPM10            float32 `json:"mass_pm10"`
	NumberPM0_5         float32 `json:"number_pm0_5"`
	NumberPM1_0         float32 `json:"number_pm1_0"`
	NumberPM2_5         float32 `json:"number_pm2_5"`
	NumberPM4_0         float32 `json:"number_pm4_0"`
	NumberPM10          float32 `json:"number_pm10"`
	TypicalParticleSize float32 `json:"typical_particle_size"`
}

// measurementSize is the wire size of a measurement: ten big-endian IEEE-754
// single-precision floats.
const measurementSize = 10 * 4

// measurementFromData reconstructs a Measurement from the data bytes of a
// read-measurement response.
func measurementFromData(data []byte) (Measurement, error) {
	if len(data) < measurementSize {
		return Measurement{}, ErrMeasurementTooShort
	}

	f := func(i int) float32 {
		return math.Float32frombits(binary.BigEndian.Uint32(data[4*i:]))
	}
	return Measurement{
		MassPM1_0:           f(0),
		MassPM2_5:           f(1),
		MassPM4_0:           f(2),
		MassPM10:            f(3),
		NumberPM0_5:         f(4),
		NumberPM1_0:         f(5),
		NumberPM2_5:         f(6),
		NumberPM4_0:         f(7),
		NumberPM10:          f(8),
		TypicalParticleSize: f(9),
	}, nil
}
