package esmutils

// Values read with a '*' end delimiter are stored as floor(value * 1000):
// kW becomes W, kWh becomes Wh, V becomes mV, m3 becomes dm3.
const kiloFactor = 1000

// ScaledToUnit converts a stored reading back into the unit the meter sent.
func ScaledToUnit(scaled int64, kiloScaled bool) float64 {
	if !kiloScaled {
		return float64(scaled)
	}
	return float64(scaled) / kiloFactor
}

// StoredUnit names the unit a stored value is in, given the unit in the telegram.
func StoredUnit(telegramUnit string) string {
	switch telegramUnit {
	case "kW":
		return "W"
	case "kWh":
		return "Wh"
	case "V":
		return "mV"
	case "A":
		return "mA"
	case "m3":
		return "dm3"
	default:
		return ""
	}
}
