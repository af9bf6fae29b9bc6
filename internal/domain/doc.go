// Package domain models the flood-alert pipeline's core data: sensor
// telemetry sequences, rainfall forecasts, per-area risk profiles, and
// flood warnings.
//
// # Telemetry
//
// Sensors report temperature (°C), relative humidity (%), wind speed (m/s),
// and barometric pressure (hPa) on a fixed cadence. The regression model
// consumes the last [SequenceLength] readings as a strictly oldest→newest
// sequence; shorter histories are never padded, the cycle is skipped instead.
//
// # Rainfall intensity
//
// Intensity labels follow the PAGASA rainfall advisory scale, applied to the
// derived hourly rate in mm/h:
//
//	≤0.01   None
//	<2.5    Light
//	<7.6    Moderate
//	<15     Heavy
//	<30     Intense
//	≥30     Torrential
//
// The hourly rate is amount/duration·60, defined as 0 when the predicted
// duration is ≤0.01 minutes to avoid division blow-ups.
//
// # Risk profiles
//
// Each monitored area carries a risk multiplier >1 for flood-prone land
// (low-lying, riverside) and <1 for elevated terrain. Multipliers scale the
// rainfall thresholds used by the risk assessor: a multiplier of 2.0 halves
// the rain rate needed to trigger a warning for that area.
package domain
