// Package temperature implements the HVAC regulation policy.
//
// Every cycle the policy perturbs the simulated temperature by a small random
// amount, switches heating or the fan according to the configured bands,
// applies any temperature commands from the bus, and finally lets the
// running actuators move the temperature:
//
//	temperature < Low                       -> heating on
//	temperature > High                      -> fan on
//	OptimalMin <= temperature <= OptimalMax -> heating and fan off
//
// The bands must satisfy Low < OptimalMin <= OptimalMax < High. Between Low
// and OptimalMin (and between OptimalMax and High) the actuators keep their
// current state, which gives the regulator its hysteresis.
package temperature
