// Package engine contains the simulation loop and the rules that move the fleet.
//
// ARCHITECTURAL RULE: The Ticker does NOT mutate the world directly.
// It emits SIM_TICK events to the EventLog; the Engine drains the log and hands
// each tick to the Flight, Charging, Collision and Agent systems in that order.
// Sub-systems never call each other.
package engine
