// Package battery reads the charge level and charging state of a battery.
//
// SysfsSensor reads the Linux power_supply class under
// /sys/class/power_supply/<name>. Other platforms can plug in their own
// Sensor.
package battery
