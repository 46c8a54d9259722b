// Package actuator is the only network-facing part of stepsync: it posts a
// step value for an account to the remote update endpoint.
package actuator
