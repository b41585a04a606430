// Package traveltime looks up driving time between two street addresses.
// The availability engine uses it to decide whether a driver can make it
// from one call's dropoff to the next call's pickup.
package traveltime

import "errors"

// ErrNoRoute is returned when the provider cannot produce a travel time.
// Callers fall back to a configured default rather than failing the check.
var ErrNoRoute = errors.New("traveltime: no route")

// Provider returns the driving time in whole minutes between two addresses.
type Provider interface {
	TravelTimeMinutes(fromAddress, toAddress string) (int, error)
}

// ProviderFunc adapts a function to the Provider interface.
type ProviderFunc func(fromAddress, toAddress string) (int, error)

func (f ProviderFunc) TravelTimeMinutes(from, to string) (int, error) { return f(from, to) }
