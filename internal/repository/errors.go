// Package repository implements the MySQL stores and defines the sentinel
// errors shared by every store implementation.  Services translate these
// values into client-facing error kinds.
package repository

import "errors"

var (
	// ErrProductNotFound is returned when a product id does not exist.
	ErrProductNotFound = errors.New("product not found")
	// ErrRentalNotFound is returned when an order does not exist or belongs
	// to another user.
	ErrRentalNotFound = errors.New("rental not found")
	// ErrUserNotFound is returned when no user matches the lookup.
	ErrUserNotFound = errors.New("user not found")
	// ErrEmailExists is returned when registering an email that is taken.
	ErrEmailExists = errors.New("email already exists")
	// ErrSKUExists is returned when a product SKU collides with another one.
	ErrSKUExists = errors.New("sku already exists")
	// ErrTokenInvalid is returned for unknown, revoked or expired refresh tokens.
	ErrTokenInvalid = errors.New("refresh token invalid")
)
