package service

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidSession       = errors.New("session id is required")
	ErrInvalidQuantity      = errors.New("quantity must be between 1 and 99")
	ErrCartUnavailable      = errors.New("cart could not be read, try again")
	ErrEmptyCart            = errors.New("cart is empty, nothing to order")
	ErrCompanyInfoNotLoaded = errors.New("company info is not loaded yet")
	ErrSnapshotNotFound     = errors.New("order snapshot not found or expired")
	ErrOrderNotFound        = errors.New("order not found")
	ErrIllegalTransition    = errors.New("illegal transition of order status")
	ErrOrderNotSaved        = errors.New("order could not be saved")
	ErrShopNotReady         = errors.New("shop data is not loaded")
)

// OrderNotSavedError is returned by SendOrder when the order could not be
// persisted. The buyer's cart is left untouched.
type OrderNotSavedError struct {
	Seller string
	Err    error
}

func (e *OrderNotSavedError) Error() string {
	seller := e.Seller
	if seller == "" {
		seller = "the store"
	}
	return fmt.Sprintf("your order could not be registered; please contact %s directly", seller)
}

func (e *OrderNotSavedError) Unwrap() []error {
	return []error{ErrOrderNotSaved, e.Err}
}

// ValidationError carries per-field product validation failures.
type ValidationError struct {
	Result ProductValidationResult
}

func (e *ValidationError) Error() string {
	return "product data is invalid"
}
