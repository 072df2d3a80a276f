package models

import (
	"errors"
	"fmt"
)

var ErrNoRecord = errors.New("models: no matching record found")

var (
	ErrSaleNotFound        = fmt.Errorf("sale not found: %w", ErrNoRecord)
	ErrUserNotFound        = fmt.Errorf("user not found: %w", ErrNoRecord)
	ErrCertificateNotFound = fmt.Errorf("certificate not found: %w", ErrNoRecord)
)
