package core

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrUnbalancedEntry     = errors.New("unbalanced entry")
	ErrInvalidLine         = errors.New("invalid journal line")
	ErrCrossCompanyAccount = errors.New("account belongs to another company")
	ErrPeriodLocked        = errors.New("accounting period is locked")
	ErrAccountNotFound     = errors.New("account not found")
	ErrNothingToVoid       = errors.New("nothing to void")
	ErrAlreadyVoided       = errors.New("document already voided without reversal records")
	ErrPartialOriginalData = errors.New("original posting data is incomplete")
	ErrOriginalNotFound    = errors.New("original record not found")
	ErrInvalidDocument     = errors.New("invalid document")
	ErrInsufficientStock   = errors.New("insufficient stock")
	ErrProductNotFound     = errors.New("product not found")
	ErrScopeViolation      = errors.New("record belongs to another tenant or company")
	ErrInvalidScope        = errors.New("tenant and company are required")
	ErrDuplicateReference  = errors.New("reference already posted")
	ErrInvalidStatus       = errors.New("invalid entry status for this operation")
	ErrDuplicatePurpose    = errors.New("purpose already assigned to another account")
	ErrUnknownPurpose      = errors.New("unknown account purpose")
)

// PeriodLockedError carries the locked (year, month) and the rejected date.
type PeriodLockedError struct {
	CompanyID int64
	Year      int
	Month     time.Month
	Date      time.Time
}

func (e *PeriodLockedError) Error() string {
	return fmt.Sprintf("%s: company %d period %04d-%02d is locked (entry date %s)",
		ErrPeriodLocked, e.CompanyID, e.Year, int(e.Month), e.Date.Format("2006-01-02"))
}

func (e *PeriodLockedError) Unwrap() error { return ErrPeriodLocked }

// AccountNotFoundError names the purpose that could not be resolved.
type AccountNotFoundError struct {
	CompanyID int64
	Purpose   Purpose
}

func (e *AccountNotFoundError) Error() string {
	return fmt.Sprintf("%s: no account tagged %s for company %d", ErrAccountNotFound, e.Purpose, e.CompanyID)
}

func (e *AccountNotFoundError) Unwrap() error { return ErrAccountNotFound }

// PartialOriginalDataError describes which half of an original posting is missing.
type PartialOriginalDataError struct {
	Reference         string
	Entries           int
	ExpectedMovements int
	FoundMovements    int
}

func (e *PartialOriginalDataError) Error() string {
	return fmt.Sprintf("%s: reference %q has %d journal entries, expected %d inventory movements, found %d",
		ErrPartialOriginalData, e.Reference, e.Entries, e.ExpectedMovements, e.FoundMovements)
}

func (e *PartialOriginalDataError) Unwrap() error { return ErrPartialOriginalData }

// InsufficientStockError is returned only when the caller's policy rejects oversell.
type InsufficientStockError struct {
	Warning NegativeStockWarning
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("%s: product %d (%s) would go to %s on %s",
		ErrInsufficientStock, e.Warning.ProductID, e.Warning.SKU, e.Warning.Stock.String(), e.Warning.Reference)
}

func (e *InsufficientStockError) Unwrap() error { return ErrInsufficientStock }

func invalidLine(lineNo int, format string, args ...any) error {
	return fmt.Errorf("%w: line %d: %s", ErrInvalidLine, lineNo, fmt.Sprintf(format, args...))
}

func invalidDocument(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidDocument, fmt.Sprintf(format, args...))
}

func unbalanced(debit, credit Money) error {
	return fmt.Errorf("%w: debits %s != credits %s", ErrUnbalancedEntry, debit, credit)
}
