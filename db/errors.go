package db

import (
	"errors"
	"fmt"
	"time"
)

// Error taxonomy for the borrowing core. Controllers map these to HTTP codes
// once; everything else surfaces as a generic dependency failure.
var (
	ErrInvalidTimeRange  = errors.New("start time must be before end time")
	ErrInvalidTransition = errors.New("transition not allowed from current status")
	ErrForbidden         = errors.New("actor not allowed to perform this action")
	ErrItemUnavailable   = errors.New("item is not available")
	ErrPhotoRequired     = errors.New("return photo evidence is required")
	ErrBadStatus         = errors.New("unknown status value")
)

// ConflictError 时间段冲突，带上已占用的区间方便前端提示
type ConflictError struct {
	RequestID string
	Start     time.Time
	End       time.Time
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("schedule conflict with booking %s (%s - %s)",
		e.RequestID, e.Start.Format(time.RFC3339), e.End.Format(time.RFC3339))
}
