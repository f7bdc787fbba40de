package attendance

import (
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/mahudhurio/core"
)

var (
	// errors
	ErrFetchFailure  = errors.New("could not load attendance data, please try again")
	ErrCommitFailure = errors.New("could not save attendance, please try again")
	ErrNotOnRoster   = errors.New("student is not on the class roster")
	ErrInvalidDate   = errors.New("date must be a calendar day")
)

// PartialCommitError reports a session persisted without its records.
// Reconcile lists such sessions until they are committed again.
type PartialCommitError struct {
	SessionID string
	ClassID   string
	Date      time.Time
	Err       error
}

func (err PartialCommitError) Error() string {
	return fmt.Sprintf(
		"partial commit: session %s of class %s on %s saved without its records: %v",
		err.SessionID, err.ClassID, err.Date.Format(core.DateLayout), err.Err,
	)
}

func (err PartialCommitError) Unwrap() error { return err.Err }

func fetchFailure(err error, msg string) error {
	return core.NewUnavailableError(ErrFetchFailure, errors.Wrap(err, msg))
}

func commitFailure(err error, msg string) error {
	return core.NewUnavailableError(ErrCommitFailure, errors.Wrap(err, msg))
}
