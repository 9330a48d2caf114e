package eventstore

import (
	"git.home.luguber.info/inful/loaderbuild/internal/foundation/errors"
)

var (
	// ErrDatabaseOpenFailed indicates the SQLite database could not be opened.
	ErrDatabaseOpenFailed = errors.JournalError("could not open cycle journal database").Build()

	// ErrInitializeSchemaFailed indicates the database schema could not be initialized.
	ErrInitializeSchemaFailed = errors.JournalError("failed to initialize cycle journal schema").Build()

	// ErrEventAppendFailed indicates appending an event failed.
	ErrEventAppendFailed = errors.JournalError("failed to append event to journal").Build()

	// ErrEventQueryFailed indicates querying events failed.
	ErrEventQueryFailed = errors.JournalError("failed to query events from journal").Build()

	// ErrMarshalPayloadFailed indicates JSON marshaling of an event payload failed.
	ErrMarshalPayloadFailed = errors.JournalError("failed to marshal event payload").Build()
)

func wrap(err error, sentinel *errors.ClassifiedError) *errors.ErrorBuilder {
	return errors.WrapError(err, errors.CategoryJournal, sentinel.Message()).WithSeverity(errors.SeverityWarning)
}
