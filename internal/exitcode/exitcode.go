package exitcode

const (
	Success        = 0
	UsageError     = 1
	InputError     = 2
	StoreConnError = 3
	PersistError   = 4
	JobFailed      = 5
	PartialSuccess = 6
)
