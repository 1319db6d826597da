package sentinel

// Compile-time check that Error implements the error interface.
var _ error = Error("")

// Error is an immutable error backed by a string constant. Where errors.New
// yields a pointer that has to live in a var, Error values can be declared
// const, so they cannot be reassigned by importers.
//
// Because Error is comparable, the == fallback used by errors.Is matches
// these sentinels correctly through wrapped error chains.
type Error string

// Error implements the error interface.
func (e Error) Error() string {
	return string(e)
}
