package generic

// Unwrap returns value, or panics if err is not nil. It is meant for wrapping calls that only fail on programmer
// error, e.g. generic.Unwrap(uuid.NewRandom()).
func Unwrap[T any](value T, err error) T {
	if err != nil {
		panic(err)
	}
	return value
}

// Unwrap_ panics if err is not nil.
func Unwrap_(err error) {
	if err != nil {
		panic(err)
	}
}
