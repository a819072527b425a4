package generic

// Void is a zero-size placeholder value, e.g. for set membership or a Result with no value.
type Void struct{}

func NewVoid() Void {
	return Void{}
}
