package object

// Array is an array-typed message value.
type Array []any

// Apply invokes visit for each element in order until it returns false.
// It returns the number of elements visited; an empty array visits none.
func (a Array) Apply(visit func(index int, value any) bool) int {
	n := 0
	for i, v := range a {
		n++
		if !visit(i, v) {
			break
		}
	}
	return n
}

// GetUUID returns the UUID at index i, converting raw bytes when needed.
func (a Array) GetUUID(i int) UUID {
	return AsUUID(a[i])
}
