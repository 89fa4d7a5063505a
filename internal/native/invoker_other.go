//go:build !windows

package native

// Default returns the invoker for the running platform.
func Default() Invoker {
	return Unsupported{}
}
