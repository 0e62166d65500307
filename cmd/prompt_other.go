//go:build !linux && !darwin

package cmd

// withoutEcho runs fn; echo control is only implemented for linux and
// darwin terminals.
func withoutEcho(_ int, fn func() error) error {
	return fn()
}
