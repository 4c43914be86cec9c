package cmd

import "fmt"

// mustFlag reads a flag registered in init() through one of the typed
// pflag getters. A lookup error means the flag was never registered.
func mustFlag[T any](get func(string) (T, error), name string) T {
	val, err := get(name)
	if err != nil {
		panic(fmt.Sprintf("flag error for --%s: %v", name, err))
	}
	return val
}
