//go:build linux || darwin || freebsd

// Package libloader opens shared libraries at run time and looks up their symbols.
package libloader

import (
	"errors"

	"github.com/ebitengine/purego"
)

// TryLoadLib tries to load a shared object/dynamically linked library
// from various paths and returns a handle, the path it was found at or 0 and an error.
func TryLoadLib(paths ...string) (uintptr, string, error) {
	var err error
	for _, path := range paths {
		lib, liberr := purego.Dlopen(path, purego.RTLD_NOW|purego.RTLD_GLOBAL)
		if lib != 0 {
			return lib, path, nil
		}
		err = errors.Join(err, liberr)
	}
	if err == nil {
		err = errors.New("no library path given")
	}
	return 0, "", err
}

// Symbol returns the address of the exported symbol name in lib.
func Symbol(lib uintptr, name string) (uintptr, error) {
	return purego.Dlsym(lib, name)
}

// CloseLib unloads a library opened by [TryLoadLib].
func CloseLib(lib uintptr) error {
	return purego.Dlclose(lib)
}
