package libloader

import (
	"errors"
	"syscall"
)

// TryLoadLib tries to load a shared object/dynamically linked library
// from various paths and returns a handle, the path it was found at or 0 and an error.
func TryLoadLib(paths ...string) (uintptr, string, error) {
	var err error
	for _, path := range paths {
		lib, liberr := syscall.LoadLibrary(path)
		if lib != 0 {
			return uintptr(lib), path, nil
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
	return syscall.GetProcAddress(syscall.Handle(lib), name)
}

// CloseLib unloads a library opened by [TryLoadLib].
func CloseLib(lib uintptr) error {
	return syscall.FreeLibrary(syscall.Handle(lib))
}
