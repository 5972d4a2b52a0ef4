//go:build !windows

package service

import "errors"

// ErrServiceUnsupported is returned by the service management commands
// outside Windows. Use systemd or a container supervisor instead.
var ErrServiceUnsupported = errors.New("service management is only available on windows")

// RunService runs the application in the foreground until SIGINT/SIGTERM
func RunService(isDebug bool, app *Application) {
	app.Run()
}

func InstallService(exePath string) error {
	return ErrServiceUnsupported
}

func UninstallService() error {
	return ErrServiceUnsupported
}

func StartService() error {
	return ErrServiceUnsupported
}

func StopService() error {
	return ErrServiceUnsupported
}

// IsWindowsService is always false outside Windows
func IsWindowsService() (bool, error) {
	return false, nil
}
