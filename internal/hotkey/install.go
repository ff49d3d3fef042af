package hotkey

// abandonInstall waits for a hook thread that outlived its Start call and
// runs quit if the hook was installed after all.
func abandonInstall(installed <-chan error, quit func()) {
	if err := <-installed; err == nil {
		quit()
	}
}
