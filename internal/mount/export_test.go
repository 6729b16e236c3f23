package mount

// SetMountedCheck replaces the mountinfo lookup.
func SetMountedCheck(m *Manager, f func(string) (bool, error)) {
	m.mounted = f
}
