package config

// WithEnv replaces the environment lookup, for tests.
func (l *Loader) WithEnv(getenv func(string) string) *Loader {
	l.getenv = getenv
	return l
}
