// Package config loads and hot-reloads ticknet configuration files through
// viper, with fsnotify watches pushing changes to registered listeners.
package config

// Config is the contract every loadable configuration struct implements.
// GetName doubles as the config file base name and the listener routing key.
type Config interface {
	GetName() string
	Validate() error
}

// ChangeListener receives successfully validated configuration updates.
type ChangeListener interface {
	// GetConfigName names the configuration this listener follows.
	GetConfigName() string

	// OnConfigChanged is invoked after a watched file reloads and validates.
	// Returning an error keeps the previous configuration in effect.
	OnConfigChanged(name string, newCfg, oldCfg Config) error
}
