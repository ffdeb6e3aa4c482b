// Package config loads ShieldScan configuration from local and global YAML
// files and the environment, and resolves it against CLI flags into Settings.
package config
