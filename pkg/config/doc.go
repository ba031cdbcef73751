// Package config loads optional on-disk provider configuration that
// overrides environment-variable defaults. Today this covers the EPPO
// code-type allow-list, which operators may want to edit on disk instead
// of redeploying environment variables. The file is read once at startup,
// so an edit takes effect on the next process start.
package config
