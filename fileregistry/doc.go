// Package fileregistry loads template manifests from a directory. Every
// *.yaml and *.yml file directly under the directory is parsed (concurrently)
// on first use and cached until Reload. RegisterAll adds the cached
// manifests to an engine in file-name order.
package fileregistry
