// Package infra holds the technical adapters around the solve engine:
// LP backends, metrics exporters, the MQTT publisher and the logger.
// These packages depend only on the interfaces defined under core.
package infra
