// Package mqtt publishes hub state changes to an MQTT broker.
//
// The bridge is optional and outbound only: when enabled, registry
// change events and device status updates are mirrored onto zwavehub/*
// topics so other home-automation services can follow along without
// speaking the controller's line protocol. Presence on the bus is
// advertised through a retained status topic with a Last Will and
// Testament for crash detection.
package mqtt
