// Package mqtt connects the agents to an MQTT broker.
//
// The client publishes a retained availability message on
// graylogic/home/status (with a matching Last Will), restores
// subscriptions after reconnecting, and recovers panics in handlers.
// The telemetry bridge builds on it to export state and events and to
// accept operator commands.
//
// Usage:
//
//	client, err := mqtt.Connect(cfg.MQTT, logger)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.Subscribe(mqtt.Topics{}.AllCommands(), 1, handler)
package mqtt
