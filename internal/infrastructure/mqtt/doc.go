// Package mqtt publishes simulator events and status to an MQTT broker.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Retained status on modemsim/system/status (with LWT for offline detection)
//   - Per-event publishing on modemsim/event/<kind>
//
// The simulator is purely an event source on MQTT: commands arrive over
// the virtual serial device, never over the broker, so there is no
// subscription machinery here.
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT, logger)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	sink := mqtt.NewPublisher(client, logger)
//	// plug sink into the session loop's event fan-out
package mqtt
