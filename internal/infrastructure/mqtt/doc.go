// Package mqtt provides MQTT client connectivity for the base station.
//
// This package manages:
//   - Connection to a Mosquitto broker with auto-reconnect
//   - Fire-and-forget publishing of device events
//   - Last Will and Testament (LWT) for offline detection
//   - Connection health monitoring
//
// The base station only publishes. Device events go to
// graylogic/basestation/event/{device_id} and the station's own online or
// offline state is retained on graylogic/basestation/system/status.
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	topic := mqtt.Topics{}.DeviceEvent(10)
//	client.PublishAsync(topic, payload)
//
// PublishAsync never waits for the broker, so it is safe to call from the
// device event loop.
package mqtt
