// Package mqtt publishes door state to an MQTT broker and accepts refresh
// commands from it.
//
// It wraps paho.mqtt.golang with:
//   - auto-reconnect and subscription restoration
//   - a retained online/offline status with Last Will and Testament
//   - input validation and bounded publish/subscribe waits
//
// # Topics
//
//	<prefix>/state/<device>            retained door state JSON
//	<prefix>/command/<device>/refresh  request an immediate read
//	<prefix>/system/status             retained online/offline
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	monitor.AddObserver(mqtt.NewStatePublisher(client, cfg.MQTT.TopicPrefix))
package mqtt
