// Package mqtt provides MQTT connectivity for Scene Capture Core.
//
// It wraps eclipse/paho.mqtt.golang with connection management, automatic
// reconnection, subscription restoration, and Scene Capture topic builders.
//
// The MQTT surface mirrors Home Assistant's service-call model: automations
// publish a JSON payload to scenecapture/service/{update|scene_update|scene_get}
// and receive structured results on scenecapture/result/{service}.
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	topics := mqtt.Topics{}
//	client.Subscribe(topics.AllServiceCommands(), 1, handler)
//
// # Topic Hierarchy
//
//	scenecapture/service/{service}  - incoming service commands
//	scenecapture/result/{service}   - outgoing service results
//	scenecapture/system/status      - retained online/offline status (+ LWT)
package mqtt
