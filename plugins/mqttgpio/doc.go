// Package mqttgpio drives digital I/O lines that live on the far side of
// an MQTT broker.
//
// # Architecture
//
// Remote GPIO endpoints (an ESP32 running a small firmware, another
// daemon, a PLC gateway) expose each line as a pair of topics under a
// shared prefix:
//
//	<prefix>/gpio/<address>/set    — commands to the line: "1" or "0"
//	<prefix>/gpio/<address>/state  — levels observed at the line
//
// An output created by this provider publishes to the set topic; an input
// subscribes to the state topic and reports each level as it arrives. The
// broker decouples the daemon from the endpoint's transport, so a line on
// WiFi looks the same as one on the local header.
//
// One Client carries all lines. It keeps a retained presence message on
// <prefix>/system/status, reconnects with exponential backoff, and
// replays subscriptions after an outage. The broker's Last Will fires the
// offline message if the daemon dies without saying goodbye, letting
// endpoints fail their lines safe.
//
// # Security Considerations
//
//   - Set cfg.Broker.TLS for anything beyond a local development broker;
//     level commands actuate physical hardware.
//   - Username/password are passed through to the broker's ACL.
//
// # Usage
//
//	client, err := mqttgpio.Connect(cfg.MQTT)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	rt, err := pi4j.New(ctx,
//	    pi4j.WithConfig(cfg),
//	    pi4j.WithPlugins(mqttgpio.NewPlugin(client, cfg.MQTT)),
//	)
package mqttgpio
