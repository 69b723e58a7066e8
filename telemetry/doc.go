// Package telemetry streams digital state transitions into InfluxDB v2.
//
// An Exporter owns one client connection. Points are buffered and shipped
// in the background by the non-blocking write API, so recording a
// transition never stalls the I/O path. Batch write failures surface
// through the SetOnError callback; connection problems come back directly
// from Connect and HealthCheck.
//
//	exp, err := telemetry.Connect(cfg.Telemetry)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer exp.Close()
//
//	exp.RecordState("front-door", digital.High, time.Now())
//
// All Exporter methods are safe for concurrent use.
package telemetry
