// Package influxdb records door state readings as time-series points.
//
// It wraps the official influxdb-client-go v2 library. Writes go through the
// non-blocking batched WriteAPI, so a slow or unreachable server never delays
// the sensor watcher; asynchronous write errors are delivered to the callback
// set with SetOnError.
//
// # Measurement
//
//	door_state,device_id=<id>,source=<broadcast|refresh> open=<bool>,state=<int>,changed=<bool>
//
// state is 1 for open and 0 for closed, which graphs as a step function.
//
// # Usage
//
//	client, err := influxdb.Connect(ctx, cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	monitor.AddObserver(influxdb.NewStateWriter(client))
package influxdb
