// Package influxdb records base station telemetry in InfluxDB.
//
// It wraps the official influxdb-client-go v2 library. Two measurements are
// written:
//
//   - battery_level: one point per registration, tagged with the device id
//   - device_events: one point per logged event, tagged with device id and
//     priority
//
// Every point also carries a site tag naming the base station.
//
// # Usage
//
//	client, err := influxdb.Connect(ctx, cfg.InfluxDB, cfg.Site.ID)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.WriteBatteryLevel(10, "Kitchen Sensor", 90, time.Now())
//
// Writes are non-blocking and batched according to batch_size and
// flush_interval. Failures arrive asynchronously through SetOnError.
package influxdb
