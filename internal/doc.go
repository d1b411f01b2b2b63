// Package pvforecast implements an energy production forecast service for a
// photovoltaic system.
//
// # Architecture
//
// The service is structured into several key packages:
//   - weather: Meteomatics response parsing, unit normalisation and flattening
//   - inverter: channel extraction from Fronius archive documents
//   - series: time-indexed tables and the batched range fetcher
//   - api: Meteomatics and Fronius clients and the ingestion fetcher
//   - cache: weather payload cache (in-memory LRU or Redis)
//   - database: TimescaleDB storage for weather, energy and predictions
//   - model: MLflow registry loader and the inference runner
//   - events: Kafka publisher for prediction runs
//   - grpc: gRPC service implementation and middlewares
//   - httpapi: JSON over HTTP, health and metrics endpoints
//   - scheduler: periodic weather, energy and model jobs
//   - export: xlsx and csv output of inverter tables
//
// Key Features
//
//   - Forecasts:
//     Hourly weather forecasts for the configured sites are flattened into
//     one record per location and hour, converted to canonical units and
//     fed to the production model.
//
//   - Energy History:
//     Inverter archives are pulled in windows of at most 16 days and stored
//     with the differences of the absolute meter counters.
//
//   - Time Series Operations:
//     Supports various aggregations (MIN, MAX, AVG, SUM) of produced energy
//     over different time windows (1m, 5m, 1h, 1d).
//
// Example Usage
//
//	client := server.NewPVForecastClient(conn)
//	resp, err := client.Predict(ctx, &server.PredictRequest{
//	    Date: "2024-07-01",
//	})
//
// For more information about specific packages, see their respective
// documentation.
package pvforecast
