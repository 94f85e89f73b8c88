// Package receiver accepts prediction batches from rulboard-agent instances
// and other producers.
//
// Receiver.Ingest is the single ingest path shared by both transports: it
// decodes a {"predictions": [...]} document, drops records whose RUL value is
// not a finite non-negative number, stores the remaining batch together with
// its summary, and then notifies the alert engine and the metrics registry.
//
// Receiver.ServeHTTP serves POST /api/v1/sources/{id}/predictions.
// Authentication is applied upstream by the auth middleware.
//
// Subscriber consumes the same JSON documents from MQTT topics shaped
// <prefix>/{id}/predictions.
package receiver
