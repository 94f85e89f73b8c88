// Package ws implements the WebSocket hub for rulboard-server.
//
// Hub pushes the fleet snapshot to connected dashboard clients:
//   - on connect,
//   - every interval (default 5s) as event "snapshot",
//   - right after a batch is stored, as event "batch" with the source ID.
//
// Hub.Notify has the receiver.Listener signature so the server wires it with
// receiver.OnStored(hub.Notify). Notifications that pile up between pushes are
// coalesced per source.
//
// Clients may connect with ?source=<id> to receive only that source in
// data.sources; fleet health stays fleet-wide. Batch events for other sources
// are not sent to filtered clients.
//
// Message format sent to clients:
//
//	{
//	  "event":     "snapshot" | "batch",
//	  "source_id": "plant-a",          // batch events only
//	  "data":      { /* same schema as GET /api/v1/snapshot */ }
//	}
//
// A client whose outgoing buffer is full is disconnected. The upgrader accepts
// all origins; apply CORS restrictions at the reverse proxy. The server mounts
// the hub at /ws/stream.
package ws
