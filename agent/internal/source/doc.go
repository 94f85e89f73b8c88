// Package source fetches prediction batches from the configured prediction
// service endpoints.
//
// New(src) builds a Client whose HTTP transport applies the source's auth
// mode (apikey, bearer, basic, mtls) and TLS options. Client.Fetch calls the
// endpoint, decodes the {"predictions": [...]} response, and returns a Batch
// holding only records with a usable RUL value; the rest are counted in
// Batch.Rejected.
//
// Set polls every configured source on an interval and hands each batch to a
// Shipper. Set.Reload swaps the source list in place after a config edit.
//
// CheckCert inspects the TLS certificate of https endpoints so that expiring
// certificates surface in the agent log before polls start failing.
package source
