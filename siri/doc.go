// Package siri provides the HTTP client for the 511.org real-time transit
// API and the decoded SIRI payload types shared by the rest of the module.
//
// The client performs exactly one network round trip per call and reports
// failures through [Error] values carrying a [Kind] discriminator. It never
// retries internally; retry and backoff policy belong to the polling layer.
package siri
