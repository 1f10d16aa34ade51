// Package integration contains the storefront integration bounded context.
// It describes how local products map onto remote storefront variants and
// which credentials are used to talk to each store.
//
// Key concepts:
//   - CanonicalKey: order-independent identity of a variant's option set
//   - CatalogGateway: port through which every storefront call is issued
//   - TenantCredential: per-store access token and webhook secret, encrypted at rest
//
// Design Pattern: Ports & Adapters
//   - Ports (interfaces) are defined here in the domain layer
//   - Adapters (implementations) are in the infrastructure layer
package integration
